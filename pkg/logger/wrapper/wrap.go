package wrap

import (
	"context"
	"errors"
)

// Error wraps an error with the current LogCtx from the context, so the
// caller that finally logs it can recover the attributes of the failing
// operation via ErrorCtx.
func Error(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	// Already wrapped: refresh the log context only.
	var e *errorWithLogCtx
	if errors.As(err, &e) {
		if x, ok := ctx.Value(LogCtxKey).(LogCtx); ok {
			e.logCtx = x
		}
		return err
	}

	c := LogCtx{}
	if x, ok := ctx.Value(LogCtxKey).(LogCtx); ok {
		c = x
	}
	return &errorWithLogCtx{
		err:    err,
		logCtx: c,
	}
}
