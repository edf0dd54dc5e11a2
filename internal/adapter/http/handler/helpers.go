package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"

	t "github.com/borauni/ride-dispatch/internal/domain/types"
)

type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, data envelope, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return errors.New("failed to encode json")
	}

	js = append(js, '\n')

	maps.Copy(w.Header(), headers)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(js)

	return nil
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	// Limit request bodies to 1MB.
	maxBytes := 1_048_576
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytesError.Limit)
		case errors.As(err, &invalidUnmarshalError):
			return fmt.Errorf("invalid unmarshal error: %w", err)
		default:
			return err
		}
	}

	// Reject bodies with trailing data after the first JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

// GetCode maps domain errors to HTTP status codes.
func GetCode(err error) int {
	switch {
	case IsOneOf(err, t.ErrRideNotFound, t.ErrNotFound):
		return http.StatusNotFound
	case IsOneOf(err, t.ErrForbidden):
		return http.StatusForbidden
	case IsOneOf(err, t.ErrActiveRideExists, t.ErrAlreadyClaimed, t.ErrRideExpired,
		t.ErrInvalidTransition, t.ErrDriverOffline, t.ErrRideNotRated, t.ErrAlreadyRated):
		return http.StatusConflict
	case IsOneOf(err, t.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetReason names the machine-readable reason for conflict-class errors so
// clients can branch without parsing prose.
func GetReason(err error) string {
	switch {
	case IsOneOf(err, t.ErrActiveRideExists):
		return "active_ride_exists"
	case IsOneOf(err, t.ErrAlreadyClaimed):
		return "already_claimed"
	case IsOneOf(err, t.ErrRideExpired):
		return "expired"
	case IsOneOf(err, t.ErrInvalidTransition):
		return "invalid_transition"
	case IsOneOf(err, t.ErrDriverOffline):
		return "driver_offline"
	case IsOneOf(err, t.ErrRideNotRated):
		return "not_completed"
	case IsOneOf(err, t.ErrAlreadyRated):
		return "already_rated"
	case IsOneOf(err, t.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return ""
	}
}

func IsOneOf(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
