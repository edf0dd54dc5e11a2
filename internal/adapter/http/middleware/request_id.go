package middleware

import (
	"net/http"

	wrap "github.com/borauni/ride-dispatch/pkg/logger/wrapper"
	"github.com/borauni/ride-dispatch/pkg/uuid"
)

// RequestID attaches a correlation id to the request context. An id supplied
// by the client in X-Request-ID is trusted; otherwise one is generated.
func (m *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			if id, err := uuid.New(); err == nil {
				requestID = id.String()
			}
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := wrap.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
