package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/JeanGrijp/niji-api/internal/adapters/http/response"
)

// RequestRecorder counts served requests.
type RequestRecorder interface {
	RecordRequest(ctx context.Context) error
}

// NewRequestCounter bumps the global request counter before serving. A
// failure is logged and never fails the request.
func NewRequestCounter(recorder RequestRecorder, timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if recorder != nil {
				ctx, cancel := context.WithTimeout(r.Context(), timeout)
				if err := recorder.RecordRequest(ctx); err != nil {
					response.Logger(r.Context()).WithError(err).Warn("stats: failed to record request")
				}
				cancel()
			}
			next.ServeHTTP(w, r)
		})
	}
}
