// Package middleware disponibiliza middlewares HTTP específicos da aplicação.
package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/JeanGrijp/niji-api/internal/adapters/http/response"
	"github.com/JeanGrijp/niji-api/internal/core/domain"
	"github.com/JeanGrijp/niji-api/internal/core/services"
)

// APIKeyHeader carries the caller's credential.
const APIKeyHeader = "X-API-KEY"

// RateLimitHeaders are set on every counted admission.
var RateLimitHeaders = []string{
	"X-RateLimit-Limit-Minute",
	"X-RateLimit-Remaining-Minute",
	"X-RateLimit-Limit-Day",
	"X-RateLimit-Remaining-Day",
}

type identityKey struct{}

// NewAdmissionMiddleware protects next with the admission gate. Each route
// passes its own requirement.
func NewAdmissionMiddleware(gate *services.Gate, req services.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := r.Header.Get(APIKeyHeader)

			_, err := services.Guard(r.Context(), gate, credential, req, func(ctx context.Context, identity domain.Identity) (struct{}, error) {
				if admission, ok := services.AdmissionFromContext(ctx); ok {
					writeRateLimitHeaders(w, admission.Decision)
				}
				ctx = context.WithValue(ctx, identityKey{}, identity)
				next.ServeHTTP(w, r.WithContext(ctx))
				return struct{}{}, nil
			})
			if err != nil {
				response.Error(w, r, err)
			}
		})
	}
}

// IdentityFromContext returns the identity admitted for this request.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(domain.Identity)
	return identity, ok
}

func writeRateLimitHeaders(w http.ResponseWriter, d domain.Decision) {
	if d.Bypassed {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit-Minute", strconv.FormatInt(d.AppliedRule.MinuteCeiling, 10))
	h.Set("X-RateLimit-Remaining-Minute", strconv.FormatInt(d.MinuteRemaining(), 10))
	h.Set("X-RateLimit-Limit-Day", strconv.FormatInt(d.AppliedRule.DayCeiling, 10))
	h.Set("X-RateLimit-Remaining-Day", strconv.FormatInt(d.DayRemaining(), 10))
}
