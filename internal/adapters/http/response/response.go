// Package response centraliza a escrita de respostas JSON e o mapeamento de erros para HTTP.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/JeanGrijp/niji-api/internal/core/domain"
)

type ctxKey string

const ctxKeyRequestID ctxKey = "request_id"

type apiError struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func RequestID(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return s
	}
	return ""
}

// Logger returns an entry tagged with the request id carried by ctx.
func Logger(ctx context.Context) *log.Entry {
	return log.WithField("request_id", RequestID(ctx))
}

func JSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func Detail(w http.ResponseWriter, statusCode int, detail string) {
	JSON(w, statusCode, map[string]string{"detail": detail})
}

// Error maps err to a status code and writes the error body. Rate-limit
// rejections also get a Retry-After header in whole seconds.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status, code, detail := Map(err)

	if rej, ok := domain.RejectionOf(err); ok && rej.RetryAfter > 0 && status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(math.Ceil(rej.RetryAfter.Seconds())), 10))
	}

	entry := Logger(r.Context()).WithFields(log.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": status,
		"error_code":  code,
	})
	switch {
	case status >= 500:
		entry.WithError(err).Error("http operation failed")
	case status == http.StatusTooManyRequests || status == http.StatusForbidden || status == http.StatusUnauthorized:
		entry.Info("request rejected")
	default:
		entry.WithError(err).Warn("http operation failed")
	}

	JSON(w, status, apiError{Detail: detail, Code: code})
}

// Map returns status code, machine code and client-facing detail for err.
func Map(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "UNAUTHENTICATED", reason(err, "invalid or missing API key")
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", reason(err, "user does not have the required permissions")
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED", reason(err, "rate limit exceeded")
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "service temporarily unavailable"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", message(err, domain.ErrInvalidInput)
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", message(err, domain.ErrNotFound)
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT", message(err, domain.ErrConflict)
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

func reason(err error, fallback string) string {
	if rej, ok := domain.RejectionOf(err); ok && rej.Reason != "" {
		return rej.Reason
	}
	return fallback
}

// message strips the sentinel prefix so "invalid input: page must be >= 1"
// reads "page must be >= 1".
func message(err error, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()+": "); i >= 0 {
		return msg[i+len(sentinel.Error())+2:]
	}
	return msg
}
