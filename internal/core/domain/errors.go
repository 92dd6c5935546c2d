package domain

import (
	"errors"
	"time"
)

var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrKeyNotFound  = errors.New("api key not found")
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

// RejectionError is returned by the admission gate. Kind is one of the
// admission sentinels above and is matched through errors.Is.
type RejectionError struct {
	Kind       error
	Reason     string
	RetryAfter time.Duration
	Err        error
}

func Reject(kind error, reason string) *RejectionError {
	return &RejectionError{Kind: kind, Reason: reason}
}

func (e *RejectionError) Error() string {
	msg := e.Kind.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RejectionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// RejectionOf extracts the rejection carried by err, if any.
func RejectionOf(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

func IsRateLimitedError(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsPermanent reports errors that a retry cannot fix.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrKeyNotFound) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidInput)
}
