package services

import (
	"context"
	"time"

	"github.com/JeanGrijp/niji-api/internal/core/domain"
)

// RetryPolicy bounds local retries of idempotent store calls.
type RetryPolicy struct {
	Retries int
	Backoff time.Duration
}

// Do runs fn up to Retries+1 times. Permanent errors and context
// cancellation stop the loop immediately.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		if attempt > 0 && p.Backoff > 0 {
			timer := time.NewTimer(p.Backoff * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		}

		err = fn(ctx)
		if err == nil || domain.IsPermanent(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func withStoreTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func storeUnavailable(reason string, err error) error {
	return &domain.RejectionError{Kind: domain.ErrStoreUnavailable, Reason: reason, Err: err}
}
