// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"

	"github.com/JeanGrijp/niji-api/internal/core/domain"
)

type RateLimiter interface {
	Allow(ctx context.Context, identity domain.Identity, now time.Time) (domain.Decision, error)
}
