package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JeanGrijp/niji-api/internal/core/domain"
	"github.com/JeanGrijp/niji-api/internal/core/ports"
)

const defaultKeyPrefix = "rate_limit"

// Config agrega os limites utilizados pelo serviço de rate limiting.
type Config struct {
	Rule         domain.RateLimitRule
	KeyPrefix    string
	StoreTimeout time.Duration
	Retry        RetryPolicy
}

// RateLimiterService implementa a lógica central de rate limiting com duas
// janelas fixas (minuto e dia) por API key.
type RateLimiterService struct {
	storage ports.CounterStore
	config  Config
}

var _ ports.RateLimiter = (*RateLimiterService)(nil)

// NewRateLimiterService cria uma nova instância do serviço.
func NewRateLimiterService(storage ports.CounterStore, cfg Config) (*RateLimiterService, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.Rule.MinuteCeiling <= 0 || cfg.Rule.DayCeiling <= 0 {
		return nil, fmt.Errorf("rate limit ceilings must be positive")
	}
	cfg.KeyPrefix = strings.Trim(strings.TrimSpace(cfg.KeyPrefix), ":")
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}

	return &RateLimiterService{storage: storage, config: cfg}, nil
}

// Allow avalia se a requisição pode prosseguir. Admins never touch counters.
// The day counter is only incremented once the minute check has passed, and
// a rejected attempt keeps the increment it already made.
func (s *RateLimiterService) Allow(ctx context.Context, identity domain.Identity, now time.Time) (domain.Decision, error) {
	decision := domain.Decision{Identifier: identity.Username, AppliedRule: s.config.Rule}

	if identity.IsAdmin() {
		decision.Allowed = true
		decision.Bypassed = true
		return decision, nil
	}

	credential := identity.Key
	if strings.TrimSpace(credential) == "" {
		return decision, domain.Reject(domain.ErrUnauthenticated, "API key is required for rate limiting")
	}

	minuteCount, err := s.hit(ctx, credential, domain.MinuteWindow, now)
	if err != nil {
		return decision, err
	}
	decision.MinuteCount = minuteCount
	if minuteCount > s.config.Rule.MinuteCeiling {
		return decision, &domain.RejectionError{
			Kind:       domain.ErrRateLimited,
			Reason:     "per-minute rate limit exceeded",
			RetryAfter: domain.MinuteWindow.Remaining(now),
		}
	}

	dayCount, err := s.hit(ctx, credential, domain.DayWindow, now)
	if err != nil {
		return decision, err
	}
	decision.DayCount = dayCount
	if dayCount > s.config.Rule.DayCeiling {
		return decision, &domain.RejectionError{
			Kind:       domain.ErrRateLimited,
			Reason:     "daily rate limit exceeded",
			RetryAfter: domain.DayWindow.Remaining(now),
		}
	}

	decision.Allowed = true
	return decision, nil
}

// hit increments the counter for the window containing now. The increment is
// not retried since a replay could count the same attempt twice.
func (s *RateLimiterService) hit(ctx context.Context, credential string, window domain.Window, now time.Time) (int64, error) {
	key := s.buildKey(credential, window, now)

	callCtx, cancel := withStoreTimeout(ctx, s.config.StoreTimeout)
	count, err := s.storage.Increment(callCtx, key)
	cancel()
	if err != nil {
		return 0, storeUnavailable("counter increment failed", err)
	}

	if count == 1 {
		errExpire := s.config.Retry.Do(ctx, func(ctx context.Context) error {
			callCtx, cancel := withStoreTimeout(ctx, s.config.StoreTimeout)
			defer cancel()
			return s.storage.Expire(callCtx, key, window.TTL())
		})
		if errExpire != nil {
			return 0, storeUnavailable("counter expiry failed", errExpire)
		}
	}

	return count, nil
}

func (s *RateLimiterService) buildKey(credential string, window domain.Window, now time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%d", s.config.KeyPrefix, credential, window.Kind, window.Index(now))
}
