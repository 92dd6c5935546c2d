// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"

	"github.com/JeanGrijp/niji-api/internal/core/domain"
)

// CounterStore is the rate-limit backing store. Increment must be atomic per
// key and return the post-increment value, creating the counter at 1.
type CounterStore interface {
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// KeyStore resolves and persists API key records.
type KeyStore interface {
	FindByCredential(ctx context.Context, credential string) (domain.Identity, error)
	FindByUsername(ctx context.Context, username string) (domain.Identity, error)
	Insert(ctx context.Context, identity domain.Identity) error
	Count(ctx context.Context) (int64, error)
}

type ImageRepository interface {
	Count(ctx context.Context, filter domain.ImageFilter) (int64, error)
	Find(ctx context.Context, filter domain.ImageFilter, page domain.PageRequest) ([]domain.Image, error)
	Sample(ctx context.Context, filter domain.ImageFilter, size int64) ([]domain.Image, error)
	Get(ctx context.Context, id string) (domain.Image, error)
	Insert(ctx context.Context, image domain.Image) (domain.Image, error)
	Update(ctx context.Context, id string, update domain.ImageUpdate) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	CountAll(ctx context.Context) (int64, error)
}

// ImageStorage downloads source images into local storage.
type ImageStorage interface {
	Save(ctx context.Context, sourceURL, category string) (domain.StoredImage, error)
	Remove(ctx context.Context, path string) error
}

type StatsRepository interface {
	IncrementRequests(ctx context.Context) error
	IncrementUsers(ctx context.Context) error
	Global(ctx context.Context) (domain.GlobalCounters, error)
}

type SystemMetrics interface {
	Snapshot(ctx context.Context) (domain.SystemMetrics, error)
}
