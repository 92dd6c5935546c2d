// Package redis disponibiliza o contador de rate limiting baseado em Redis.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/JeanGrijp/niji-api/internal/core/ports"
)

type Storage struct {
	client *redis.Client
}

var _ ports.CounterStore = (*Storage)(nil)

// Config aceita uma URL redis:// ou endereço host:port.
type Config struct {
	URL      string
	Addr     string
	Password string
	DB       int
}

func New(cfg Config) (*Storage, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Storage{client: client}, nil
}

// NewFromClient wraps an existing client without pinging it.
func NewFromClient(client *redis.Client) *Storage {
	return &Storage{client: client}
}

func (c Config) options() (*redis.Options, error) {
	if url := strings.TrimSpace(c.URL); url != "" {
		if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
			opt, err := redis.ParseURL(url)
			if err != nil {
				return nil, fmt.Errorf("parse redis url: %w", err)
			}
			return opt, nil
		}
		return &redis.Options{Addr: url, Password: c.Password, DB: c.DB}, nil
	}
	if c.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	return &redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB}, nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Increment is a single INCR; it never sets an expiry.
func (s *Storage) Increment(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s *Storage) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}
