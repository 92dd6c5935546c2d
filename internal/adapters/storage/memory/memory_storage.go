// Package memory implementa um contador em processo para desenvolvimento e testes.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JeanGrijp/niji-api/internal/core/ports"
)

type entry struct {
	value     int64
	expiresAt time.Time
}

// Storage keeps counters in a map guarded by a mutex. Counters are only
// shared within one process.
type Storage struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

var _ ports.CounterStore = (*Storage)(nil)

func New() *Storage {
	return NewWithClock(time.Now)
}

func NewWithClock(now func() time.Time) *Storage {
	return &Storage{entries: make(map[string]entry), now: now}
}

func (s *Storage) Increment(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	e.value++
	s.entries[key] = e
	return e.value, nil
}

func (s *Storage) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	e.expiresAt = s.now().Add(ttl)
	s.entries[key] = e
	return nil
}

// Sweep drops expired counters.
func (s *Storage) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Run sweeps on every tick until ctx is done.
func (s *Storage) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Storage) live(key string) entry {
	e, ok := s.entries[key]
	if !ok {
		return entry{}
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return entry{}
	}
	return e
}
