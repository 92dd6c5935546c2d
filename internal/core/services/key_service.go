package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/JeanGrijp/niji-api/internal/core/domain"
	"github.com/JeanGrijp/niji-api/internal/core/ports"
)

const apiKeyBytes = 16

// KeyService emite novas API keys.
type KeyService struct {
	keys   ports.KeyStore
	stats  ports.StatsRepository
	random io.Reader
}

func NewKeyService(keys ports.KeyStore, stats ports.StatsRepository) *KeyService {
	return &KeyService{keys: keys, stats: stats, random: rand.Reader}
}

// Issue creates a user-role key for a new username.
func (s *KeyService) Issue(ctx context.Context, username string) (domain.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Identity{}, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(username) > domain.MaxUsernameLength {
		return domain.Identity{}, fmt.Errorf("%w: username must be at most %d characters", domain.ErrInvalidInput, domain.MaxUsernameLength)
	}

	_, err := s.keys.FindByUsername(ctx, username)
	switch {
	case err == nil:
		return domain.Identity{}, fmt.Errorf("%w: username already exists", domain.ErrConflict)
	case !errors.Is(err, domain.ErrKeyNotFound):
		return domain.Identity{}, fmt.Errorf("lookup username: %w", err)
	}

	key, err := generateKey(s.random)
	if err != nil {
		return domain.Identity{}, err
	}

	identity := domain.Identity{Username: username, Key: key, Role: domain.RoleUser}
	if err := s.keys.Insert(ctx, identity); err != nil {
		return domain.Identity{}, err
	}

	if s.stats != nil {
		if errStats := s.stats.IncrementUsers(ctx); errStats != nil {
			log.WithError(errStats).Warn("stats: failed to increment total users")
		}
	}
	return identity, nil
}

func generateKey(r io.Reader) (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
