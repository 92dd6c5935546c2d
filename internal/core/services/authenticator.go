package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JeanGrijp/niji-api/internal/core/domain"
	"github.com/JeanGrijp/niji-api/internal/core/ports"
)

type AuthenticatorConfig struct {
	StoreTimeout time.Duration
	Retry        RetryPolicy
}

// Authenticator resolve a API key apresentada em uma Identity.
type Authenticator struct {
	keys   ports.KeyStore
	config AuthenticatorConfig
}

func NewAuthenticator(keys ports.KeyStore, cfg AuthenticatorConfig) (*Authenticator, error) {
	if keys == nil {
		return nil, fmt.Errorf("key store is required")
	}
	return &Authenticator{keys: keys, config: cfg}, nil
}

// Authenticate fails closed: a store error is a StoreUnavailable rejection,
// never an admission.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (domain.Identity, error) {
	if credential == "" {
		return domain.Identity{}, domain.Reject(domain.ErrUnauthenticated, "missing API key")
	}

	var identity domain.Identity
	err := a.config.Retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := withStoreTimeout(ctx, a.config.StoreTimeout)
		defer cancel()

		found, err := a.keys.FindByCredential(callCtx, credential)
		if err != nil {
			return err
		}
		identity = found
		return nil
	})

	switch {
	case err == nil:
		return identity, nil
	case errors.Is(err, domain.ErrKeyNotFound):
		return domain.Identity{}, domain.Reject(domain.ErrUnauthenticated, "invalid API key")
	default:
		return domain.Identity{}, storeUnavailable("key store lookup failed", err)
	}
}
