package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JeanGrijp/niji-api/internal/core/domain"
	"github.com/JeanGrijp/niji-api/internal/core/ports"
)

type keyDocument struct {
	Username string `bson:"username"`
	APIKey   string `bson:"api_key"`
	Role     string `bson:"role"`
}

func (d keyDocument) identity() domain.Identity {
	role := domain.Role(d.Role)
	if role == "" {
		role = domain.RoleUser
	}
	return domain.Identity{Username: d.Username, Key: d.APIKey, Role: role}
}

type KeyStore struct {
	coll *mongo.Collection
}

var _ ports.KeyStore = (*KeyStore)(nil)

func NewKeyStore(ctx context.Context, coll *mongo.Collection) *KeyStore {
	for _, field := range []string{"api_key", "username"} {
		_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			log.WithError(err).WithField("field", field).Warn("mongo: failed to ensure unique index")
		}
	}
	return &KeyStore{coll: coll}
}

func (s *KeyStore) FindByCredential(ctx context.Context, credential string) (domain.Identity, error) {
	return s.findOne(ctx, bson.M{"api_key": credential})
}

func (s *KeyStore) FindByUsername(ctx context.Context, username string) (domain.Identity, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *KeyStore) findOne(ctx context.Context, filter bson.M) (domain.Identity, error) {
	var doc keyDocument
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Identity{}, domain.ErrKeyNotFound
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("find api key: %w", err)
	}
	return doc.identity(), nil
}

func (s *KeyStore) Insert(ctx context.Context, identity domain.Identity) error {
	doc := keyDocument{Username: identity.Username, APIKey: identity.Key, Role: string(identity.Role)}
	_, err := s.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return duplicateKeyConflict(err)
	}
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// duplicateKeyConflict names the unique field that collided when the server
// reports it.
func duplicateKeyConflict(err error) error {
	switch index := collidedIndex(err); {
	case strings.HasPrefix(index, "username"):
		return fmt.Errorf("%w: username already exists", domain.ErrConflict)
	case strings.HasPrefix(index, "api_key"):
		return fmt.Errorf("%w: api key already exists", domain.ErrConflict)
	default:
		return fmt.Errorf("%w: api key record already exists", domain.ErrConflict)
	}
}

func collidedIndex(err error) string {
	var we mongo.WriteException
	if !errors.As(err, &we) {
		return ""
	}
	for _, e := range we.WriteErrors {
		if _, rest, ok := strings.Cut(e.Message, "index: "); ok {
			name, _, _ := strings.Cut(rest, " ")
			return name
		}
	}
	return ""
}

func (s *KeyStore) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count api keys: %w", err)
	}
	return n, nil
}
