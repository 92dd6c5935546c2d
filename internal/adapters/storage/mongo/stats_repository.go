package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JeanGrijp/niji-api/internal/core/domain"
	"github.com/JeanGrijp/niji-api/internal/core/ports"
)

const globalStatsID = "global"

type StatsRepository struct {
	coll *mongo.Collection
}

var _ ports.StatsRepository = (*StatsRepository)(nil)

func NewStatsRepository(coll *mongo.Collection) *StatsRepository {
	return &StatsRepository{coll: coll}
}

func (r *StatsRepository) IncrementRequests(ctx context.Context) error {
	return r.increment(ctx, "totalRequests")
}

func (r *StatsRepository) IncrementUsers(ctx context.Context) error {
	return r.increment(ctx, "totalUsers")
}

func (r *StatsRepository) increment(ctx context.Context, field string) error {
	_, err := r.coll.UpdateOne(
		ctx,
		bson.M{"_id": globalStatsID},
		bson.M{"$inc": bson.M{field: 1}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("increment %s: %w", field, err)
	}
	return nil
}

func (r *StatsRepository) Global(ctx context.Context) (domain.GlobalCounters, error) {
	var doc struct {
		TotalRequests int64 `bson:"totalRequests"`
		TotalUsers    int64 `bson:"totalUsers"`
	}
	err := r.coll.FindOne(ctx, bson.M{"_id": globalStatsID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.GlobalCounters{}, nil
	}
	if err != nil {
		return domain.GlobalCounters{}, fmt.Errorf("load global stats: %w", err)
	}
	return domain.GlobalCounters{TotalRequests: doc.TotalRequests, TotalUsers: doc.TotalUsers}, nil
}
