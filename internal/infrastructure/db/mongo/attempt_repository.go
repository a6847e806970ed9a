package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/healthtracker/portal/internal/core/ports"
)

const attemptsCollection = "login_attempts"

// AttemptRepository persists the login/register audit trail.
type AttemptRepository struct {
	coll *mongo.Collection
}

func NewAttemptRepository(db *mongo.Database) *AttemptRepository {
	return &AttemptRepository{coll: db.Collection(attemptsCollection)}
}

func (r *AttemptRepository) Insert(ctx context.Context, a ports.LoginAttempt) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := bson.M{
		"email":       a.Email,
		"action":      a.Action,
		"success":     a.Success,
		"at":          a.At.UTC(),
		"recorded_at": time.Now().UTC(),
	}
	if a.Reason != "" {
		doc["reason"] = a.Reason
	}
	if a.IPAddress != "" {
		doc["ip_address"] = a.IPAddress
	}

	_, err := r.coll.InsertOne(ctx, doc)
	return err
}

// EnsureIndexes indexes by email and expires entries after retention.
func (r *AttemptRepository) EnsureIndexes(ctx context.Context, retention time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}, {Key: "at", Value: -1}}},
	}
	if retention > 0 {
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: "at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retention.Seconds())),
		})
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}
