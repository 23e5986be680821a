package quotastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultMongoCollection is the collection holding usage counters.
const DefaultMongoCollection = "usage_counters"

type mongoCounter struct {
	UserID       string    `bson:"user_id"`
	FeatureType  string    `bson:"feature_type"`
	PeriodBucket string    `bson:"period_bucket"`
	CurrentCount int64     `bson:"current_count"`
	ExpiresAt    time.Time `bson:"expires_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// MongoBackend stores counters as documents with a unique compound index.
type MongoBackend struct {
	coll *mongo.Collection
	now  func() time.Time
}

// MongoOption configures a MongoBackend.
type MongoOption func(*MongoBackend)

// WithMongoClock sets the time source for the updated_at field.
func WithMongoClock(now func() time.Time) MongoOption {
	return func(b *MongoBackend) {
		if now != nil {
			b.now = now
		}
	}
}

// NewMongoBackend creates a Mongo backed counter store on the given collection.
// Call EnsureIndexes once at startup.
func NewMongoBackend(coll *mongo.Collection, opts ...MongoOption) *MongoBackend {
	b := &MongoBackend{coll: coll, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// EnsureIndexes creates the unique counter index and the TTL index on expires_at.
func (b *MongoBackend) EnsureIndexes(ctx context.Context) error {
	_, err := b.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "feature_type", Value: 1},
				{Key: "period_bucket", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("usage_counter_key"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("usage_counter_ttl"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo create counter indexes: %w", err)
	}
	return nil
}

// maxUpsertAttempts bounds retries when concurrent upserts race on a new counter.
const maxUpsertAttempts = 3

// IncrementBelow matches the counter only while it is below limit. When the
// counter exists at the limit the upsert collides with the unique index,
// which means the call is denied. A collision below the limit is a lost race
// between two first writers and is retried.
func (b *MongoBackend) IncrementBelow(ctx context.Context, key Key, limit int64, expireAt time.Time) (int64, bool, error) {
	filter := keyFilter(key)
	filter = append(filter, bson.E{Key: "current_count", Value: bson.D{{Key: "$lt", Value: limit}}})

	update := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "current_count", Value: int64(1)}}},
		{Key: "$set", Value: bson.D{
			{Key: "expires_at", Value: expireAt.UTC()},
			{Key: "updated_at", Value: b.now().UTC()},
		}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	for range maxUpsertAttempts {
		var doc mongoCounter
		err := b.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
		if err == nil {
			return doc.CurrentCount, true, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return 0, false, fmt.Errorf("mongo increment %s: %w", key, err)
		}

		count, err := b.Get(ctx, key)
		if err != nil {
			return 0, false, err
		}
		if count >= limit {
			return count, false, nil
		}
	}

	return 0, false, fmt.Errorf("mongo increment %s: upsert contention", key)
}

func (b *MongoBackend) Get(ctx context.Context, key Key) (int64, error) {
	var doc mongoCounter
	err := b.coll.FindOne(ctx, keyFilter(key)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("mongo get %s: %w", key, err)
	}
	return doc.CurrentCount, nil
}

func (b *MongoBackend) Delete(ctx context.Context, key Key) error {
	if _, err := b.coll.DeleteOne(ctx, keyFilter(key)); err != nil {
		return fmt.Errorf("mongo delete %s: %w", key, err)
	}
	return nil
}

func keyFilter(key Key) bson.D {
	return bson.D{
		{Key: "user_id", Value: key.UserID},
		{Key: "feature_type", Value: string(key.Feature)},
		{Key: "period_bucket", Value: key.Bucket},
	}
}
