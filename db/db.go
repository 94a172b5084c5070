package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DB holds the client and the collection handles.
type DB struct {
	Client *mongo.Client

	UserCollection           *mongo.Collection
	CropsCollection          *mongo.Collection
	CartCollection           *mongo.Collection
	OrderCollection          *mongo.Collection
	SurplusCollection        *mongo.Collection
	ReconciliationCollection *mongo.Collection
	IdempotencyCollection    *mongo.Collection
}

// Connect dials uri and pings the primary. Checkout transactions need a
// replica set, so standalone servers are rejected later by the first commit.
func Connect(ctx context.Context, uri, name string) (*DB, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	d := client.Database(name)
	return &DB{
		Client:                   client,
		UserCollection:           d.Collection("users"),
		CropsCollection:          d.Collection("crops"),
		CartCollection:           d.Collection("cart_items"),
		OrderCollection:          d.Collection("orders"),
		SurplusCollection:        d.Collection("surplus"),
		ReconciliationCollection: d.Collection("reconciliations"),
		IdempotencyCollection:    d.Collection("idempotency"),
	}, nil
}

func (d *DB) Close(ctx context.Context) error {
	return d.Client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the repositories rely on.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	specs := []struct {
		coll *mongo.Collection
		idx  []mongo.IndexModel
	}{
		{d.UserCollection, []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("unique_email")},
		}},
		{d.CropsCollection, []mongo.IndexModel{
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("user_created")},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "cropType", Value: 1}, {Key: "price", Value: 1}}, Options: options.Index().SetName("browse")},
		}},
		{d.CartCollection, []mongo.IndexModel{
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "crop", Value: 1}}, Options: options.Index().SetUnique(true).SetName("unique_user_crop")},
		}},
		{d.OrderCollection, []mongo.IndexModel{
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("user_created")},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}, Options: options.Index().SetName("created")},
		}},
		{d.SurplusCollection, []mongo.IndexModel{
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("user_created")},
		}},
		{d.IdempotencyCollection, []mongo.IndexModel{
			{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true).SetName("unique_key")},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_expires_at")},
		}},
	}
	for _, s := range specs {
		if _, err := s.coll.Indexes().CreateMany(ctx, s.idx); err != nil {
			return fmt.Errorf("indexes on %s: %w", s.coll.Name(), err)
		}
	}
	return nil
}

func newestFirst() bson.D {
	return bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
}
