package db

import (
	"context"
	"errors"

	"agromart/apperr"
	"agromart/models"
	"agromart/pay"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SurplusRepo struct {
	coll *mongo.Collection
}

func NewSurplusRepo(d *DB) *SurplusRepo { return &SurplusRepo{coll: d.SurplusCollection} }

func (r *SurplusRepo) Insert(ctx context.Context, s *models.Surplus) error {
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, s); err != nil {
		return apperr.Internal("insert surplus", err)
	}
	return nil
}

func (r *SurplusRepo) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Surplus, error) {
	cur, err := r.coll.Find(ctx, bson.M{"user": userID}, options.Find().SetSort(newestFirst()))
	if err != nil {
		return nil, apperr.Internal("find surplus", err)
	}
	defer cur.Close(ctx)

	var out []models.Surplus
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Internal("decode surplus", err)
	}
	return out, nil
}

// ReconciliationRepo stores paid orders that could not be recorded.
type ReconciliationRepo struct {
	coll *mongo.Collection
}

func NewReconciliationRepo(d *DB) *ReconciliationRepo {
	return &ReconciliationRepo{coll: d.ReconciliationCollection}
}

func (r *ReconciliationRepo) Record(ctx context.Context, rec models.Reconciliation) error {
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, rec)
	return err
}

type IdempotencyRepo struct {
	coll *mongo.Collection
}

func NewIdempotencyRepo(d *DB) *IdempotencyRepo {
	return &IdempotencyRepo{coll: d.IdempotencyCollection}
}

func (r *IdempotencyRepo) Begin(ctx context.Context, rec models.IdempotencyRecord) (*models.IdempotencyRecord, error) {
	_, err := r.coll.InsertOne(ctx, rec)
	if err == nil {
		return nil, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, err
	}
	var existing models.IdempotencyRecord
	if err := r.coll.FindOne(ctx, bson.M{"key": rec.Key}).Decode(&existing); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// expired between insert and read
			return r.Begin(ctx, rec)
		}
		return nil, err
	}
	return &existing, pay.ErrDuplicateKey
}

func (r *IdempotencyRepo) Complete(ctx context.Context, key string, status int, body []byte) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"key": key},
		bson.M{"$set": bson.M{"status": status, "body": body, "done": true}})
	return err
}

func (r *IdempotencyRepo) Release(ctx context.Context, key string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"key": key})
	return err
}
