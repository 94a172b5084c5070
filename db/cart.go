package db

import (
	"context"
	"errors"
	"time"

	"agromart/apperr"
	"agromart/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CartRepo struct {
	coll *mongo.Collection
}

func NewCartRepo(d *DB) *CartRepo { return &CartRepo{coll: d.CartCollection} }

// Add increments the (user, crop) line, creating it when absent. A line that
// would grow past models.MaxLineQuantity is left alone and reported as a
// Validation error.
func (r *CartRepo) Add(ctx context.Context, userID, cropID primitive.ObjectID, qty int) (*models.CartItem, error) {
	if qty < 1 || qty > models.MaxLineQuantity {
		return nil, lineLimitErr()
	}
	now := time.Now()
	// An existing line above the bound does not match, so the upsert collides
	// with it on the unique (user, crop) index.
	filter := bson.M{"user": userID, "crop": cropID, "quantity": bson.M{"$lte": models.MaxLineQuantity - qty}}
	update := bson.M{
		"$inc":         bson.M{"quantity": qty},
		"$set":         bson.M{"updatedAt": now},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var item models.CartItem
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&item)
	if mongo.IsDuplicateKeyError(err) {
		// two concurrent upserts raced on the unique index; the retry matches the winner
		err = r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&item)
		if mongo.IsDuplicateKeyError(err) {
			return nil, lineLimitErr()
		}
	}
	if err != nil {
		return nil, apperr.Internal("add to cart", err)
	}
	return &item, nil
}

func (r *CartRepo) SetQuantity(ctx context.Context, userID, itemID primitive.ObjectID, qty int) (*models.CartItem, error) {
	var item models.CartItem
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": itemID, "user": userID},
		bson.M{"$set": bson.M{"quantity": qty, "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("cart item")
		}
		return nil, apperr.Internal("update cart item", err)
	}
	return &item, nil
}

func (r *CartRepo) Remove(ctx context.Context, userID, itemID primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": itemID, "user": userID})
	if err != nil {
		return apperr.Internal("remove cart item", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("cart item")
	}
	return nil
}

func (r *CartRepo) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.CartItem, error) {
	cur, err := r.coll.Find(ctx, bson.M{"user": userID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, apperr.Internal("list cart", err)
	}
	defer cur.Close(ctx)

	var items []models.CartItem
	if err := cur.All(ctx, &items); err != nil {
		return nil, apperr.Internal("decode cart", err)
	}
	return items, nil
}

func lineLimitErr() error {
	return apperr.Validation("quantity must be between 1 and %d", models.MaxLineQuantity)
}
