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

type OrderRepo struct {
	client *mongo.Client
	orders *mongo.Collection
	cart   *mongo.Collection
}

func NewOrderRepo(d *DB) *OrderRepo {
	return &OrderRepo{client: d.Client, orders: d.OrderCollection, cart: d.CartCollection}
}

// CreateFromCart inserts o and deletes exactly the snapshot items in one
// transaction. An item that is gone or whose quantity moved since the snapshot
// aborts the transaction with a Conflict.
func (r *OrderRepo) CreateFromCart(ctx context.Context, o *models.Order, snapshot []models.CartItem) error {
	match := make(bson.A, 0, len(snapshot))
	for _, it := range snapshot {
		match = append(match, bson.M{"_id": it.ID, "quantity": it.Quantity})
	}

	sess, err := r.client.StartSession()
	if err != nil {
		return apperr.Internal("start session", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		res, err := r.cart.DeleteMany(sc, bson.M{"$or": match, "user": o.UserID})
		if err != nil {
			return nil, err
		}
		if res.DeletedCount != int64(len(snapshot)) {
			return nil, apperr.Conflict("cart changed during checkout")
		}
		if _, err := r.orders.InsertOne(sc, o); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return ae
		}
		return apperr.Internal("checkout transaction", err)
	}
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var o models.Order
	if err := r.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("order")
		}
		return nil, apperr.Internal("find order", err)
	}
	return &o, nil
}

func (r *OrderRepo) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return r.find(ctx, bson.M{"user": userID}, options.Find().SetSort(newestFirst()))
}

func (r *OrderRepo) ListAll(ctx context.Context, limit, skip int) ([]models.Order, error) {
	opts := options.Find().SetSort(newestFirst()).SetSkip(int64(skip))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{}, opts)
}

func (r *OrderRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Order, error) {
	cur, err := r.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Internal("find orders", err)
	}
	defer cur.Close(ctx)

	var out []models.Order
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Internal("decode orders", err)
	}
	return out, nil
}

// UpdateStatus sets status to `to` only while it is still `from`.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus) (*models.Order, error) {
	var o models.Order
	err := r.orders.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&o)
	if err == nil {
		return &o, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.Internal("update order status", err)
	}

	n, err := r.orders.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, apperr.Internal("count orders", err)
	}
	if n == 0 {
		return nil, apperr.NotFound("order")
	}
	return nil, apperr.Conflict("order status changed concurrently")
}

func (r *OrderRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.orders.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return apperr.Internal("delete order", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("order")
	}
	return nil
}
