package db

import (
	"context"
	"errors"

	"agromart/apperr"
	"agromart/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CropRepo struct {
	coll *mongo.Collection
}

func NewCropRepo(d *DB) *CropRepo { return &CropRepo{coll: d.CropsCollection} }

func (r *CropRepo) Insert(ctx context.Context, c *models.Crop) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		return apperr.Internal("insert crop", err)
	}
	return nil
}

func (r *CropRepo) Update(ctx context.Context, c *models.Crop) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": c.ID}, c)
	if err != nil {
		return apperr.Internal("update crop", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("crop")
	}
	return nil
}

func (r *CropRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return apperr.Internal("delete crop", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("crop")
	}
	return nil
}

func (r *CropRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Crop, error) {
	var c models.Crop
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("crop")
		}
		return nil, apperr.Internal("find crop", err)
	}
	return &c, nil
}

func (r *CropRepo) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Crop, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

func (r *CropRepo) ListByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Crop, error) {
	return r.find(ctx, bson.M{"user": owner}, options.Find().SetSort(newestFirst()))
}

func (r *CropRepo) Browse(ctx context.Context, f models.CropFilter) ([]models.Crop, error) {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.CropType != "" {
		filter["cropType"] = f.CropType
	}
	if f.GrowthLocation != "" {
		filter["growthLocation"] = f.GrowthLocation
	}
	if f.InStock {
		filter["quantity"] = bson.M{"$gt": 0}
	}
	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		price["$lte"] = *f.MaxPrice
	}
	if len(price) > 0 {
		filter["price"] = price
	}

	opts := options.Find().SetSort(newestFirst()).SetSkip(int64(f.Skip))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	return r.find(ctx, filter, opts)
}

func (r *CropRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Crop, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Internal("find crops", err)
	}
	defer cur.Close(ctx)

	var out []models.Crop
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Internal("decode crops", err)
	}
	return out, nil
}
