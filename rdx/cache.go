package rdx

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"agromart/logging"
	"agromart/models"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CropCache keeps public crop details under crop:<id>. Errors are logged and
// treated as misses; the database stays the source of truth.
type CropCache struct {
	conn *redis.Client
	ttl  time.Duration
}

func NewCropCache(conn *redis.Client, ttl time.Duration) *CropCache {
	return &CropCache{conn: conn, ttl: ttl}
}

func cropKey(id primitive.ObjectID) string { return "crop:" + id.Hex() }

func (c *CropCache) Get(ctx context.Context, id primitive.ObjectID) (*models.Crop, bool) {
	raw, err := c.conn.Get(ctx, cropKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.FromContext(ctx).Warn("crop cache read", zap.Error(err))
		}
		return nil, false
	}
	var crop models.Crop
	if err := json.Unmarshal(raw, &crop); err != nil {
		return nil, false
	}
	return &crop, true
}

func (c *CropCache) Set(ctx context.Context, crop *models.Crop) {
	raw, err := json.Marshal(crop)
	if err != nil {
		return
	}
	if err := c.conn.Set(ctx, cropKey(crop.ID), raw, c.ttl).Err(); err != nil {
		logging.FromContext(ctx).Warn("crop cache write", zap.Error(err))
	}
}

func (c *CropCache) Invalidate(ctx context.Context, id primitive.ObjectID) {
	if err := c.conn.Del(ctx, cropKey(id)).Err(); err != nil {
		logging.FromContext(ctx).Warn("crop cache invalidate", zap.Error(err))
	}
}
