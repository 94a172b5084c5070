package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxLineQuantity bounds a single cart line.
const MaxLineQuantity = 10000

// CartItem is one pending selection; (UserID, CropID) is unique.
type CartItem struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    primitive.ObjectID `json:"user" bson:"user"`
	CropID    primitive.ObjectID `json:"cropId" bson:"crop"`
	Quantity  int                `json:"quantity" bson:"quantity"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// CartLine is a cart item with its crop resolved. Crop is nil when the
// listing has been deleted since the item was added.
type CartLine struct {
	CartItem
	Crop *Crop `json:"crop"`
}
