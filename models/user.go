package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name         string             `json:"name" bson:"name"`
	Email        string             `json:"email" bson:"email"`
	PasswordHash string             `json:"-" bson:"password_hash"`
	Role         Role               `json:"role" bson:"role"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
	LastLogin    time.Time          `json:"last_login,omitempty" bson:"last_login,omitempty"`
}

// Identity is the authenticated caller, validated once at the HTTP boundary
// and passed explicitly into every service call.
type Identity struct {
	UserID primitive.ObjectID
	Role   Role
}

func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }

// CanAccess reports whether the caller owns the resource or is an admin.
func (id Identity) CanAccess(owner primitive.ObjectID) bool {
	return id.IsAdmin() || id.UserID == owner
}

// Surplus is a free-text suggestion to sell surplus produce.
type Surplus struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID        primitive.ObjectID `json:"user" bson:"user"`
	Name          string             `json:"name" bson:"name"`
	Phone         string             `json:"phone" bson:"phone"`
	CropType      string             `json:"cropType" bson:"cropType"`
	PreferredTime string             `json:"preferredTime" bson:"preferredTime"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
}
