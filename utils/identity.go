package utils

import (
	"net/http"
	"strings"

	"agromart/apperr"
	"agromart/globals"
	"agromart/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IdentityFromRequest returns the caller stored by middleware.Authenticate.
func IdentityFromRequest(r *http.Request) (models.Identity, bool) {
	id, ok := r.Context().Value(globals.IdentityKey).(models.Identity)
	if !ok || id.UserID.IsZero() {
		return models.Identity{}, false
	}
	return id, true
}

// ParseObjectID parses a hex id from a path or body, naming what in the error.
func ParseObjectID(hex, what string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(hex))
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("invalid %s id", what)
	}
	return id, nil
}
