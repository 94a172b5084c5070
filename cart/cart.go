// Package cart is the per-user shopping cart. Every write touches a single
// document, so no cross-item transaction is needed here.
package cart

import (
	"context"

	"agromart/apperr"
	"agromart/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Repository interface {
	Add(ctx context.Context, userID, cropID primitive.ObjectID, qty int) (*models.CartItem, error)
	SetQuantity(ctx context.Context, userID, itemID primitive.ObjectID, qty int) (*models.CartItem, error)
	Remove(ctx context.Context, userID, itemID primitive.ObjectID) error
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.CartItem, error)
}

type Catalog interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Crop, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Crop, error)
}

type Service struct {
	repo    Repository
	catalog Catalog
}

func NewService(repo Repository, catalog Catalog) *Service {
	return &Service{repo: repo, catalog: catalog}
}

// Add puts qty of a crop in the caller's cart, adding to any existing line.
func (s *Service) Add(ctx context.Context, caller models.Identity, cropID primitive.ObjectID, qty int) (*models.CartItem, error) {
	if qty < 1 || qty > models.MaxLineQuantity {
		return nil, apperr.Validation("quantity must be between 1 and %d", models.MaxLineQuantity)
	}
	if _, err := s.catalog.GetByID(ctx, cropID); err != nil {
		return nil, err
	}
	return s.repo.Add(ctx, caller.UserID, cropID, qty)
}

func (s *Service) SetQuantity(ctx context.Context, caller models.Identity, itemID primitive.ObjectID, qty int) (*models.CartItem, error) {
	if qty < 1 || qty > models.MaxLineQuantity {
		return nil, apperr.Validation("quantity must be between 1 and %d", models.MaxLineQuantity)
	}
	return s.repo.SetQuantity(ctx, caller.UserID, itemID, qty)
}

func (s *Service) Remove(ctx context.Context, caller models.Identity, itemID primitive.ObjectID) error {
	return s.repo.Remove(ctx, caller.UserID, itemID)
}

// List returns the caller's lines with their crops; a deleted crop leaves Crop nil.
func (s *Service) List(ctx context.Context, caller models.Identity) ([]models.CartLine, error) {
	items, err := s.repo.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []models.CartLine{}, nil
	}

	ids := make([]primitive.ObjectID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.CropID)
	}
	crops, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]*models.Crop, len(crops))
	for i := range crops {
		byID[crops[i].ID] = &crops[i]
	}

	lines := make([]models.CartLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, models.CartLine{CartItem: it, Crop: byID[it.CropID]})
	}
	return lines, nil
}
