// Package surplus records farmers' offers to sell produce they have left over.
package surplus

import (
	"context"
	"strings"
	"time"

	"agromart/apperr"
	"agromart/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Repository interface {
	Insert(ctx context.Context, sp *models.Surplus) error
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Surplus, error)
}

type Input struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	CropType      string `json:"cropType"`
	PreferredTime string `json:"preferredTime"`
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) Create(ctx context.Context, caller models.Identity, in Input) (*models.Surplus, error) {
	sp := &models.Surplus{
		ID:            primitive.NewObjectID(),
		UserID:        caller.UserID,
		Name:          strings.TrimSpace(in.Name),
		Phone:         strings.TrimSpace(in.Phone),
		CropType:      strings.TrimSpace(in.CropType),
		PreferredTime: strings.TrimSpace(in.PreferredTime),
		CreatedAt:     time.Now().UTC(),
	}
	if sp.Name == "" || sp.Phone == "" || sp.CropType == "" || sp.PreferredTime == "" {
		return nil, apperr.Validation("All fields are required")
	}
	if err := s.repo.Insert(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Service) ListMine(ctx context.Context, caller models.Identity) ([]models.Surplus, error) {
	list, err := s.repo.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Surplus{}
	}
	return list, nil
}
