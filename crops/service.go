// Package crops is the seller catalog: listing, editing and browsing crops.
package crops

import (
	"context"
	"io"
	"strings"
	"time"

	"agromart/apperr"
	"agromart/filemgr"
	"agromart/logging"
	"agromart/models"
	"agromart/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Repository interface {
	Insert(ctx context.Context, c *models.Crop) error
	Update(ctx context.Context, c *models.Crop) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Crop, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Crop, error)
	ListByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Crop, error)
	Browse(ctx context.Context, f models.CropFilter) ([]models.Crop, error)
}

// Cache holds public crop details. A nil Cache disables caching.
type Cache interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Crop, bool)
	Set(ctx context.Context, c *models.Crop)
	Invalidate(ctx context.Context, id primitive.ObjectID)
}

// CropInput is the raw seller form. Every field is required.
type CropInput struct {
	Name           string
	Price          string
	Quantity       string
	Fertilizer     string
	HarvestDate    string
	GrowthLocation string
	CropType       string
	Category       string
}

// Image is an optional upload accompanying a create or update.
type Image struct {
	Filename string
	Body     io.Reader
}

type Service struct {
	repo   Repository
	cache  Cache
	images filemgr.ImageStore
}

func NewService(repo Repository, cache Cache, images filemgr.ImageStore) *Service {
	return &Service{repo: repo, cache: cache, images: images}
}

// validate parses in into the fields of a crop.
func (in CropInput) validate() (models.Crop, error) {
	required := []struct{ name, value string }{
		{"name", in.Name},
		{"price", in.Price},
		{"quantity", in.Quantity},
		{"fertilizer", in.Fertilizer},
		{"harvestDate", in.HarvestDate},
		{"growthLocation", in.GrowthLocation},
		{"cropType", in.CropType},
		{"category", in.Category},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return models.Crop{}, apperr.Validation("Missing required field: %s", f.name)
		}
	}

	var c models.Crop
	var err error
	c.Name = strings.TrimSpace(in.Name)
	c.Fertilizer = strings.TrimSpace(in.Fertilizer)

	if c.Price, err = models.ParseMoney(in.Price); err != nil || !c.Price.IsPositive() || !c.Price.HasWholeCents() {
		return models.Crop{}, apperr.Validation("price must be a positive number with at most two decimals")
	}
	if c.Quantity, err = utils.ParseInt(in.Quantity); err != nil || c.Quantity < 0 {
		return models.Crop{}, apperr.Validation("quantity must be a non-negative integer")
	}
	if c.HarvestDate, err = utils.ParseDate(in.HarvestDate); err != nil {
		return models.Crop{}, apperr.Validation("harvestDate must be YYYY-MM-DD")
	}
	if c.GrowthLocation, err = models.ParseGrowthLocation(in.GrowthLocation); err != nil {
		return models.Crop{}, apperr.Validation("%v", err)
	}
	if c.CropType, err = models.ParseCropType(in.CropType); err != nil {
		return models.Crop{}, apperr.Validation("%v", err)
	}
	if c.Category, err = models.ParseCropCategory(in.Category); err != nil {
		return models.Crop{}, apperr.Validation("%v", err)
	}
	return c, nil
}

func (s *Service) saveImage(ctx context.Context, img *Image) (string, error) {
	if img == nil || s.images == nil {
		return "", nil
	}
	url, err := s.images.Save(ctx, img.Filename, img.Body)
	if err != nil {
		if filemgr.IsUserError(err) {
			return "", apperr.Validation("image: %v", err)
		}
		return "", apperr.Internal("image upload failed", err)
	}
	return url, nil
}

func (s *Service) Create(ctx context.Context, caller models.Identity, in CropInput, img *Image) (*models.Crop, error) {
	crop, err := in.validate()
	if err != nil {
		return nil, err
	}
	if crop.ImageURL, err = s.saveImage(ctx, img); err != nil {
		return nil, err
	}

	now := time.Now()
	crop.ID = primitive.NewObjectID()
	crop.UserID = caller.UserID
	crop.CreatedAt = now
	crop.UpdatedAt = now
	if err := s.repo.Insert(ctx, &crop); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("crop created",
		zap.String("crop_id", crop.ID.Hex()), zap.String("user_id", caller.UserID.Hex()))
	return &crop, nil
}

// owned loads a crop the caller may modify. Other users' crops look missing.
func (s *Service) owned(ctx context.Context, caller models.Identity, id primitive.ObjectID) (*models.Crop, error) {
	crop, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(crop.UserID) {
		return nil, apperr.NotFound("crop")
	}
	return crop, nil
}

func (s *Service) Update(ctx context.Context, caller models.Identity, id primitive.ObjectID, in CropInput, img *Image) (*models.Crop, error) {
	next, err := in.validate()
	if err != nil {
		return nil, err
	}
	cur, err := s.owned(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	next.ID = cur.ID
	next.UserID = cur.UserID
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = time.Now()
	next.ImageURL = cur.ImageURL
	if url, err := s.saveImage(ctx, img); err != nil {
		return nil, err
	} else if url != "" {
		next.ImageURL = url
	}

	if err := s.repo.Update(ctx, &next); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return &next, nil
}

func (s *Service) Delete(ctx context.Context, caller models.Identity, id primitive.ObjectID) error {
	if _, err := s.owned(ctx, caller, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) ListMine(ctx context.Context, caller models.Identity) ([]models.Crop, error) {
	return s.repo.ListByOwner(ctx, caller.UserID)
}

func (s *Service) Browse(ctx context.Context, f models.CropFilter) ([]models.Crop, error) {
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return nil, apperr.Validation("minPrice exceeds maxPrice")
	}
	return s.repo.Browse(ctx, f)
}

// Get is the public detail view and may be served from cache.
func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (*models.Crop, error) {
	if s.cache != nil {
		if c, ok := s.cache.Get(ctx, id); ok {
			return c, nil
		}
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, c)
	}
	return c, nil
}

// GetByID always reads the store, so checkout sees the current price.
func (s *Service) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Crop, error) {
	return s.repo.GetByID(ctx, id)
}

// FindByIDs resolves many crops at once; missing ids are skipped.
func (s *Service) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Crop, error) {
	return s.repo.FindByIDs(ctx, ids)
}

func (s *Service) invalidate(ctx context.Context, id primitive.ObjectID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
}
