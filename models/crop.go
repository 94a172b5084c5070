package models

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CropCategory string
type CropType string
type GrowthLocation string

const (
	CategoryFruits     CropCategory = "fruits"
	CategoryVegetables CropCategory = "vegetables"

	CropOrganic    CropType = "organic"
	CropNonOrganic CropType = "non_organic"

	LocationGreenhouse GrowthLocation = "greenhouse"
	LocationOpenField  GrowthLocation = "open_field"
)

// Labels used by the original Arabic front end are accepted as aliases.
var (
	categoryAliases = map[string]CropCategory{
		"fruits":     CategoryFruits,
		"fruit":      CategoryFruits,
		"فواكه":      CategoryFruits,
		"vegetables": CategoryVegetables,
		"vegetable":  CategoryVegetables,
		"خضار":       CategoryVegetables,
	}
	cropTypeAliases = map[string]CropType{
		"organic":     CropOrganic,
		"عضوي":        CropOrganic,
		"non_organic": CropNonOrganic,
		"non-organic": CropNonOrganic,
		"غير عضوي":    CropNonOrganic,
	}
	locationAliases = map[string]GrowthLocation{
		"greenhouse":    LocationGreenhouse,
		"بيت محمي":      LocationGreenhouse,
		"open_field":    LocationOpenField,
		"open-field":    LocationOpenField,
		"بيت غير محمي":  LocationOpenField,
	}
)

func ParseCropCategory(s string) (CropCategory, error) {
	if v, ok := categoryAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

func ParseCropType(s string) (CropType, error) {
	if v, ok := cropTypeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown crop type %q", s)
}

func ParseGrowthLocation(s string) (GrowthLocation, error) {
	if v, ok := locationAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown growth location %q", s)
}

// Crop is a listing owned by a user.
type Crop struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name           string             `json:"name" bson:"name"`
	Category       CropCategory       `json:"category" bson:"category"`
	CropType       CropType           `json:"cropType" bson:"cropType"`
	GrowthLocation GrowthLocation     `json:"growthLocation" bson:"growthLocation"`
	HarvestDate    time.Time          `json:"harvestDate" bson:"harvestDate"`
	Fertilizer     string             `json:"fertilizer" bson:"fertilizer"`
	Quantity       int                `json:"quantity" bson:"quantity"`
	Price          Money              `json:"price" bson:"price"`
	ImageURL       string             `json:"image,omitempty" bson:"image,omitempty"`
	UserID         primitive.ObjectID `json:"user" bson:"user"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// CropFilter narrows the public market listing.
type CropFilter struct {
	Category       CropCategory
	CropType       CropType
	GrowthLocation GrowthLocation
	InStock        bool
	MinPrice       *Money
	MaxPrice       *Money
	Limit          int
	Skip           int
}
