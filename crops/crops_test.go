package crops

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"agromart/apperr"
	"agromart/globals"
	"agromart/memstore"
	"agromart/models"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubImages struct{ saved []string }

func (s *stubImages) Save(_ context.Context, filename string, r io.Reader) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	s.saved = append(s.saved, filename)
	return "/uploads/crops/" + filename, nil
}

type mapCache struct {
	mu      sync.Mutex
	entries map[primitive.ObjectID]models.Crop
	hits    int
}

func (c *mapCache) Get(_ context.Context, id primitive.ObjectID) (*models.Crop, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[id]
	if ok {
		c.hits++
	}
	return &v, ok
}

func (c *mapCache) Set(_ context.Context, crop *models.Crop) {
	c.mu.Lock()
	c.entries[crop.ID] = *crop
	c.mu.Unlock()
}

func (c *mapCache) Invalidate(_ context.Context, id primitive.ObjectID) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

func validInput() CropInput {
	return CropInput{
		Name:           "Tomato",
		Price:          "10.50",
		Quantity:       "40",
		Fertilizer:     "compost",
		HarvestDate:    "2025-06-01",
		GrowthLocation: "بيت محمي",
		CropType:       "organic",
		Category:       "vegetables",
	}
}

func newService() (*Service, *mapCache, *stubImages) {
	cache := &mapCache{entries: map[primitive.ObjectID]models.Crop{}}
	images := &stubImages{}
	return NewService(memstore.New().Crops(), cache, images), cache, images
}

func seller() models.Identity {
	return models.Identity{UserID: primitive.NewObjectID(), Role: models.RoleCustomer}
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	in := validInput()
	in.Fertilizer = ""
	_, err := svc.Create(ctx, seller(), in, nil)
	if !apperr.Is(err, apperr.KindValidation) || apperr.Message(err) != "Missing required field: fertilizer" {
		t.Fatalf("unexpected error %v", err)
	}

	bad := []func(*CropInput){
		func(in *CropInput) { in.Price = "0" },
		func(in *CropInput) { in.Price = "abc" },
		func(in *CropInput) { in.Price = "10.005" },
		func(in *CropInput) { in.Quantity = "-1" },
		func(in *CropInput) { in.Quantity = "2.5" },
		func(in *CropInput) { in.HarvestDate = "yesterday" },
		func(in *CropInput) { in.Category = "grains" },
		func(in *CropInput) { in.CropType = "gmo" },
		func(in *CropInput) { in.GrowthLocation = "moon" },
	}
	for i, mutate := range bad {
		in := validInput()
		mutate(&in)
		if _, err := svc.Create(ctx, seller(), in, nil); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestCreateStoresImageAndOwner(t *testing.T) {
	svc, _, images := newService()
	caller := seller()

	crop, err := svc.Create(context.Background(), caller, validInput(), &Image{Filename: "t.jpg", Body: strings.NewReader("img")})
	if err != nil {
		t.Fatal(err)
	}
	if crop.UserID != caller.UserID || crop.ImageURL != "/uploads/crops/t.jpg" || len(images.saved) != 1 {
		t.Fatalf("unexpected crop %+v", crop)
	}
	if crop.GrowthLocation != models.LocationGreenhouse || !crop.Price.Equal(models.MustMoney("10.5")) {
		t.Fatalf("fields not normalized: %+v", crop)
	}
}

func TestOnlyOwnerOrAdminMayModify(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	owner := seller()
	crop, _ := svc.Create(ctx, owner, validInput(), nil)

	if _, err := svc.Update(ctx, seller(), crop.ID, validInput(), nil); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("stranger update: expected not found, got %v", err)
	}
	if err := svc.Delete(ctx, seller(), crop.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("stranger delete: expected not found, got %v", err)
	}

	admin := models.Identity{UserID: primitive.NewObjectID(), Role: models.RoleAdmin}
	in := validInput()
	in.Price = "12"
	updated, err := svc.Update(ctx, admin, crop.ID, in, nil)
	if err != nil {
		t.Fatal(err)
	}
	if updated.UserID != owner.UserID {
		t.Fatal("owner must not change on admin update")
	}
	if err := svc.Delete(ctx, owner, crop.ID); err != nil {
		t.Fatal(err)
	}
}

func TestGetUsesCacheAndUpdateInvalidates(t *testing.T) {
	svc, cache, _ := newService()
	ctx := context.Background()
	owner := seller()
	crop, _ := svc.Create(ctx, owner, validInput(), nil)

	if _, err := svc.Get(ctx, crop.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Get(ctx, crop.ID); err != nil {
		t.Fatal(err)
	}
	if cache.hits != 1 {
		t.Fatalf("expected 1 cache hit, got %d", cache.hits)
	}

	in := validInput()
	in.Price = "99"
	if _, err := svc.Update(ctx, owner, crop.ID, in, nil); err != nil {
		t.Fatal(err)
	}
	got, err := svc.Get(ctx, crop.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Price.Equal(models.MustMoney("99")) {
		t.Fatalf("stale cached price %s", got.Price)
	}
}

func TestBrowseFilters(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	owner := seller()

	apple := validInput()
	apple.Name, apple.Category, apple.Price = "Apple", "fruits", "3"
	empty := validInput()
	empty.Name, empty.Quantity = "Pepper", "0"
	for _, in := range []CropInput{validInput(), apple, empty} {
		if _, err := svc.Create(ctx, owner, in, nil); err != nil {
			t.Fatal(err)
		}
	}

	got, err := svc.Browse(ctx, models.CropFilter{Category: models.CategoryVegetables, InStock: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "Tomato" {
		t.Fatalf("unexpected browse result %+v", got)
	}

	max := models.MustMoney("5")
	if got, _ := svc.Browse(ctx, models.CropFilter{MaxPrice: &max}); len(got) != 1 || got[0].Name != "Apple" {
		t.Fatalf("price filter failed: %+v", got)
	}
}

func TestCreateHandlerMultipart(t *testing.T) {
	svc, _, images := newService()
	h := NewHandlers(svc)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	in := validInput()
	for k, v := range map[string]string{
		"name": in.Name, "price": in.Price, "quantity": in.Quantity, "fertilizer": in.Fertilizer,
		"harvestDate": in.HarvestDate, "growthLocation": in.GrowthLocation, "cropType": in.CropType, "category": in.Category,
	} {
		_ = mw.WriteField(k, v)
	}
	fw, _ := mw.CreateFormFile("image", "tomato.jpg")
	fw.Write([]byte("fake image"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/crops", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = req.WithContext(context.WithValue(req.Context(), globals.IdentityKey, seller()))
	rec := httptest.NewRecorder()
	h.Create(rec, req, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["image"] != "/uploads/crops/tomato.jpg" || out["price"] != 10.5 {
		t.Fatalf("unexpected body %v", out)
	}
	if len(images.saved) != 1 {
		t.Fatal("image not stored")
	}
}

func TestBrowseHandlerRejectsBadFilter(t *testing.T) {
	svc, _, _ := newService()
	h := NewHandlers(svc)

	q := url.Values{"category": {"grains"}}
	rec := httptest.NewRecorder()
	h.Browse(rec, httptest.NewRequest(http.MethodGet, "/api/market/crops?"+q.Encode(), nil), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/market/crops/x", nil), httprouter.Params{{Key: "id", Value: primitive.NewObjectID().Hex()}})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
