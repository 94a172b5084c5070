package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"agromart/apperr"
	"agromart/globals"
	"agromart/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRespondWithErrorMapsKind(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithError(rec, apperr.NotFound("order"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "not_found" || body["message"] != "order not found" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var dst struct {
		Quantity int `json:"quantity"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":2,"price":1}`))
	if err := DecodeJSON(r, &dst); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := DecodeJSON(r, &dst); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for empty body, got %v", err)
	}
}

func TestIdentityFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := IdentityFromRequest(r); ok {
		t.Fatal("no identity expected")
	}

	want := models.Identity{UserID: primitive.NewObjectID(), Role: models.RoleCustomer}
	r = r.WithContext(context.WithValue(r.Context(), globals.IdentityKey, want))
	got, ok := IdentityFromRequest(r)
	if !ok || got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseQueryOptionsClamps(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?page=0&limit=500", nil)
	q := ParseQueryOptions(r)
	if q.Page != 1 || q.Limit != 100 || q.Skip() != 0 {
		t.Fatalf("unexpected options %+v", q)
	}
	r = httptest.NewRequest(http.MethodGet, "/?page=3&limit=10", nil)
	if got := ParseQueryOptions(r).Skip(); got != 20 {
		t.Fatalf("expected skip 20, got %d", got)
	}
}

func TestParseDate(t *testing.T) {
	if _, err := ParseDate("2025-06-01"); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseDate("2025-06-01T10:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseDate("June 1st"); err == nil {
		t.Fatal("expected parse failure")
	}
}
