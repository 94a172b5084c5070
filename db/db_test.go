package db

import (
	"context"
	"os"
	"testing"

	"agromart/apperr"
	"agromart/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Needs a replica-set Mongo; set MONGO_TEST_URI to run.
func testDB(t *testing.T) *DB {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx := context.Background()
	d, err := Connect(ctx, uri, "agromart_test_"+primitive.NewObjectID().Hex())
	if err != nil {
		t.Skipf("mongo unavailable: %v", err)
	}
	if err := d.EnsureIndexes(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = d.UserCollection.Database().Drop(ctx)
		_ = d.Close(ctx)
	})
	return d
}

func TestCheckoutTransaction(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	carts, orders := NewCartRepo(d), NewOrderRepo(d)
	user := primitive.NewObjectID()

	a, err := carts.Add(ctx, user, primitive.NewObjectID(), 2)
	if err != nil {
		t.Fatal(err)
	}
	again, err := carts.Add(ctx, user, a.CropID, 3)
	if err != nil || again.ID != a.ID || again.Quantity != 5 {
		t.Fatalf("add should increment the same line: %+v %v", again, err)
	}

	order := &models.Order{
		ID:          primitive.NewObjectID(),
		UserID:      user,
		TotalAmount: models.MustMoney("25"),
		Status:      models.StatusPending,
	}
	ghost := models.CartItem{ID: primitive.NewObjectID(), Quantity: 1}
	if err := orders.CreateFromCart(ctx, order, []models.CartItem{*again, ghost}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	// a was read before the second add, so its quantity is stale.
	if err := orders.CreateFromCart(ctx, order, []models.CartItem{*a}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for a stale quantity, got %v", err)
	}
	if items, _ := carts.ListByUser(ctx, user); len(items) != 1 || items[0].Quantity != 5 {
		t.Fatal("aborted transaction must leave the cart intact")
	}

	if err := orders.CreateFromCart(ctx, order, []models.CartItem{*again}); err != nil {
		t.Fatal(err)
	}
	got, err := orders.GetByID(ctx, order.ID)
	if err != nil || !got.TotalAmount.Equal(models.MustMoney("25")) {
		t.Fatalf("unexpected stored order %+v %v", got, err)
	}
	if items, _ := carts.ListByUser(ctx, user); len(items) != 0 {
		t.Fatal("cart should be consumed")
	}

	if _, err := orders.UpdateStatus(ctx, order.ID, models.StatusProcessing, models.StatusShipped); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("stale status should conflict, got %v", err)
	}
}

func TestDuplicateEmail(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	users := NewUserRepo(d)

	if err := users.Create(ctx, &models.User{Email: "a@example.com"}); err != nil {
		t.Fatal(err)
	}
	if err := users.Create(ctx, &models.User{Email: "A@example.com"}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCartLineBound(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	carts := NewCartRepo(d)
	user, crop := primitive.NewObjectID(), primitive.NewObjectID()

	if _, err := carts.Add(ctx, user, crop, models.MaxLineQuantity-1); err != nil {
		t.Fatal(err)
	}
	if _, err := carts.Add(ctx, user, crop, 2); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	item, err := carts.Add(ctx, user, crop, 1)
	if err != nil || item.Quantity != models.MaxLineQuantity {
		t.Fatalf("line should reach the bound exactly: %+v %v", item, err)
	}
}
