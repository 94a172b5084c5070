package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"agromart/auth"
	"agromart/cart"
	"agromart/crops"
	"agromart/filemgr"
	"agromart/livefeed"
	"agromart/memstore"
	"agromart/metrics"
	"agromart/middleware"
	"agromart/orders"
	"agromart/pay"
	"agromart/ratelim"
	"agromart/surplus"

	"github.com/prometheus/client_golang/prometheus"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memstore.New()
	tokens := middleware.NewTokens([]byte("routes-secret"), time.Hour)
	m := metrics.New(prometheus.NewRegistry())

	cropSvc := crops.NewService(store.Crops(), nil, filemgr.NewLocalStore(t.TempDir()))
	orderSvc := orders.NewService(orders.Deps{
		Carts:          store.Cart(),
		Catalog:        cropSvc,
		Repo:           store.Orders(),
		Gateway:        &pay.Fake{},
		Locker:         store.Locker(),
		Reconciliation: store.Reconciliations(),
		Metrics:        m,
	}, orders.Config{Currency: "usd", ReceiptSecret: []byte("r")})

	hub := livefeed.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	router := New(Deps{
		Tokens:       tokens,
		Metrics:      m,
		AuthLimiter:  ratelim.NewRateLimiter(600, 100, time.Minute),
		OrderLimiter: ratelim.NewRateLimiter(600, 100, time.Minute),
		Idempotency:  store.Idempotency(),
		Hub:          hub,
		UploadDir:    t.TempDir(),
		Auth: auth.NewHandlers(auth.NewService(store.Users(), tokens, func(e string) bool {
			return e == "admin@example.com"
		})),
		Crops:   crops.NewHandlers(cropSvc),
		Cart:    cart.NewHandlers(cart.NewService(store.Cart(), cropSvc)),
		Orders:  orders.NewHandlers(orderSvc),
		Surplus: surplus.NewHandlers(surplus.NewService(store.Surplus())),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path, contentType, body string, hdr map[string]string) (*http.Response, map[string]any) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.base+path, strings.NewReader(body))
	if err != nil {
		c.t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (c *client) json(method, path, body string) (*http.Response, map[string]any) {
	return c.do(method, path, "application/json", body, nil)
}

func signUp(t *testing.T, base, name, email string) *client {
	t.Helper()
	c := &client{t: t, base: base}
	resp, body := c.json(http.MethodPost, "/api/auth/register",
		`{"name":"`+name+`","email":"`+email+`","password":"correct horse"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: %d %v", email, resp.StatusCode, body)
	}
	c.token, _ = body["token"].(string)
	return c
}

func TestCheckoutFlow(t *testing.T) {
	srv := newServer(t)
	seller := signUp(t, srv.URL, "Seller", "seller@example.com")
	buyer := signUp(t, srv.URL, "Buyer", "buyer@example.com")
	admin := signUp(t, srv.URL, "Admin", "admin@example.com")

	form := url.Values{
		"name":           {"Tomato"},
		"price":          {"10"},
		"quantity":       {"50"},
		"fertilizer":     {"compost"},
		"harvestDate":    {"2025-06-01"},
		"growthLocation": {"greenhouse"},
		"cropType":       {"organic"},
		"category":       {"vegetables"},
	}
	resp, crop := seller.do(http.MethodPost, "/api/crops", "application/x-www-form-urlencoded", form.Encode(), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create crop: %d %v", resp.StatusCode, crop)
	}
	cropID := crop["id"].(string)

	resp, _ = buyer.json(http.MethodPost, "/api/cart", `{"cropId":"`+cropID+`","quantity":2}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add to cart: %d", resp.StatusCode)
	}

	key := map[string]string{"Idempotency-Key": "checkout-1"}
	resp, placed := buyer.do(http.MethodPost, "/api/orders", "application/json", `{"paymentMethod":"cash_on_delivery"}`, key)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place order: %d %v", resp.StatusCode, placed)
	}
	order := placed["order"].(map[string]any)
	if order["totalAmount"].(float64) != 20 {
		t.Fatalf("expected total 20, got %v", order["totalAmount"])
	}

	// A retried submission replays the first response instead of failing on an empty cart.
	resp, replay := buyer.do(http.MethodPost, "/api/orders", "application/json", `{"paymentMethod":"cash_on_delivery"}`, key)
	if resp.StatusCode != http.StatusCreated || resp.Header.Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay, got %d %v", resp.StatusCode, replay)
	}
	if replay["order"].(map[string]any)["id"] != order["id"] {
		t.Fatal("replay returned a different order")
	}

	resp, _ = buyer.json(http.MethodPost, "/api/orders", `{"paymentMethod":"cash_on_delivery"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("second checkout of an empty cart: expected 400, got %d", resp.StatusCode)
	}

	orderID := order["id"].(string)
	resp, _ = buyer.json(http.MethodPut, "/api/orders/"+orderID, `{"status":"processing"}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("customer status change: expected 403, got %d", resp.StatusCode)
	}
	resp, updated := admin.json(http.MethodPut, "/api/orders/"+orderID, `{"status":"processing"}`)
	if resp.StatusCode != http.StatusOK || updated["status"] != "processing" {
		t.Fatalf("admin status change: %d %v", resp.StatusCode, updated)
	}

	resp, _ = seller.json(http.MethodGet, "/api/orders/"+orderID, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("another user's order: expected 404, got %d", resp.StatusCode)
	}
}

func TestUtilityRoutes(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: %d", resp.StatusCode)
	}

	c := &client{t: t, base: srv.URL}
	resp, _ = c.json(http.MethodGet, "/api/cart", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("cart without token: expected 401, got %d", resp.StatusCode)
	}
	resp, _ = c.json(http.MethodGet, "/api/market/crops", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("public market: %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: %d", resp.StatusCode)
	}
}
