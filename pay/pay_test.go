package pay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"agromart/apperr"
	"agromart/globals"
	"agromart/models"
	"agromart/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDisabledAlwaysFails(t *testing.T) {
	_, err := Disabled{}.Authorize(context.Background(), Authorization{AmountMinor: 100, Currency: "usd", OrderID: "o"})
	if !errors.Is(err, ErrCardPaymentsDisabled) {
		t.Fatalf("expected ErrCardPaymentsDisabled, got %v", err)
	}
}

func TestFakeHonoursContext(t *testing.T) {
	f := &Fake{Delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Authorize(ctx, Authorization{AmountMinor: 1, Currency: "usd", OrderID: "o"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if len(f.Calls()) != 1 {
		t.Fatal("call not recorded")
	}
}

func TestStripeCreatesPaymentIntent(t *testing.T) {
	var gotKey, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents" {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()
		gotKey = r.Header.Get("Idempotency-Key")
		gotBody = r.Form.Encode()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"pi_123","object":"payment_intent","amount":2500,"currency":"usd","client_secret":"pi_123_secret_x"}`)
	}))
	defer srv.Close()

	s := newStripe("sk_test_123", 2*time.Second, srv.URL)
	res, err := s.Authorize(context.Background(), Authorization{
		AmountMinor: 2500, Currency: "usd", OrderID: "order-1", IdempotencyKey: "order-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Reference != "pi_123" || res.ClientSecret != "pi_123_secret_x" {
		t.Fatalf("unexpected result %+v", res)
	}
	if gotKey != "order-1" {
		t.Fatalf("idempotency key not sent, got %q", gotKey)
	}
	if !strings.Contains(gotBody, "amount=2500") || !strings.Contains(gotBody, "orderId") {
		t.Fatalf("unexpected form %s", gotBody)
	}
}

func TestStripeDeclineIsAnError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`)
	}))
	defer srv.Close()

	s := newStripe("sk_test_123", 2*time.Second, srv.URL)
	_, err := s.Authorize(context.Background(), Authorization{AmountMinor: 100, Currency: "usd", OrderID: "o"})
	if err == nil || !strings.Contains(err.Error(), "card_declined") {
		t.Fatalf("expected decline error, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("gateway must not be retried, got %d calls", n)
	}
}

type mapStore struct {
	mu   sync.Mutex
	recs map[string]*models.IdempotencyRecord
}

func (m *mapStore) Begin(_ context.Context, rec models.IdempotencyRecord) (*models.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.recs[rec.Key]; ok {
		cp := *cur
		return &cp, ErrDuplicateKey
	}
	m.recs[rec.Key] = &rec
	return nil, nil
}

func (m *mapStore) Complete(_ context.Context, key string, status int, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.recs[key]
	rec.Status, rec.Body, rec.Done = status, append([]byte(nil), body...), true
	return nil
}

func (m *mapStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, key)
	return nil
}

func TestIdempotencyReplaysResponse(t *testing.T) {
	var runs int32
	h := Idempotency(&mapStore{recs: map[string]*models.IdempotencyRecord{}})(
		func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
			n := atomic.AddInt32(&runs, 1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"run":%d}`, n)
		})

	caller := models.Identity{UserID: primitive.NewObjectID()}
	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "k1")
		req = req.WithContext(context.WithValue(req.Context(), globals.IdentityKey, caller))
		rec := httptest.NewRecorder()
		h(rec, req, nil)
		return rec
	}

	first := send(`{"paymentMethod":"cash_on_delivery"}`)
	second := send(`{"paymentMethod":"cash_on_delivery"}`)
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("unexpected codes %d %d", first.Code, second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replay differs: %q vs %q", second.Body.String(), first.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("replay not flagged")
	}
	if runs != 1 {
		t.Fatalf("handler ran %d times", runs)
	}

	if rec := send(`{"paymentMethod":"credit_card"}`); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a different payload, got %d", rec.Code)
	}
}

func TestIdempotencyServerErrorIsNotStored(t *testing.T) {
	var runs int32
	h := Idempotency(&mapStore{recs: map[string]*models.IdempotencyRecord{}})(
		func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
			if atomic.AddInt32(&runs, 1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusCreated)
		})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "k2")
		h(httptest.NewRecorder(), req, nil)
	}
	if runs != 2 {
		t.Fatalf("expected a retry after 5xx, handler ran %d times", runs)
	}
}

func TestIdempotencyKeepsInconsistency(t *testing.T) {
	var runs int32
	h := Idempotency(&mapStore{recs: map[string]*models.IdempotencyRecord{}})(
		func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
			atomic.AddInt32(&runs, 1)
			utils.RespondWithError(w, apperr.Inconsistency("payment was authorized but the order could not be saved", errors.New("write failed")))
		})

	var last *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"paymentMethod":"credit_card"}`))
		req.Header.Set("Idempotency-Key", "k3")
		last = httptest.NewRecorder()
		h(last, req, nil)
	}
	if runs != 1 {
		t.Fatalf("a retry must not charge again, handler ran %d times", runs)
	}
	if last.Code != http.StatusInternalServerError || last.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected a replayed 500, got %d %q", last.Code, last.Header().Get("Idempotent-Replayed"))
	}
	if !strings.Contains(last.Body.String(), `"inconsistency"`) {
		t.Fatalf("unexpected body %s", last.Body.String())
	}
}
