package ratelim

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
)

func TestLimitPerIP(t *testing.T) {
	rl := NewRateLimiter(1, 2, time.Minute)
	h := rl.Limit(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusNoContent)
	})

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h(rec, req, nil)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := call("10.0.0.1:1000"); code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, code)
		}
	}
	if code := call("10.0.0.1:2000"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", code)
	}
	if code := call("10.0.0.2:1000"); code != http.StatusNoContent {
		t.Fatalf("other IP should have its own bucket, got %d", code)
	}
}

func TestSweepDropsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(60, 1, time.Minute)
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.getLimiter("a")

	now = now.Add(2 * time.Minute)
	rl.getLimiter("b")
	if n := rl.Sweep(); n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
	if _, ok := rl.visitors["b"]; !ok {
		t.Fatal("active visitor removed")
	}
}
