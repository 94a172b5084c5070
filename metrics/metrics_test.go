package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestCheckoutCounter(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Checkout("cash_on_delivery", "created")
	m.Checkout("cash_on_delivery", "created")
	m.Checkout("credit_card", "gateway_failed")

	out := scrape(t, m)
	if !strings.Contains(out, `checkout_total{outcome="created",payment_method="cash_on_delivery"} 2`) {
		t.Fatalf("counter missing from output:\n%s", out)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Checkout("x", "y")
	m.GatewayCall("ok", time.Second)
	m.HTTPRequest("GET", "/health", 200, time.Millisecond)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.HTTPRequest(http.MethodGet, "/api/orders", http.StatusOK, 5*time.Millisecond)

	out := scrape(t, m)
	if !strings.Contains(out, `http_requests_total{method="GET",route="/api/orders",status="OK"} 1`) {
		t.Fatalf("metric missing from output:\n%s", out)
	}
}
