package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func TestNewBase_ServesProbesAndMetrics(t *testing.T) {
	e := NewBase(Options{Service: "probe_test", Log: zerolog.Nop(), Registry: prometheus.NewRegistry()})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "probe_test_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}
}

func TestNewBase_CanBeBuiltTwice(t *testing.T) {
	_ = NewBase(Options{Service: "twice", Log: zerolog.Nop(), Registry: prometheus.NewRegistry()})
	_ = NewBase(Options{Service: "twice", Log: zerolog.Nop(), Registry: prometheus.NewRegistry()})
}
