package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetricsObserveByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Observe("/api/v1/orders/{billId}", http.MethodGet, http.StatusOK, 5*time.Millisecond)
	m.Observe("/api/v1/orders/{billId}", http.MethodGet, http.StatusOK, 7*time.Millisecond)
	m.Observe("", http.MethodGet, http.StatusNotFound, time.Millisecond)

	if got := testutil.ToFloat64(m.requests.WithLabelValues("/api/v1/orders/{billId}", http.MethodGet, "200")); got != 2 {
		t.Fatalf("expected 2 ok requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("unknown", http.MethodGet, "404")); got != 1 {
		t.Fatalf("unmatched routes should land on unknown, got %v", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	latency := findMetricFamily(mfs, "vegshop_http_request_duration_seconds")
	if latency == nil || len(latency.GetMetric()) != 2 {
		t.Fatalf("expected two latency series, got %v", latency)
	}
}

func TestHTTPMetricsWithoutRegistererIsNoop(t *testing.T) {
	var m *HTTPMetrics
	m.Observe("/x", http.MethodGet, http.StatusOK, time.Millisecond)
	NewHTTPMetrics(nil).Observe("/x", http.MethodGet, http.StatusOK, time.Millisecond)
}
