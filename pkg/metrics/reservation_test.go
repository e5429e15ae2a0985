package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestReservationMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReservationMetrics(reg)

	m.ObserveReservation(OutcomeCommitted, 1, 10*time.Millisecond)
	m.ObserveReservation(OutcomeCommitted, 3, 40*time.Millisecond)
	m.ObserveReservation(OutcomeInsufficientStock, 1, time.Millisecond)
	m.IncStockUpdate("SET")

	if got := testutil.ToFloat64(m.outcomes.WithLabelValues(OutcomeCommitted)); got != 2 {
		t.Fatalf("expected 2 committed, got %f", got)
	}
	if got := testutil.ToFloat64(m.outcomes.WithLabelValues(OutcomeInsufficientStock)); got != 1 {
		t.Fatalf("expected 1 shortfall, got %f", got)
	}
	if got := testutil.ToFloat64(m.stock.WithLabelValues("SET")); got != 1 {
		t.Fatalf("expected 1 SET, got %f", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	attempts := findMetricFamily(mfs, "vegshop_reservation_attempts")
	if attempts == nil {
		t.Fatal("attempts histogram missing")
	}
	if sum := attempts.GetMetric()[0].GetHistogram().GetSampleSum(); sum != 5 {
		t.Fatalf("expected attempt sum 5, got %f", sum)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	m := NewReservationMetrics(nil)
	m.ObserveReservation(OutcomeError, 1, time.Second)
	m.IncStockUpdate("ADD")

	var h *HTTPMetrics
	h.Observe("/x", "GET", 200, time.Millisecond)
	NewHTTPMetrics(nil).Observe("/x", "GET", 200, time.Millisecond)
}

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("/api/v1/orders", "POST", 201, 5*time.Millisecond)
	if got := testutil.ToFloat64(m.requests.WithLabelValues("/api/v1/orders", "POST", "201")); got != 1 {
		t.Fatalf("expected 1 request, got %f", got)
	}
}
