package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	finished := time.Date(2025, 3, 1, 0, 5, 0, 0, time.UTC)

	m.ObserveRun("catalog_rollover", finished, 250*time.Millisecond, nil)
	m.ObserveRun("catalog_rollover", finished.Add(time.Hour), time.Second, errors.New("db down"))
	m.ObserveRun("", finished, time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("catalog_rollover", cronResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("catalog_rollover", cronResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("unknown", cronResultSuccess)))
	// a failure must not move the staleness gauge forward
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(m.lastSuccess.WithLabelValues("catalog_rollover")))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	hist := findMetricFamily(mfs, "vegshop_cron_job_duration_seconds")
	require.NotNil(t, hist)
	for _, metric := range hist.GetMetric() {
		if matchesLabel(metric.GetLabel(), "job", "catalog_rollover") {
			assert.Equal(t, uint64(2), metric.GetHistogram().GetSampleCount())
			assert.InDelta(t, 1.25, metric.GetHistogram().GetSampleSum(), 1e-9)
		}
	}
}

func TestCronJobMetricsNilIsNoop(t *testing.T) {
	var m *CronJobMetrics
	assert.NotPanics(t, func() { m.ObserveRun("x", time.Now(), time.Second, nil) })
	assert.Nil(t, NewCronJobMetrics(nil))
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
