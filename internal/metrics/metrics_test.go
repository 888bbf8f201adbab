package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegisterer(reg, reg)

	m.ObserveRequest(false)
	m.ObserveRequest(true)
	m.ObserveRequest(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues(OutcomeHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues(OutcomeMiss)))
}

func TestObserveResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegisterer(reg, reg)

	m.ObserveResult("strong_rule", 0.9, false, 2*time.Millisecond)
	m.ObserveResult("rule", 0.1, true, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Branches.WithLabelValues("strong_rule")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictorFailures))
	assert.Equal(t, 2, testutil.CollectAndCount(m.Branches))
}

func TestObserveReload(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegisterer(reg, reg)

	m.ObserveReload(12, nil)
	m.ObserveReload(0, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reloads.WithLabelValues(ReloadOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reloads.WithLabelValues(ReloadFailed)))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.SnapshotEntries), "failed reload keeps the gauge")

	m.SetSnapshotEntries(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SnapshotEntries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reloads.WithLabelValues(ReloadOK)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest(true)
		m.ObserveResult("rule", 0, true, 0)
		m.ObserveReload(1, nil)
		m.SetSnapshotEntries(1)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRequest(false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `agrimind_requests_total{outcome="miss"} 1`)
}
