package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveWrite("relational", OutcomeSuccess, 10*time.Millisecond)
	m.ObserveWrite("relational", OutcomeSuccess, 5*time.Millisecond)
	m.ObserveWrite("document", OutcomeFailure, time.Millisecond)
	m.ObserveRead("document", OutcomeNotFound)
	m.SetHealth("hierarchical", false, 3)
	m.ObserveRepair("hierarchical", OutcomeSuccess)
	m.SetPendingRepairs(2)
	m.IncDegraded()
	m.ObserveSync("tri-sync", "success")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WritesTotal.WithLabelValues("relational", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WritesTotal.WithLabelValues("document", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReadsTotal.WithLabelValues("document", OutcomeNotFound)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StoreAvailable.WithLabelValues("hierarchical")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ConsecutiveFailures.WithLabelValues("hierarchical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RepairsTotal.WithLabelValues("hierarchical", OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PendingRepairs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DegradedWrites))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncTotal.WithLabelValues("tri-sync", "success")))

	hist := &dto.Metric{}
	require.NoError(t, m.WriteDuration.WithLabelValues("relational").(prometheus.Histogram).Write(hist))
	assert.Equal(t, uint64(2), hist.GetHistogram().GetSampleCount())
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveWrite("relational", OutcomeSuccess, time.Millisecond)
		m.ObserveRead("relational", OutcomeSuccess)
		m.SetHealth("relational", true, 0)
		m.ObserveRepair("relational", OutcomeFailure)
		m.SetPendingRepairs(1)
		m.IncDegraded()
		m.ObserveSync("tri-sync", "failed")
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.IncDegraded()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "profile_store_degraded_writes_total 1")
}
