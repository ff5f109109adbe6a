package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the replication layer.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	WritesTotal         *prometheus.CounterVec   // profile_store_writes_total{store,outcome}
	WriteDuration       *prometheus.HistogramVec // profile_store_write_duration_seconds{store}
	ReadsTotal          *prometheus.CounterVec   // profile_store_reads_total{store,outcome}
	StoreAvailable      *prometheus.GaugeVec     // profile_store_store_available{store}
	ConsecutiveFailures *prometheus.GaugeVec     // profile_store_store_consecutive_failures{store}
	RepairsTotal        *prometheus.CounterVec   // profile_store_repairs_total{store,outcome}
	PendingRepairs      prometheus.Gauge         // profile_store_pending_repairs
	DegradedWrites      prometheus.Counter       // profile_store_degraded_writes_total
	SyncTotal           *prometheus.CounterVec   // profile_store_sync_total{direction,status}
}

// New registers every collector with registry. A nil registry uses the
// default registerer.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)
	return &Metrics{
		WritesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "profile_store_writes_total",
			Help: "Store writes by store and outcome",
		}, []string{"store", "outcome"}),

		WriteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "profile_store_write_duration_seconds",
			Help:    "Store write duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"store"}),

		ReadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "profile_store_reads_total",
			Help: "Store reads by store and outcome",
		}, []string{"store", "outcome"}),

		StoreAvailable: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "profile_store_store_available",
			Help: "1 when the last probe of the store succeeded",
		}, []string{"store"}),

		ConsecutiveFailures: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "profile_store_store_consecutive_failures",
			Help: "Consecutive failed probes per store",
		}, []string{"store"}),

		RepairsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "profile_store_repairs_total",
			Help: "Background repair attempts by store and outcome",
		}, []string{"store", "outcome"}),

		PendingRepairs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "profile_store_pending_repairs",
			Help: "Repair jobs currently scheduled",
		}),

		DegradedWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "profile_store_degraded_writes_total",
			Help: "Writes that reached some but not all stores",
		}),

		SyncTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "profile_store_sync_total",
			Help: "Sync operations by direction and status",
		}, []string{"direction", "status"}),
	}
}

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeNotFound = "not_found"
	OutcomeDegraded = "degraded"
)

// ObserveWrite records one store write.
func (m *Metrics) ObserveWrite(store, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.WritesTotal.WithLabelValues(store, outcome).Inc()
	m.WriteDuration.WithLabelValues(store).Observe(took.Seconds())
}

// ObserveRead records one store read.
func (m *Metrics) ObserveRead(store, outcome string) {
	if m == nil {
		return
	}
	m.ReadsTotal.WithLabelValues(store, outcome).Inc()
}

// SetHealth publishes the probe result of one store.
func (m *Metrics) SetHealth(store string, available bool, failures int) {
	if m == nil {
		return
	}
	v := 0.0
	if available {
		v = 1
	}
	m.StoreAvailable.WithLabelValues(store).Set(v)
	m.ConsecutiveFailures.WithLabelValues(store).Set(float64(failures))
}

// ObserveRepair records one background repair attempt.
func (m *Metrics) ObserveRepair(store, outcome string) {
	if m == nil {
		return
	}
	m.RepairsTotal.WithLabelValues(store, outcome).Inc()
}

// SetPendingRepairs publishes the scheduler backlog.
func (m *Metrics) SetPendingRepairs(n int) {
	if m == nil {
		return
	}
	m.PendingRepairs.Set(float64(n))
}

// IncDegraded counts a degraded write.
func (m *Metrics) IncDegraded() {
	if m == nil {
		return
	}
	m.DegradedWrites.Inc()
}

// ObserveSync records one sync log entry.
func (m *Metrics) ObserveSync(direction, status string) {
	if m == nil {
		return
	}
	m.SyncTotal.WithLabelValues(direction, status).Inc()
}
