package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// hazard alerting pipeline.
type Metrics struct {
	// Provider gateway metrics.
	ProviderRequests *prometheus.CounterVec   // labels: provider, outcome={success,error}
	ProviderDuration *prometheus.HistogramVec // labels: provider

	// Snapshot cache metrics.
	SnapshotRefreshes *prometheus.CounterVec // labels: family, outcome={refreshed,fallback,empty}
	SnapshotHits      *prometheus.CounterVec // labels: family, result={fresh,stale}

	// Request de-duplication cache.
	CacheLookups *prometheus.CounterVec // labels: cache, result={hit,miss}

	// Alerting metrics.
	AlertsWritten          *prometheus.CounterVec // labels: family, op={inserted,updated}
	NotificationsPublished prometheus.Counter
	ClustersTracked        *prometheus.GaugeVec // labels: family

	// Scheduler metrics.
	SchedulerRuns *prometheus.CounterVec // labels: job, outcome={ok,error,skipped}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ProviderRequests,
		m.ProviderDuration,
		m.SnapshotRefreshes,
		m.SnapshotHits,
		m.CacheLookups,
		m.AlertsWritten,
		m.NotificationsPublished,
		m.ClustersTracked,
		m.SchedulerRuns,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_alert",
			Name:      "provider_requests_total",
			Help:      "Provider API requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hazard_alert",
			Name:      "provider_request_duration_seconds",
			Help:      "Provider API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		SnapshotRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_alert",
			Name:      "snapshot_refreshes_total",
			Help:      "Snapshot refresh attempts by family and outcome.",
		}, []string{"family", "outcome"}),
		SnapshotHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_alert",
			Name:      "snapshot_reads_total",
			Help:      "Snapshot read path results by family.",
		}, []string{"family", "result"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_alert",
			Name:      "cache_lookups_total",
			Help:      "Bounded cache lookups by cache name and result.",
		}, []string{"cache", "result"}),
		AlertsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_alert",
			Name:      "alerts_written_total",
			Help:      "Alert rows written by family and operation.",
		}, []string{"family", "op"}),
		NotificationsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_alert",
			Name:      "notifications_published_total",
			Help:      "Notifications published to the egress topic.",
		}),
		ClustersTracked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hazard_alert",
			Name:      "clusters_tracked",
			Help:      "Known subscriber clusters per family.",
		}, []string{"family"}),
		SchedulerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_alert",
			Name:      "scheduler_runs_total",
			Help:      "Scheduled job executions by job and outcome.",
		}, []string{"job", "outcome"}),
	}
}
