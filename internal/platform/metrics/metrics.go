// Package metrics holds the Prometheus collectors exported by the Sigap API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sigap"

// Metrics holds all Prometheus metrics for the API.
type Metrics struct {
	AggregationDuration *prometheus.HistogramVec
	IncidentsAggregated *prometheus.GaugeVec
	CacheLookups        *prometheus.CounterVec
	ClusterRefreshes    *prometheus.CounterVec
	MigrationRuns       *prometheus.CounterVec
	RealtimeClients     prometheus.Gauge
}

// New creates and registers all metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		AggregationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "aggregation_duration_seconds",
			Help:      "Time spent aggregating crime groups into dashboard analytics.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"kind"}),
		IncidentsAggregated: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "incidents_aggregated",
			Help:      "Number of incidents in the last aggregation.",
		}, []string{"kind"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "cache_lookups_total",
			Help:      "Analytics cache lookups by layer and outcome.",
		}, []string{"layer", "outcome"}),
		ClusterRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clusters",
			Name:      "refreshes_total",
			Help:      "District risk cluster refreshes by outcome.",
		}, []string{"outcome"}),
		MigrationRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clusters",
			Name:      "migration_runs_total",
			Help:      "Live to historical cluster migrations by final status.",
		}, []string{"status"}),
		RealtimeClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "clients",
			Help:      "Connected websocket clients.",
		}),
	}
}

// ObserveAggregation records one aggregation of the given kind.
func (m *Metrics) ObserveAggregation(kind string, d time.Duration, incidents int) {
	m.AggregationDuration.WithLabelValues(kind).Observe(d.Seconds())
	m.IncidentsAggregated.WithLabelValues(kind).Set(float64(incidents))
}

// CacheLookup records a hit or miss in a cache layer.
func (m *Metrics) CacheLookup(layer string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheLookups.WithLabelValues(layer, outcome).Inc()
}

// ClusterRefresh records a refresh outcome.
func (m *Metrics) ClusterRefresh(outcome string) {
	m.ClusterRefreshes.WithLabelValues(outcome).Inc()
}

// MigrationRun records a finished migration.
func (m *Metrics) MigrationRun(status string) {
	m.MigrationRuns.WithLabelValues(status).Inc()
}

// ClientsConnected sets the websocket client gauge.
func (m *Metrics) ClientsConnected(n int) {
	m.RealtimeClients.Set(float64(n))
}
