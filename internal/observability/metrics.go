// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Collection metrics
	CollectionsTotal     *prometheus.CounterVec
	CollectionDuration   prometheus.Histogram
	SnapshotsStored      prometheus.Counter
	ChannelsUpserted     prometheus.Counter
	BalanceDiscrepancies prometheus.Counter

	// Provider metrics
	ProviderCallLatency *prometheus.HistogramVec
	ProviderCallErrors  *prometheus.CounterVec

	// Pipeline metrics
	EvaluationsTotal        *prometheus.CounterVec
	NodesSkipped            prometheus.Counter
	RecommendationsEmitted  *prometheus.CounterVec
	ActionsCreated          *prometheus.CounterVec
	ActionsDeduplicated     prometheus.Counter
	ActionStatusTransitions *prometheus.CounterVec

	// Health metrics
	LastSuccessfulCollection prometheus.Gauge
	LastSuccessfulEvaluation prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "lightdash"
	}

	return &Metrics{
		// Collection metrics
		CollectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "runs_total",
			Help:      "Total number of collection runs by status",
		}, []string{"status"}),
		CollectionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "duration_seconds",
			Help:      "Collection run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		SnapshotsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "snapshots_stored_total",
			Help:      "Total number of node snapshots stored",
		}),
		ChannelsUpserted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "channels_upserted_total",
			Help:      "Total number of channel records upserted",
		}),
		BalanceDiscrepancies: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "balance_discrepancies_total",
			Help:      "Total number of snapshots with nonzero balance discrepancy",
		}),

		// Provider metrics
		ProviderCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_latency_seconds",
			Help:      "External provider call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "method"}),
		ProviderCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_errors_total",
			Help:      "Total number of external provider call errors",
		}, []string{"provider", "method"}),

		// Pipeline metrics
		EvaluationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "evaluations_total",
			Help:      "Total number of node evaluations by status",
		}, []string{"status"}),
		NodesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "nodes_skipped_total",
			Help:      "Total number of nodes skipped due to malformed input",
		}),
		RecommendationsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "recommendations_emitted_total",
			Help:      "Total number of recommendations emitted by kind",
		}, []string{"kind"}),
		ActionsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "actions_created_total",
			Help:      "Total number of actions created by kind",
		}, []string{"kind"}),
		ActionsDeduplicated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "actions_deduplicated_total",
			Help:      "Total number of creates answered by an existing action",
		}),
		ActionStatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "status_transitions_total",
			Help:      "Total number of action status transitions",
		}, []string{"status"}),

		// Health metrics
		LastSuccessfulCollection: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_collection_timestamp",
			Help:      "Unix timestamp of last successful collection run",
		}),
		LastSuccessfulEvaluation: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_evaluation_timestamp",
			Help:      "Unix timestamp of last successful evaluation run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
