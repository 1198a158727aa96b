// README: Prometheus metrics for HTTP traffic and drive operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drive_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "drive_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	SessionsAssignedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "drive_sessions_assigned_total",
		Help: "Drive sessions created by admin assignment.",
	})

	CombosInsertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "drive_combos_inserted_total",
		Help: "Combo items inserted into running sessions.",
	})

	ResequenceRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "drive_config_resequence_runs_total",
		Help: "Configuration product-diff resequence operations applied.",
	})

	ConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drive_conflicts_total",
		Help: "Operations rejected with a conflict, by operation.",
	}, []string{"op"})
)
