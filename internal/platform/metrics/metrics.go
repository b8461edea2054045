package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	AssignmentsOpened    prometheus.Counter
	AssignmentsClosed    prometheus.Counter
	CapacityRejections   prometheus.Counter
	ConcurrencyConflicts prometheus.Counter
	ConcurrencyExhausted prometheus.Counter
	AuditUpserts         prometheus.Counter
	AuditWriteFailures   prometheus.Counter
	BroadcastFailures    prometheus.Counter
	RateLimitRejections  prometheus.Counter
	CatchupLatency       prometheus.Histogram
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		AssignmentsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aims_assignments_opened_total",
			Help: "Assignments successfully opened.",
		}),
		AssignmentsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aims_assignments_closed_total",
			Help: "Assignments successfully closed.",
		}),
		CapacityRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aims_capacity_rejections_total",
			Help: "Assign calls rejected because the resource was at capacity.",
		}),
		ConcurrencyConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aims_concurrency_conflicts_total",
			Help: "Stale-token conflicts observed inside the retry loop.",
		}),
		ConcurrencyExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aims_concurrency_exhausted_total",
			Help: "Mutations that failed after exhausting all retry attempts.",
		}),
		AuditUpserts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aims_audit_upserts_total",
			Help: "Audit events inserted or overwritten.",
		}),
		AuditWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aims_audit_write_failures_total",
			Help: "Best-effort audit writes that failed and were swallowed.",
		}),
		BroadcastFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aims_broadcast_failures_total",
			Help: "Best-effort broadcast pushes that failed and were discarded.",
		}),
		RateLimitRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aims_rate_limit_rejections_total",
			Help: "Catch-up poll requests rejected with 429.",
		}),
		CatchupLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "aims_catchup_latency_seconds",
			Help:    "Latency of catch-up poll handling.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
