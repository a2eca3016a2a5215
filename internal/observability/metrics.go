package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain metrics. Label sets are small, fixed enumerations.
var (
	// VotesClosed counts OPEN -> CLOSED transitions by trigger
	// ("sweep" or "response").
	VotesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votes_closed_total",
			Help: "Votes transitioned to CLOSED.",
		},
		[]string{"trigger"},
	)

	// GuidesGenerated counts guide generation outcomes
	// ("created", "exists", "failed").
	GuidesGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guides_generated_total",
			Help: "Guide generation attempts by result.",
		},
		[]string{"result"},
	)

	// QuotaRejections counts user AI calls refused by the daily quota.
	QuotaRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_quota_rejections_total",
			Help: "AI calls rejected because the daily quota was exhausted.",
		},
	)

	// PoolOverflow counts tasks run inline because a pool queue was full.
	PoolOverflow = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_pool_overflow_total",
			Help: "Tasks executed on the caller because the queue was full.",
		},
		[]string{"pool"},
	)

	// PoolQueueDepth gauges tasks waiting in a pool queue.
	PoolQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_pool_queue_depth",
			Help: "Tasks waiting in the worker pool queue.",
		},
		[]string{"pool"},
	)

	// SweepDuration observes how long each closure sweep takes.
	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "closure_sweep_duration_seconds",
			Help:    "Duration of closure sweeps in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(VotesClosed, GuidesGenerated, QuotaRejections, PoolOverflow, PoolQueueDepth, SweepDuration)
}
