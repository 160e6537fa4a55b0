package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler metrics

	PendingSetSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burst_pending_set_size",
			Help: "Number of artifacts currently held in the scheduler's dispatched-but-unresolved pending set",
		},
	)

	SchedulerTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "burst_scheduler_tick_duration_seconds",
			Help: "Time taken for one scheduler tick across all agents",
		},
	)

	SchedulerTickInterval = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burst_scheduler_tick_interval_seconds",
			Help: "Current sleep interval between scheduler ticks (busy/idle variable rate)",
		},
	)

	DispatchDeadlineEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burst_dispatch_deadline_evictions_total",
			Help: "Total artifacts forcibly evicted from the pending set after exceeding the dispatch deadline",
		},
		[]string{"agent"},
	)

	// Agent metrics

	JobsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burst_jobs_dispatched_total",
			Help: "Total jobs enqueued onto an agent's work channel",
		},
		[]string{"agent"},
	)

	MessagesDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burst_messages_dispatched_total",
			Help: "Total messages routed through the dispatcher by message type",
		},
		[]string{"message_type", "outcome"},
	)

	TouchesAppendedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burst_touches_appended_total",
			Help: "Total touches appended to artifacts by FSM kind and resulting state",
		},
		[]string{"kind", "state"},
	)

	NATAllocationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burst_nat_allocation_failures_total",
			Help: "Total times a provider's IP pool was found exhausted during allocation",
		},
		[]string{"provider"},
	)

	ArtifactsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burst_artifacts_by_state",
			Help: "Number of artifacts currently observed in a given kind/state pair",
		},
		[]string{"kind", "state"},
	)

	// Gateway metrics

	GatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "burst_gateway_request_duration_seconds",
			Help: "Duration of provider gateway HTTP calls",
		},
		[]string{"provider", "operation"},
	)

	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burst_gateway_requests_total",
			Help: "Total provider gateway HTTP calls by outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)

	GatewayCircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burst_gateway_circuit_breaker_state",
			Help: "Circuit breaker state per provider (0 = closed, 1 = half-open, 2 = open)",
		},
		[]string{"provider"},
	)

	// Token ingress metrics

	TokensReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burst_tokens_received_total",
			Help: "Total credential tokens read off a named pipe, by provider",
		},
		[]string{"provider"},
	)

	// Reconciler metrics

	ReconcilerInvariantViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burst_reconciler_invariant_violations_total",
			Help: "Total invariant violations detected by the periodic reconciler",
		},
		[]string{"invariant"},
	)

	ReconcilerRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "burst_reconciler_run_duration_seconds",
			Help: "Duration of one reconciler sweep",
		},
	)
)

func init() {
	prometheus.MustRegister(
		PendingSetSize,
		SchedulerTickDuration,
		SchedulerTickInterval,
		DispatchDeadlineEvictionsTotal,
		JobsDispatchedTotal,
		MessagesDispatchedTotal,
		TouchesAppendedTotal,
		NATAllocationFailuresTotal,
		ArtifactsByState,
		GatewayRequestDuration,
		GatewayRequestsTotal,
		GatewayCircuitBreakerState,
		TokensReceivedTotal,
		ReconcilerInvariantViolationsTotal,
		ReconcilerRunDuration,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for recording into a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Observer) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
