// Package metrics defines every Prometheus metric the controller
// exposes, grouped by the component that records it: the scheduler's
// pending-set size and tick cadence, each agent's job/message/touch
// counts, the provider gateway's request latency and circuit breaker
// state, token ingress volume, and the reconciler's invariant-violation
// counts. Handler returns the promhttp handler burstd mounts at
// /metrics.
package metrics
