// Package scheduler drives every agent forward from one goroutine. It
// owns the pending set described in the controller's reconciliation
// design: a set of artifact UUIDs currently assigned to some agent,
// guaranteeing at most one outstanding job per artifact across the
// system. No other goroutine ever mutates the pending set or the store
// on the scheduler's behalf — agents only produce Jobs to read and
// messages to apply, both handled back on the scheduler goroutine.
//
// Each tick is cheap when the pending set is non-empty (100ms) and slow
// when idle (1s); a dispatch deadline evicts any uuid that has sat
// pending longer than the configured dispatch deadline (the
// scheduler.dispatch_deadline setting), guarding against an
// agent goroutine that has wedged and will never emit the message that
// would otherwise free its artifact.
package scheduler
