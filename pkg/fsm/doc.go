// Package fsm holds the one-and-only definition of each Artifact kind's
// state machine. The original source imported ApplianceState from two
// different modules (common.fsm and common.states) and carried several
// near-duplicate copies of the same table; this package exists so that
// never happens here — every transition check in the repo goes through
// Registry.CanTransition, looked up by a single fsm.Name per model.Kind.
package fsm
