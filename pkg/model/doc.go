// Package model defines the persistent entities tracked by the burst
// controller: artifacts (Appliance, Registration, Membership, Subscription),
// their append-only audit trail (Touch), and the resources a Touch may carry
// (Node, IPAddress, NATRouting, ProviderToken, ProviderReport).
//
// An Artifact's current state is never stored directly: it is always the
// state of its most recent Touch. Resources are owned by the Touch that
// produced them, not by the Artifact, so "the artifact's current resources"
// means "the resources of its Touches, read in time order" rather than a
// mutable field on the artifact itself.
package model
