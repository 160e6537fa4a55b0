package store

import (
	"time"

	"github.com/cloudhands/burst/pkg/model"
)

// ProviderTokenRecord pairs a ProviderToken resource with the Touch
// attributes the token-currency rule needs: when it was recorded and who
// the owning actor was.
type ProviderTokenRecord struct {
	Resource model.Resource
	At       time.Time
	ActorID  int64
}

// Store is the persistence contract the reconciliation engine depends on.
// Every read method is eager: it returns a fully materialized slice or
// value, never a cursor or a lazy proxy.
type Store interface {
	// ArtifactsInState returns every artifact of the given kind whose most
	// recent Touch is in state. This is the query behind every agent's
	// Jobs() method.
	ArtifactsInState(kind model.Kind, state string) ([]model.Artifact, error)

	// Artifact looks up a single artifact by its external UUID.
	Artifact(uuid string) (model.Artifact, error)

	// ArtifactByID looks up a single artifact by its internal id.
	ArtifactByID(id int64) (model.Artifact, error)

	// Touches returns every Touch of an artifact, ordered by At ascending.
	Touches(artifactID int64) ([]model.Touch, error)

	// LatestTouch returns the most recent Touch of an artifact.
	LatestTouch(artifactID int64) (model.Touch, error)

	// Resources returns the resources attached to one Touch.
	Resources(touchID int64) ([]model.Resource, error)

	// ArtifactResources returns every resource attached to any Touch of an
	// artifact, in Touch time order — the eager replacement for walking
	// "artifact.changes[*].resources" as a lazy collection.
	ArtifactResources(artifactID int64) ([]model.Resource, error)

	// Organisation looks up an organisation by id.
	Organisation(id int64) (model.Organisation, error)

	// Provider looks up a provider by id.
	Provider(id int64) (model.Provider, error)

	// ProviderByName looks up a provider by its configured name.
	ProviderByName(name string) (model.Provider, error)

	// Component looks up a controller actor by its handle.
	Component(handle string) (model.Component, error)

	// SubscriptionFor returns the Subscription artifact binding an
	// organisation to its provider.
	SubscriptionFor(organisationID int64) (model.Subscription, error)

	// ProviderTokensFor returns every ProviderToken resource recorded for
	// (providerID, actorID), ordered by Touch time descending — the most
	// current token is element zero.
	ProviderTokensFor(providerID, actorID int64) ([]ProviderTokenRecord, error)

	// NATRoutingsFor returns every NATRouting resource recorded under a
	// provider, across all artifacts, used to compute the free-IP pool and
	// to check the public-IP-uniqueness invariant.
	NATRoutingsFor(providerID int64) ([]model.Resource, error)

	// IPPoolFor returns the IPAddress resources recorded against a
	// subscription artifact: the set of public addresses available to that
	// organisation's provider contract.
	IPPoolFor(subscriptionArtifactID int64) ([]model.Resource, error)

	// Begin starts a write transaction. The caller must Commit or Rollback
	// exactly once.
	Begin() (Tx, error)

	Close() error
}

// Tx is a single write transaction: one Touch, plus its resources, applied
// atomically. A message handler uses exactly one Tx per message.
type Tx interface {
	// AppendTouch records a new Touch for artifactID and persists any
	// resources alongside it, all within the same transaction. It does not
	// validate the FSM transition itself — callers run fsm.Registry's
	// CanTransition check before calling AppendTouch so that a failed
	// validation never opens a transaction at all.
	AppendTouch(artifactID int64, actor model.Actor, stateName string, at time.Time, resources []model.Resource) (model.Touch, error)

	Commit() error
	Rollback() error
}
