package model

import "time"

// Kind identifies which of the four Artifact subtypes a row represents.
// Each Kind owns exactly one FSM (see pkg/fsm).
type Kind string

const (
	KindAppliance    Kind = "appliance"
	KindRegistration Kind = "registration"
	KindMembership   Kind = "membership"
	KindSubscription Kind = "subscription"
)

// Role is the Membership-specific attribute; it does not affect FSM shape.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Organisation owns Artifacts and holds Subscriptions to Providers.
type Organisation struct {
	ID   int64
	Name string
}

// User is a human actor; it may be the actor of a Touch and the owner of a
// ProviderToken.
type User struct {
	ID   int64
	Name string
}

// Component is a non-human actor (e.g. "burst.controller") that appears as
// the actor of controller-originated Touches.
type Component struct {
	ID     int64
	Handle string
}

// Provider describes one configured IaaS endpoint.
type Provider struct {
	ID               int64
	Name             string
	Host             string
	Port             int
	VerifySSL        bool
	APIVersion       string
	OrgName          string
	VDCName          string
	CatalogueName    string
	GatewayName      string
	GatewayInterface string
	LibcloudID       string
	PipePath         string
}

// Subscription links an Organisation to a Provider.
type Subscription struct {
	ID             int64
	ArtifactID     int64
	OrganisationID int64
	ProviderID     int64
}

// CatalogueChoice is the Appliance-only selection of image and NAT option.
type CatalogueChoice struct {
	Name      string
	NATRouted bool
}

// Label is a human-chosen name/description, attached to an Appliance.
type Label struct {
	Name        string
	Description string
}

// Artifact is the tracked entity. Kind-specific attributes are optional
// fields on the same struct (CatalogueChoice/Label for Appliance, Role for
// Membership) rather than separate subtype structs, matching the single
// wide `artifacts` table in the relational schema: the one query that
// matters most ("latest Touch per artifact") never has to branch on kind.
type Artifact struct {
	ID             int64
	UUID           string
	Kind           Kind
	ModelVersion   int
	OrganisationID int64

	CatalogueChoice *CatalogueChoice
	Label           *Label
	Role            Role
}

// ActorKind distinguishes a Touch's actor: a human User or a controller
// Component.
type ActorKind string

const (
	ActorUser      ActorKind = "user"
	ActorComponent ActorKind = "component"
)

// Actor identifies who or what produced a Touch.
type Actor struct {
	Kind ActorKind
	ID   int64
}

// State is one named node of one named FSM. A Touch may only reference a
// State whose FSM matches its Artifact's Kind.
type State struct {
	ID   int64
	FSM  string
	Name string
}

// Touch is one append-only audit entry: the artifact moved to State at time
// At, as recorded by Actor. Touches are never mutated or deleted; an
// Artifact's current state is always the State of its most recent Touch.
type Touch struct {
	ID         int64
	ArtifactID int64
	Actor      Actor
	State      State
	At         time.Time
}

// ResourceKind identifies which of the five Resource subtypes a row
// represents. Like Artifact, Resource uses one wide nullable row per kind
// rather than five separate tables, so "resources of this Touch" is a
// single scan.
type ResourceKind string

const (
	ResourceNode          ResourceKind = "node"
	ResourceIPAddress     ResourceKind = "ip_address"
	ResourceNATRouting    ResourceKind = "nat_routing"
	ResourceProviderToken ResourceKind = "provider_token"
	ResourceProviderReport ResourceKind = "provider_report"
)

// Resource is a side effect of exactly one Touch. Its lifetime is the
// Touch's lifetime: resources are never updated independently of the Touch
// that produced them.
type Resource struct {
	ID         int64
	TouchID    int64
	Kind       ResourceKind
	ProviderID int64

	// Node
	URI string

	// IPAddress
	Value string

	// NATRouting
	IPInt string
	IPExt string

	// ProviderToken
	TokenKey   string
	TokenValue string

	// ProviderReport
	Creation string
	Power    string
	Health   string
}

// String returns the resource's kind, used in log fields.
func (r Resource) String() string {
	return string(r.Kind)
}

// CurrentState returns the State of the most recent element of touches,
// which must be ordered by At ascending and non-empty. Callers normally get
// this from store.Store.LatestTouch instead of sorting touches themselves.
func CurrentState(touches []Touch) State {
	return touches[len(touches)-1].State
}

// FirstActor returns the Actor of the first (entry) Touch of an artifact,
// used by the token-currency rule in pkg/agent.
func FirstActor(touches []Touch) Actor {
	return touches[0].Actor
}

// LatestCreatedAt returns the At of the last element of touches (ordered
// by At ascending), or the zero time when touches is empty.
func LatestCreatedAt(touches []Touch) time.Time {
	if len(touches) == 0 {
		return time.Time{}
	}
	return touches[len(touches)-1].At
}
