package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudhands/burst/pkg/fsm"
	"github.com/cloudhands/burst/pkg/log"
	"github.com/cloudhands/burst/pkg/message"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/store"
)

// Token is the credential triple a Job carries: the provider it was
// issued for, and the HTTP header name/value pair to attach to requests
// made on the artifact's behalf. A nil *Token means no credential was
// found; the agent proceeds without one and logs a warning.
type Token struct {
	ProviderName string
	HeaderKey    string
	HeaderValue  string
}

// Job is the explicit record type replacing the source's duck-typed
// (uuid, token, artifact) tuple.
type Job struct {
	UUID     string
	Artifact model.Artifact
	Token    *Token
}

// Callback pairs a message's zero value (used only to key the dispatcher
// by its concrete type) with the handler that applies it to the store.
type Callback struct {
	Sample  any
	Handler message.Handler
}

// Agent is the contract every trigger-state worker implements.
type Agent interface {
	// Name identifies the agent in logs and metrics.
	Name() string

	// Jobs is a pure query over the store: every artifact currently
	// sitting in this agent's trigger state, each wrapped with its
	// resolved Token.
	Jobs(s store.Store) ([]Job, error)

	// WorkChan is the bounded channel the scheduler enqueues Jobs onto.
	WorkChan() chan Job

	// Callbacks lists the (message type, handler) pairs this agent
	// registers with the dispatcher at construction time.
	Callbacks() []Callback

	// Run blocks on WorkChan until ctx is cancelled, issuing provider
	// calls for each Job and pushing the resulting message onto out.
	Run(ctx context.Context, out chan<- any)
}

// SelectToken implements the token retrieval rule: the most-recent
// ProviderToken whose Touch's actor equals the artifact's first-Touch
// actor, for the provider the artifact's organisation subscribes to. It
// returns a nil Token, not an error, when none exists, and logs a warning;
// the agent then proceeds without credentials per §4.3.
func SelectToken(s store.Store, artifact model.Artifact) (tok *Token, err error) {
	defer func() {
		if tok == nil && err == nil {
			log.Logger.Warn().Str("uuid", artifact.UUID).Msg("agent: no provider token; proceeding without credentials")
		}
	}()
	sub, err := s.SubscriptionFor(artifact.OrganisationID)
	if err != nil {
		return nil, err
	}
	provider, err := s.Provider(sub.ProviderID)
	if err != nil {
		return nil, err
	}

	touches, err := s.Touches(artifact.ID)
	if err != nil {
		return nil, err
	}
	if len(touches) == 0 {
		return nil, nil
	}
	firstActor := model.FirstActor(touches)
	if firstActor.Kind != model.ActorUser {
		return nil, nil
	}

	records, err := s.ProviderTokensFor(provider.ID, firstActor.ID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	// ProviderTokensFor is already ordered most-recent first.
	rec := records[0]
	return &Token{
		ProviderName: provider.Name,
		HeaderKey:    rec.Resource.TokenKey,
		HeaderValue:  rec.Resource.TokenValue,
	}, nil
}

// jobsInState is the query every concrete agent's Jobs method wraps:
// every artifact of kind in state, each resolved to a Job with its token.
func jobsInState(s store.Store, kind model.Kind, state string) ([]Job, error) {
	artifacts, err := s.ArtifactsInState(kind, state)
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(artifacts))
	for _, a := range artifacts {
		tok, err := SelectToken(s, a)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, Job{UUID: a.UUID, Artifact: a, Token: tok})
	}
	return jobs, nil
}

// AppendTouchValidated is the one path every callback handler uses to
// commit a state-advancing Touch: it loads the artifact's current state,
// checks the transition against fsm.Default, and only then opens the
// transaction that writes the Touch and its resources. A transition the
// registry rejects never opens a transaction at all, matching the
// contract AppendTouch documents ("callers validate before calling").
func AppendTouchValidated(s store.Store, artifactUUID string, actor model.Actor, toState string, resources []model.Resource) (model.Touch, error) {
	artifact, err := s.Artifact(artifactUUID)
	if err != nil {
		return model.Touch{}, fmt.Errorf("agent: look up artifact %s: %w", artifactUUID, err)
	}

	current, err := s.LatestTouch(artifact.ID)
	if err != nil {
		return model.Touch{}, fmt.Errorf("agent: latest touch of %s: %w", artifactUUID, err)
	}

	if err := fsm.Default.CanTransition(artifact.Kind, current.State.Name, toState); err != nil {
		return model.Touch{}, fmt.Errorf("agent: %s: %w", artifactUUID, err)
	}

	tx, err := s.Begin()
	if err != nil {
		return model.Touch{}, err
	}
	touch, err := tx.AppendTouch(artifact.ID, actor, toState, time.Now(), resources)
	if err != nil {
		tx.Rollback()
		return model.Touch{}, fmt.Errorf("agent: append touch for %s: %w", artifactUUID, err)
	}
	if err := tx.Commit(); err != nil {
		return model.Touch{}, fmt.Errorf("agent: commit touch for %s: %w", artifactUUID, err)
	}
	return touch, nil
}

// ControllerActor is the Actor every agent-originated Touch is recorded
// under; it is resolved once at boot from the "burst.controller"
// components row.
func ControllerActor(componentID int64) model.Actor {
	return model.Actor{Kind: model.ActorComponent, ID: componentID}
}

// resolveNodeAndProvider is the lookup PreStart, PreStop and PreDelete all
// need before issuing their single provider call: the vApp's href and the
// Provider it was composed under.
func resolveNodeAndProvider(s store.Store, artifact model.Artifact) (uri string, provider model.Provider, err error) {
	resources, err := s.ArtifactResources(artifact.ID)
	if err != nil {
		return "", model.Provider{}, err
	}
	for _, r := range resources {
		if r.Kind == model.ResourceNode {
			uri = r.URI
		}
	}
	if uri == "" {
		return "", model.Provider{}, fmt.Errorf("agent: artifact %s has no Node resource", artifact.UUID)
	}

	sub, err := s.SubscriptionFor(artifact.OrganisationID)
	if err != nil {
		return "", model.Provider{}, err
	}
	provider, err = s.Provider(sub.ProviderID)
	if err != nil {
		return "", model.Provider{}, err
	}
	return uri, provider, nil
}
