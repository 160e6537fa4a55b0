package agent

import (
	"context"
	"time"

	"github.com/cloudhands/burst/pkg/gateway"
	"github.com/cloudhands/burst/pkg/log"
	"github.com/cloudhands/burst/pkg/message"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/store"
)

// DefaultProvisioningDwell is the minimum time an artifact must have sat
// in "provisioning" before ProvisioningAgent will pick it up, giving the
// compose operation time to finish host-side before the customisation
// script install is attempted.
const DefaultProvisioningDwell = 20 * time.Second

// ProvisioningAgent installs the guest customisation script once an
// artifact has dwelt in "provisioning" for at least Dwell, then emits
// CheckRequired.
type ProvisioningAgent struct {
	store       store.Store
	gw          gateway.Gateway
	componentID int64
	workChan    chan Job
	Dwell       time.Duration
	Script      string
}

// NewProvisioningAgent constructs the provisioning trigger agent with the
// default dwell time; script is the customisation script body installed
// on every composed vApp.
func NewProvisioningAgent(s store.Store, gw gateway.Gateway, componentID int64, script string) *ProvisioningAgent {
	return &ProvisioningAgent{
		store: s, gw: gw, componentID: componentID,
		workChan: make(chan Job, 16), Dwell: DefaultProvisioningDwell, Script: script,
	}
}

func (a *ProvisioningAgent) Name() string { return "provisioning" }

func (a *ProvisioningAgent) Jobs(s store.Store) ([]Job, error) {
	artifacts, err := s.ArtifactsInState(model.KindAppliance, "provisioning")
	if err != nil {
		return nil, err
	}
	var jobs []Job
	for _, art := range artifacts {
		touch, err := s.LatestTouch(art.ID)
		if err != nil {
			return nil, err
		}
		if time.Since(touch.At) < a.Dwell {
			continue
		}
		tok, err := SelectToken(s, art)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, Job{UUID: art.UUID, Artifact: art, Token: tok})
	}
	return jobs, nil
}

func (a *ProvisioningAgent) WorkChan() chan Job { return a.workChan }

func (a *ProvisioningAgent) Callbacks() []Callback {
	return []Callback{{
		Sample: message.CheckRequired{},
		Handler: func(s store.Store, msg any) (model.Touch, error) {
			m := msg.(message.CheckRequired)
			return AppendTouchValidated(s, m.UUID, ControllerActor(a.componentID), "pre_check", nil)
		},
	}}
}

func (a *ProvisioningAgent) Run(ctx context.Context, out chan<- any) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-a.workChan:
			a.process(ctx, job, out)
		}
	}
}

func (a *ProvisioningAgent) process(ctx context.Context, job Job, out chan<- any) {
	resources, err := a.store.ArtifactResources(job.Artifact.ID)
	if err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("provisioning: load resources")
		return
	}
	var uri string
	for _, r := range resources {
		if r.Kind == model.ResourceNode {
			uri = r.URI
		}
	}
	if uri == "" {
		log.Logger.Error().Str("uuid", job.UUID).Msg("provisioning: no Node resource recorded")
		return
	}

	sub, err := a.store.SubscriptionFor(job.Artifact.OrganisationID)
	if err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("provisioning: resolve subscription")
		return
	}
	provider, err := a.store.Provider(sub.ProviderID)
	if err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("provisioning: resolve provider")
		return
	}

	if err := a.gw.InstallCustomization(ctx, provider, credentialFrom(job.Token), uri, a.Script); err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("provisioning: install customisation script")
		return
	}

	select {
	case out <- message.CheckRequired{UUID: job.UUID}:
	case <-ctx.Done():
	}
}
