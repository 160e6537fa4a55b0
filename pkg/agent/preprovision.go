package agent

import (
	"context"

	"github.com/cloudhands/burst/pkg/gateway"
	"github.com/cloudhands/burst/pkg/log"
	"github.com/cloudhands/burst/pkg/message"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/store"
)

// PreProvisionAgent composes a vApp from the artifact's CatalogueChoice in
// the provider's configured VDC, then emits Provisioning(uri).
type PreProvisionAgent struct {
	store       store.Store
	gw          gateway.Gateway
	componentID int64
	workChan    chan Job
}

// NewPreProvisionAgent constructs the pre_provision trigger agent.
func NewPreProvisionAgent(s store.Store, gw gateway.Gateway, componentID int64) *PreProvisionAgent {
	return &PreProvisionAgent{store: s, gw: gw, componentID: componentID, workChan: make(chan Job, 16)}
}

func (a *PreProvisionAgent) Name() string { return "pre_provision" }

func (a *PreProvisionAgent) Jobs(s store.Store) ([]Job, error) {
	return jobsInState(s, model.KindAppliance, "pre_provision")
}

func (a *PreProvisionAgent) WorkChan() chan Job { return a.workChan }

func (a *PreProvisionAgent) Callbacks() []Callback {
	return []Callback{{
		Sample: message.Provisioning{},
		Handler: func(s store.Store, msg any) (model.Touch, error) {
			m := msg.(message.Provisioning)
			return AppendTouchValidated(s, m.UUID, ControllerActor(a.componentID), "provisioning",
				[]model.Resource{{Kind: model.ResourceNode, URI: m.URI}})
		},
	}}
}

func (a *PreProvisionAgent) Run(ctx context.Context, out chan<- any) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-a.workChan:
			a.process(ctx, job, out)
		}
	}
}

func (a *PreProvisionAgent) process(ctx context.Context, job Job, out chan<- any) {
	if job.Artifact.CatalogueChoice == nil {
		log.Logger.Error().Str("uuid", job.UUID).Msg("pre_provision: artifact has no catalogue choice")
		return
	}
	sub, err := a.store.SubscriptionFor(job.Artifact.OrganisationID)
	if err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("pre_provision: resolve subscription")
		return
	}
	provider, err := a.store.Provider(sub.ProviderID)
	if err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("pre_provision: resolve provider")
		return
	}

	var label model.Label
	if job.Artifact.Label != nil {
		label = *job.Artifact.Label
	}

	uri, err := a.gw.ComposeVApp(ctx, provider, credentialFrom(job.Token), *job.Artifact.CatalogueChoice, label)
	if err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("pre_provision: compose vApp")
		return
	}

	select {
	case out <- message.Provisioning{UUID: job.UUID, URI: uri}:
	case <-ctx.Done():
	}
}

func credentialFrom(t *Token) gateway.Credential {
	if t == nil {
		return gateway.Credential{}
	}
	return gateway.Credential{HeaderKey: t.HeaderKey, HeaderValue: t.HeaderValue}
}
