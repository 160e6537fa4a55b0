package agent

import (
	"context"
	"sort"

	"github.com/cloudhands/burst/pkg/gateway"
	"github.com/cloudhands/burst/pkg/log"
	"github.com/cloudhands/burst/pkg/message"
	"github.com/cloudhands/burst/pkg/metrics"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/store"
)

// PreOperationalAgent wires NAT and firewall rules for NAT-routed
// appliances, allocating one free public IP from the organisation's
// subscription pool; non-NAT-routed appliances pass straight through.
type PreOperationalAgent struct {
	store       store.Store
	gw          gateway.Gateway
	componentID int64
	workChan    chan Job
}

// NewPreOperationalAgent constructs the pre_operational trigger agent.
func NewPreOperationalAgent(s store.Store, gw gateway.Gateway, componentID int64) *PreOperationalAgent {
	return &PreOperationalAgent{store: s, gw: gw, componentID: componentID, workChan: make(chan Job, 16)}
}

func (a *PreOperationalAgent) Name() string { return "pre_operational" }

func (a *PreOperationalAgent) Jobs(s store.Store) ([]Job, error) {
	return jobsInState(s, model.KindAppliance, "pre_operational")
}

func (a *PreOperationalAgent) WorkChan() chan Job { return a.workChan }

func (a *PreOperationalAgent) Callbacks() []Callback {
	actor := func() model.Actor { return ControllerActor(a.componentID) }
	return []Callback{
		{
			Sample: message.Operational{},
			Handler: func(s store.Store, msg any) (model.Touch, error) {
				m := msg.(message.Operational)
				var resources []model.Resource
				if m.IPInt != "" && m.IPExt != "" {
					// The provider id is what NATRoutingsFor selects on.
					artifact, err := s.Artifact(m.UUID)
					if err != nil {
						return model.Touch{}, err
					}
					sub, err := s.SubscriptionFor(artifact.OrganisationID)
					if err != nil {
						return model.Touch{}, err
					}
					resources = append(resources, model.Resource{Kind: model.ResourceNATRouting, ProviderID: sub.ProviderID, IPInt: m.IPInt, IPExt: m.IPExt})
				}
				return AppendTouchValidated(s, m.UUID, actor(), "operational", resources)
			},
		},
		{
			Sample: message.ResourceConstrained{},
			Handler: func(s store.Store, msg any) (model.Touch, error) {
				m := msg.(message.ResourceConstrained)
				return AppendTouchValidated(s, m.UUID, actor(), "pre_stop", nil)
			},
		},
	}
}

func (a *PreOperationalAgent) Run(ctx context.Context, out chan<- any) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-a.workChan:
			a.process(ctx, job, out)
		}
	}
}

func (a *PreOperationalAgent) process(ctx context.Context, job Job, out chan<- any) {
	natRouted := job.Artifact.CatalogueChoice != nil && job.Artifact.CatalogueChoice.NATRouted
	if !natRouted {
		select {
		case out <- message.Operational{UUID: job.UUID}:
		case <-ctx.Done():
		}
		return
	}

	sub, err := a.store.SubscriptionFor(job.Artifact.OrganisationID)
	if err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("pre_operational: resolve subscription")
		return
	}
	provider, err := a.store.Provider(sub.ProviderID)
	if err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("pre_operational: resolve provider")
		return
	}

	ipInt, err := a.internalIP(job.Artifact.ID)
	if err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("pre_operational: resolve internal IP")
		return
	}

	ipExt, ok, err := a.allocateFreeIP(sub.ArtifactID, provider.ID)
	if err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("pre_operational: compute free IP pool")
		return
	}
	if !ok {
		metrics.NATAllocationFailuresTotal.WithLabelValues(provider.Name).Inc()
		select {
		case out <- message.ResourceConstrained{UUID: job.UUID}:
		case <-ctx.Done():
		}
		return
	}

	if err := a.gw.ApplyNAT(ctx, provider, credentialFrom(job.Token), ipInt, ipExt); err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("pre_operational: apply NAT rule")
		return
	}
	if err := a.gw.ApplyFirewall(ctx, provider, credentialFrom(job.Token), ipExt); err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("pre_operational: apply firewall rule")
		return
	}

	select {
	case out <- message.Operational{UUID: job.UUID, IPInt: ipInt, IPExt: ipExt}:
	case <-ctx.Done():
	}
}

func (a *PreOperationalAgent) internalIP(artifactID int64) (string, error) {
	resources, err := a.store.ArtifactResources(artifactID)
	if err != nil {
		return "", err
	}
	for i := len(resources) - 1; i >= 0; i-- {
		if resources[i].Kind == model.ResourceIPAddress {
			return resources[i].Value, nil
		}
	}
	return "", nil
}

// allocateFreeIP implements "pool = subscription IPs − used NAT
// externals", popping the lexicographically smallest free address so
// the choice is deterministic and testable.
func (a *PreOperationalAgent) allocateFreeIP(subscriptionArtifactID, providerID int64) (string, bool, error) {
	pool, err := a.store.IPPoolFor(subscriptionArtifactID)
	if err != nil {
		return "", false, err
	}
	taken, err := a.store.NATRoutingsFor(providerID)
	if err != nil {
		return "", false, err
	}
	takenSet := make(map[string]bool, len(taken))
	for _, r := range taken {
		takenSet[r.IPExt] = true
	}

	free := make([]string, 0, len(pool))
	for _, r := range pool {
		if !takenSet[r.Value] {
			free = append(free, r.Value)
		}
	}
	if len(free) == 0 {
		return "", false, nil
	}
	sort.Strings(free)
	return free[0], true, nil
}
