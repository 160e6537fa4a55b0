package agent

import (
	"context"
	"strings"

	"github.com/cloudhands/burst/pkg/gateway"
	"github.com/cloudhands/burst/pkg/log"
	"github.com/cloudhands/burst/pkg/message"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/store"
	"github.com/cloudhands/burst/pkg/xmlnav"
)

// PreCheckAgent fetches a vApp's description and decides whether it has
// become operational, is still awaiting network/customisation wiring, or
// has regressed to needing the customisation script reinstalled.
type PreCheckAgent struct {
	store       store.Store
	gw          gateway.Gateway
	componentID int64
	workChan    chan Job
}

// NewPreCheckAgent constructs the pre_check trigger agent.
func NewPreCheckAgent(s store.Store, gw gateway.Gateway, componentID int64) *PreCheckAgent {
	return &PreCheckAgent{store: s, gw: gw, componentID: componentID, workChan: make(chan Job, 16)}
}

func (a *PreCheckAgent) Name() string { return "pre_check" }

func (a *PreCheckAgent) Jobs(s store.Store) ([]Job, error) {
	return jobsInState(s, model.KindAppliance, "pre_check")
}

func (a *PreCheckAgent) WorkChan() chan Job { return a.workChan }

func (a *PreCheckAgent) Callbacks() []Callback {
	actor := func() model.Actor { return ControllerActor(a.componentID) }
	return []Callback{
		{
			Sample: message.CheckedAsOperational{},
			Handler: func(s store.Store, msg any) (model.Touch, error) {
				m := msg.(message.CheckedAsOperational)
				return AppendTouchValidated(s, m.UUID, actor(), "operational", reportResources(m.Provider, m.IP, m.Creation))
			},
		},
		{
			Sample: message.CheckedAsPreOperational{},
			Handler: func(s store.Store, msg any) (model.Touch, error) {
				m := msg.(message.CheckedAsPreOperational)
				resources := reportResources(m.Provider, m.IP, m.Creation)
				if m.IP != "" {
					resources = append(resources, model.Resource{Kind: model.ResourceIPAddress, Value: m.IP})
				}
				return AppendTouchValidated(s, m.UUID, actor(), "pre_operational", resources)
			},
		},
		{
			Sample: message.CheckedAsProvisioning{},
			Handler: func(s store.Store, msg any) (model.Touch, error) {
				m := msg.(message.CheckedAsProvisioning)
				return AppendTouchValidated(s, m.UUID, actor(), "provisioning", nil)
			},
		},
	}
}

func reportResources(provider, ip, creation string) []model.Resource {
	return []model.Resource{{Kind: model.ResourceProviderReport, Creation: creation}}
}

func (a *PreCheckAgent) Run(ctx context.Context, out chan<- any) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-a.workChan:
			a.process(ctx, job, out)
		}
	}
}

func (a *PreCheckAgent) process(ctx context.Context, job Job, out chan<- any) {
	resources, err := a.store.ArtifactResources(job.Artifact.ID)
	if err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("pre_check: load resources")
		return
	}
	var uri string
	for _, r := range resources {
		if r.Kind == model.ResourceNode {
			uri = r.URI
		}
	}
	if uri == "" {
		log.Logger.Error().Str("uuid", job.UUID).Msg("pre_check: no Node resource recorded")
		return
	}

	sub, err := a.store.SubscriptionFor(job.Artifact.OrganisationID)
	if err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("pre_check: resolve subscription")
		return
	}
	provider, err := a.store.Provider(sub.ProviderID)
	if err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("pre_check: resolve provider")
		return
	}

	tree, err := a.gw.Describe(ctx, provider, credentialFrom(job.Token), uri)
	if err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("pre_check: describe vApp")
		return
	}

	msg := a.decide(job.UUID, provider.Name, tree)

	select {
	case out <- msg:
	case <-ctx.Done():
	}
}

// decide implements the PreCheck decision rule in §4.4: look for the
// customisation script first (its absence sends the artifact back to
// provisioning), then the network connection, then weigh the script
// body length and any prior operational report to choose between
// operational and pre-operational.
func (a *PreCheckAgent) decide(uuid, providerName string, tree *xmlnav.Element) any {
	creation := "unknown"

	scripts := xmlnav.FindByType(tree, xmlnav.MIMEGuestCustomizationSection)
	if len(scripts) == 0 {
		return message.CheckedAsProvisioning{UUID: uuid, Provider: providerName}
	}

	ip := ""
	conns := xmlnav.FindByType(tree, xmlnav.MIMENetworkConnectionSection)
	if len(conns) == 0 {
		creation = "undeployed"
	} else if nc, ok := conns[0].Child("NetworkConnection"); ok {
		if ipElem, ok := nc.Child("IpAddress"); ok {
			ip = ipElem.CharData
		}
	}

	if deployed, ok := tree.Attr("deployed"); ok && deployed == "true" {
		creation = "deployed"
	}

	script, ok := scripts[0].Child("CustomizationScript")
	if !ok || lineCount(script.CharData) <= 5 {
		return message.CheckedAsProvisioning{UUID: uuid, Provider: providerName}
	}

	seenOperational, err := a.hasOperationalHistory(uuid)
	if err != nil {
		log.Logger.Error().Err(err).Str("uuid", uuid).Msg("pre_check: check operational history")
	}
	if seenOperational {
		return message.CheckedAsOperational{UUID: uuid, Provider: providerName, IP: ip, Creation: creation}
	}
	return message.CheckedAsPreOperational{UUID: uuid, Provider: providerName, IP: ip, Creation: creation}
}

func (a *PreCheckAgent) hasOperationalHistory(uuid string) (bool, error) {
	artifact, err := a.store.Artifact(uuid)
	if err != nil {
		return false, err
	}
	touches, err := a.store.Touches(artifact.ID)
	if err != nil {
		return false, err
	}
	for _, t := range touches {
		if t.State.Name == "operational" {
			return true, nil
		}
	}
	return false, nil
}

func lineCount(s string) int {
	if strings.TrimSpace(s) == "" {
		return 0
	}
	return len(strings.Split(s, "\n"))
}
