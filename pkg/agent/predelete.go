package agent

import (
	"context"

	"github.com/cloudhands/burst/pkg/gateway"
	"github.com/cloudhands/burst/pkg/log"
	"github.com/cloudhands/burst/pkg/message"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/store"
)

// PreDeleteAgent DELETEs the vApp and emits Deleted on success, moving
// the artifact into its terminal state.
type PreDeleteAgent struct {
	store       store.Store
	gw          gateway.Gateway
	componentID int64
	workChan    chan Job
}

// NewPreDeleteAgent constructs the pre_delete trigger agent.
func NewPreDeleteAgent(s store.Store, gw gateway.Gateway, componentID int64) *PreDeleteAgent {
	return &PreDeleteAgent{store: s, gw: gw, componentID: componentID, workChan: make(chan Job, 16)}
}

func (a *PreDeleteAgent) Name() string { return "pre_delete" }

func (a *PreDeleteAgent) Jobs(s store.Store) ([]Job, error) {
	return jobsInState(s, model.KindAppliance, "pre_delete")
}

func (a *PreDeleteAgent) WorkChan() chan Job { return a.workChan }

func (a *PreDeleteAgent) Callbacks() []Callback {
	return []Callback{{
		Sample: message.Deleted{},
		Handler: func(s store.Store, msg any) (model.Touch, error) {
			m := msg.(message.Deleted)
			return AppendTouchValidated(s, m.UUID, ControllerActor(a.componentID), "deleted", nil)
		},
	}}
}

func (a *PreDeleteAgent) Run(ctx context.Context, out chan<- any) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-a.workChan:
			a.process(ctx, job, out)
		}
	}
}

func (a *PreDeleteAgent) process(ctx context.Context, job Job, out chan<- any) {
	uri, provider, err := resolveNodeAndProvider(a.store, job.Artifact)
	if err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("pre_delete: resolve node/provider")
		return
	}
	if err := a.gw.Delete(ctx, provider, credentialFrom(job.Token), uri); err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("pre_delete: delete")
		return
	}
	select {
	case out <- message.Deleted{UUID: job.UUID}:
	case <-ctx.Done():
	}
}
