package agent

import (
	"context"

	"github.com/cloudhands/burst/pkg/gateway"
	"github.com/cloudhands/burst/pkg/log"
	"github.com/cloudhands/burst/pkg/message"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/store"
)

// PreStopAgent issues an undeploy request and emits Stopped on success.
type PreStopAgent struct {
	store       store.Store
	gw          gateway.Gateway
	componentID int64
	workChan    chan Job
}

// NewPreStopAgent constructs the pre_stop trigger agent.
func NewPreStopAgent(s store.Store, gw gateway.Gateway, componentID int64) *PreStopAgent {
	return &PreStopAgent{store: s, gw: gw, componentID: componentID, workChan: make(chan Job, 16)}
}

func (a *PreStopAgent) Name() string { return "pre_stop" }

func (a *PreStopAgent) Jobs(s store.Store) ([]Job, error) {
	return jobsInState(s, model.KindAppliance, "pre_stop")
}

func (a *PreStopAgent) WorkChan() chan Job { return a.workChan }

func (a *PreStopAgent) Callbacks() []Callback {
	return []Callback{{
		Sample: message.Stopped{},
		Handler: func(s store.Store, msg any) (model.Touch, error) {
			m := msg.(message.Stopped)
			return AppendTouchValidated(s, m.UUID, ControllerActor(a.componentID), "stopped", nil)
		},
	}}
}

func (a *PreStopAgent) Run(ctx context.Context, out chan<- any) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-a.workChan:
			a.process(ctx, job, out)
		}
	}
}

func (a *PreStopAgent) process(ctx context.Context, job Job, out chan<- any) {
	uri, provider, err := resolveNodeAndProvider(a.store, job.Artifact)
	if err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("pre_stop: resolve node/provider")
		return
	}
	if err := a.gw.Undeploy(ctx, provider, credentialFrom(job.Token), uri); err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("pre_stop: undeploy")
		return
	}
	select {
	case out <- message.Stopped{UUID: job.UUID}:
	case <-ctx.Done():
	}
}
