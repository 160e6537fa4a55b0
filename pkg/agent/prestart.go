package agent

import (
	"context"

	"github.com/cloudhands/burst/pkg/gateway"
	"github.com/cloudhands/burst/pkg/log"
	"github.com/cloudhands/burst/pkg/message"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/store"
)

// PreStartAgent issues a deploy request with powerOn=true and emits
// Running on success.
type PreStartAgent struct {
	store       store.Store
	gw          gateway.Gateway
	componentID int64
	workChan    chan Job
}

// NewPreStartAgent constructs the pre_start trigger agent.
func NewPreStartAgent(s store.Store, gw gateway.Gateway, componentID int64) *PreStartAgent {
	return &PreStartAgent{store: s, gw: gw, componentID: componentID, workChan: make(chan Job, 16)}
}

func (a *PreStartAgent) Name() string { return "pre_start" }

func (a *PreStartAgent) Jobs(s store.Store) ([]Job, error) {
	return jobsInState(s, model.KindAppliance, "pre_start")
}

func (a *PreStartAgent) WorkChan() chan Job { return a.workChan }

func (a *PreStartAgent) Callbacks() []Callback {
	return []Callback{{
		Sample: message.Running{},
		Handler: func(s store.Store, msg any) (model.Touch, error) {
			m := msg.(message.Running)
			return AppendTouchValidated(s, m.UUID, ControllerActor(a.componentID), "running", nil)
		},
	}}
}

func (a *PreStartAgent) Run(ctx context.Context, out chan<- any) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-a.workChan:
			a.process(ctx, job, out)
		}
	}
}

func (a *PreStartAgent) process(ctx context.Context, job Job, out chan<- any) {
	uri, provider, err := resolveNodeAndProvider(a.store, job.Artifact)
	if err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("pre_start: resolve node/provider")
		return
	}
	if err := a.gw.Deploy(ctx, provider, credentialFrom(job.Token), uri, true); err != nil {
		log.Logger.Error().Err(err).Str("uuid", job.UUID).Msg("pre_start: deploy")
		return
	}
	select {
	case out <- message.Running{UUID: job.UUID}:
	case <-ctx.Done():
	}
}
