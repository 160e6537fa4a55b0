package agent

import (
	"context"
	"time"

	"github.com/cloudhands/burst/pkg/gateway"
	"github.com/cloudhands/burst/pkg/log"
	"github.com/cloudhands/burst/pkg/message"
	"github.com/cloudhands/burst/pkg/metrics"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/store"
	"github.com/cloudhands/burst/pkg/tokenpipe"
)

// TokenIngressAgent is the eighth agent named in the expansion: it owns
// no FSM trigger state. Its Jobs is always empty — it is driven by pipe
// reads, not store polling — and its Run goroutine tails one named pipe
// per configured provider instead of draining a work channel of Jobs.
type TokenIngressAgent struct {
	store       store.Store
	gw          gateway.Gateway
	componentID int64
	readers     []*tokenpipe.Reader
	workChan    chan Job
}

// NewTokenIngressAgent constructs the ingress agent over one already-open
// tokenpipe.Reader per configured provider pipe.
func NewTokenIngressAgent(s store.Store, gw gateway.Gateway, componentID int64, readers []*tokenpipe.Reader) *TokenIngressAgent {
	return &TokenIngressAgent{store: s, gw: gw, componentID: componentID, readers: readers, workChan: make(chan Job)}
}

func (a *TokenIngressAgent) Name() string { return "token_ingress" }

// Jobs is always empty; this agent never appears in any agent's
// store-polling trigger-state query.
func (a *TokenIngressAgent) Jobs(_ store.Store) ([]Job, error) { return nil, nil }

func (a *TokenIngressAgent) WorkChan() chan Job { return a.workChan }

func (a *TokenIngressAgent) Callbacks() []Callback {
	return []Callback{{
		Sample: message.TokenReceived{},
		Handler: func(s store.Store, msg any) (model.Touch, error) {
			m := msg.(message.TokenReceived)
			artifact, err := s.Artifact(m.UUID)
			if err != nil {
				return model.Touch{}, err
			}
			current, err := s.LatestTouch(artifact.ID)
			if err != nil {
				return model.Touch{}, err
			}
			// Re-uses the Registration's current state: a benign audit
			// entry recording token arrival, not a state transition.
			return AppendTouchValidated(s, m.UUID, ControllerActor(a.componentID), current.State.Name,
				[]model.Resource{{Kind: model.ResourceProviderToken, TokenKey: m.Key, TokenValue: m.Value}})
		},
	}}
}

// Run starts one goroutine per configured pipe reader and forwards
// TokenReceived messages to out until ctx is cancelled.
func (a *TokenIngressAgent) Run(ctx context.Context, out chan<- any) {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(done)
	}()

	for _, r := range a.readers {
		go r.Run(done)
		go a.forward(ctx, r, out)
	}
	<-ctx.Done()
}

func (a *TokenIngressAgent) forward(ctx context.Context, r *tokenpipe.Reader, out chan<- any) {
	for {
		select {
		case rec, ok := <-r.C:
			if !ok {
				return
			}
			a.exchange(ctx, rec, out)
		case <-ctx.Done():
			return
		}
	}
}

func (a *TokenIngressAgent) exchange(ctx context.Context, rec tokenpipe.Record, out chan<- any) {
	provider, err := a.store.ProviderByName(rec.ProviderName)
	if err != nil {
		log.Logger.Error().Err(err).Str("provider", rec.ProviderName).Msg("token_ingress: resolve provider")
		return
	}

	cred, err := a.gw.Authenticate(ctx, provider, rec.UserName, rec.UserPass)
	if err != nil {
		log.Logger.Error().Err(err).Str("uuid", rec.RegistrationUUID).Msg("token_ingress: authenticate")
		return
	}
	metrics.TokensReceivedTotal.WithLabelValues(rec.ProviderName).Inc()

	msg := message.TokenReceived{
		UUID:     rec.RegistrationUUID,
		At:       time.Now(),
		Provider: rec.ProviderName,
		Key:      cred.HeaderKey,
		Value:    cred.HeaderValue,
	}
	select {
	case out <- msg:
	case <-ctx.Done():
	}
}
