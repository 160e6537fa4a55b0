package agent

import (
	"context"
	"testing"
	"time"

	"github.com/cloudhands/burst/pkg/message"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/tokenpipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIngressExchangeAuthenticatesAndEmitsTokenReceived(t *testing.T) {
	fs := newFakeStore()
	fs.providers[1] = model.Provider{ID: 1, Name: "prov-a"}
	fs.providersName["prov-a"] = 1
	realGW := &fakeGateway{}
	realGW.authCred.HeaderKey = "x-vcloud-authorization"
	realGW.authCred.HeaderValue = "token-abc"

	a := &TokenIngressAgent{store: fs, gw: realGW, componentID: 1, workChan: make(chan Job)}

	out := make(chan any, 1)
	rec := tokenpipe.Record{RegistrationUUID: "uuid-1", ProviderName: "prov-a", UserName: "alice", UserPass: "secret"}
	a.exchange(context.Background(), rec, out)

	require.Len(t, realGW.calls, 1)
	assert.Equal(t, "Authenticate(alice,secret)", realGW.calls[0])

	select {
	case msg := <-out:
		tok, ok := msg.(message.TokenReceived)
		require.True(t, ok, "expected message.TokenReceived, got %T", msg)
		assert.Equal(t, "uuid-1", tok.UUID)
		assert.Equal(t, "prov-a", tok.Provider)
		assert.Equal(t, "x-vcloud-authorization", tok.Key)
		assert.Equal(t, "token-abc", tok.Value)
		assert.WithinDuration(t, time.Now(), tok.At, time.Second)
	default:
		t.Fatal("expected a message on out")
	}
}

func TestTokenIngressExchangeSkipsOnUnknownProvider(t *testing.T) {
	fs := newFakeStore()
	gw := &fakeGateway{}
	a := &TokenIngressAgent{store: fs, gw: gw, componentID: 1, workChan: make(chan Job)}

	out := make(chan any, 1)
	rec := tokenpipe.Record{RegistrationUUID: "uuid-1", ProviderName: "does-not-exist", UserName: "alice", UserPass: "secret"}
	a.exchange(context.Background(), rec, out)

	assert.Empty(t, gw.calls, "Authenticate should never be called for an unresolvable provider")
	select {
	case msg := <-out:
		t.Fatalf("expected no message, got %#v", msg)
	default:
	}
}

func TestTokenIngressCallbackAppendsBenignTouchRecordingToken(t *testing.T) {
	fs := newFakeStore()
	a := &TokenIngressAgent{store: fs, gw: &fakeGateway{}, componentID: 1, workChan: make(chan Job)}

	artifact := model.Artifact{ID: 1, UUID: "uuid-1", Kind: model.KindMembership}
	fs.addArtifact(artifact)
	fs.addTouch(artifact.ID, model.Touch{State: model.State{Name: "valid"}}, nil)

	cbs := a.Callbacks()
	require.Len(t, cbs, 1)

	touch, err := cbs[0].Handler(fs, message.TokenReceived{
		UUID: "uuid-1", Provider: "prov-a", Key: "x-vcloud-authorization", Value: "token-abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "valid", touch.State.Name)
}
