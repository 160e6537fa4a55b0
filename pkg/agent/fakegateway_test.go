package agent

import (
	"context"
	"fmt"

	"github.com/cloudhands/burst/pkg/gateway"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/xmlnav"
)

// fakeGateway is a scriptable gateway.Gateway used to exercise agent
// process() methods without a real HTTP provider behind them.
type fakeGateway struct {
	composeVAppURI string
	composeVAppErr error

	installErr error

	describeTree *xmlnav.Element
	describeErr  error

	deployErr   error
	undeployErr error
	deleteErr   error

	authCred gateway.Credential
	authErr  error

	natErr      error
	firewallErr error

	calls []string
}

func (f *fakeGateway) Authenticate(_ context.Context, _ model.Provider, user, pass string) (gateway.Credential, error) {
	f.calls = append(f.calls, fmt.Sprintf("Authenticate(%s,%s)", user, pass))
	return f.authCred, f.authErr
}

func (f *fakeGateway) ComposeVApp(_ context.Context, _ model.Provider, _ gateway.Credential, _ model.CatalogueChoice, _ model.Label) (string, error) {
	f.calls = append(f.calls, "ComposeVApp")
	return f.composeVAppURI, f.composeVAppErr
}

func (f *fakeGateway) InstallCustomization(_ context.Context, _ model.Provider, _ gateway.Credential, _, _ string) error {
	f.calls = append(f.calls, "InstallCustomization")
	return f.installErr
}

func (f *fakeGateway) Describe(_ context.Context, _ model.Provider, _ gateway.Credential, _ string) (*xmlnav.Element, error) {
	f.calls = append(f.calls, "Describe")
	return f.describeTree, f.describeErr
}

func (f *fakeGateway) Deploy(_ context.Context, _ model.Provider, _ gateway.Credential, _ string, powerOn bool) error {
	f.calls = append(f.calls, fmt.Sprintf("Deploy(%v)", powerOn))
	return f.deployErr
}

func (f *fakeGateway) Undeploy(_ context.Context, _ model.Provider, _ gateway.Credential, _ string) error {
	f.calls = append(f.calls, "Undeploy")
	return f.undeployErr
}

func (f *fakeGateway) Delete(_ context.Context, _ model.Provider, _ gateway.Credential, _ string) error {
	f.calls = append(f.calls, "Delete")
	return f.deleteErr
}

func (f *fakeGateway) ApplyNAT(_ context.Context, _ model.Provider, _ gateway.Credential, _, _ string) error {
	f.calls = append(f.calls, "ApplyNAT")
	return f.natErr
}

func (f *fakeGateway) ApplyFirewall(_ context.Context, _ model.Provider, _ gateway.Credential, _ string) error {
	f.calls = append(f.calls, "ApplyFirewall")
	return f.firewallErr
}

var _ gateway.Gateway = (*fakeGateway)(nil)
