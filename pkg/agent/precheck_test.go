package agent

import (
	"testing"

	"github.com/cloudhands/burst/pkg/message"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/xmlnav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, doc string) *xmlnav.Element {
	t.Helper()
	tree, err := xmlnav.ParseBytes([]byte(doc))
	require.NoError(t, err)
	return tree
}

func newPreCheckAgentWithStore() (*PreCheckAgent, *fakeStore) {
	fs := newFakeStore()
	return &PreCheckAgent{store: fs, componentID: 1, workChan: make(chan Job, 1)}, fs
}

func TestDecideNoCustomisationScriptSendsBackToProvisioning(t *testing.T) {
	a, _ := newPreCheckAgentWithStore()
	tree := mustParse(t, `<VApp type="application/vnd.vmware.vcloud.vApp+xml" deployed="false"></VApp>`)

	msg := a.decide("uuid-1", "provider-a", tree)
	checked, ok := msg.(message.CheckedAsProvisioning)
	require.True(t, ok, "expected CheckedAsProvisioning, got %T", msg)
	assert.Equal(t, "uuid-1", checked.UUID)
	assert.Equal(t, "provider-a", checked.Provider)
}

func TestDecideShortScriptSendsBackToProvisioning(t *testing.T) {
	a, _ := newPreCheckAgentWithStore()
	tree := mustParse(t, `<VApp type="application/vnd.vmware.vcloud.vApp+xml" deployed="false">
		<GuestCustomizationSection type="application/vnd.vmware.vcloud.guestCustomizationSection+xml">
			<CustomizationScript>one
two</CustomizationScript>
		</GuestCustomizationSection>
	</VApp>`)

	msg := a.decide("uuid-2", "provider-a", tree)
	_, ok := msg.(message.CheckedAsProvisioning)
	require.True(t, ok, "expected CheckedAsProvisioning, got %T", msg)
}

func TestDecideLongScriptNoPriorOperationalIsPreOperational(t *testing.T) {
	a, fs := newPreCheckAgentWithStore()
	artifact := model.Artifact{ID: 1, UUID: "uuid-3", Kind: model.KindAppliance}
	fs.addArtifact(artifact)
	fs.addTouch(artifact.ID, model.Touch{State: model.State{Name: "pre_check"}}, nil)

	tree := mustParse(t, `<VApp type="application/vnd.vmware.vcloud.vApp+xml" deployed="true">
		<GuestCustomizationSection type="application/vnd.vmware.vcloud.guestCustomizationSection+xml">
			<CustomizationScript>l1
l2
l3
l4
l5
l6</CustomizationScript>
		</GuestCustomizationSection>
		<NetworkConnectionSection type="application/vnd.vmware.vcloud.networkConnectionSection+xml">
			<NetworkConnection><IpAddress>192.168.2.5</IpAddress></NetworkConnection>
		</NetworkConnectionSection>
	</VApp>`)

	msg := a.decide("uuid-3", "provider-a", tree)
	pre, ok := msg.(message.CheckedAsPreOperational)
	require.True(t, ok, "expected CheckedAsPreOperational, got %T", msg)
	assert.Equal(t, "192.168.2.5", pre.IP)
	assert.Equal(t, "deployed", pre.Creation)
}

func TestDecideLongScriptWithPriorOperationalIsOperational(t *testing.T) {
	a, fs := newPreCheckAgentWithStore()
	artifact := model.Artifact{ID: 2, UUID: "uuid-4", Kind: model.KindAppliance}
	fs.addArtifact(artifact)
	fs.addTouch(artifact.ID, model.Touch{State: model.State{Name: "operational"}}, nil)
	fs.addTouch(artifact.ID, model.Touch{State: model.State{Name: "pre_check"}}, nil)

	tree := mustParse(t, `<VApp type="application/vnd.vmware.vcloud.vApp+xml" deployed="true">
		<GuestCustomizationSection type="application/vnd.vmware.vcloud.guestCustomizationSection+xml">
			<CustomizationScript>l1
l2
l3
l4
l5
l6</CustomizationScript>
		</GuestCustomizationSection>
		<NetworkConnectionSection type="application/vnd.vmware.vcloud.networkConnectionSection+xml">
			<NetworkConnection><IpAddress>192.168.2.5</IpAddress></NetworkConnection>
		</NetworkConnectionSection>
	</VApp>`)

	msg := a.decide("uuid-4", "provider-a", tree)
	op, ok := msg.(message.CheckedAsOperational)
	require.True(t, ok, "expected CheckedAsOperational, got %T", msg)
	assert.Equal(t, "192.168.2.5", op.IP)
}
