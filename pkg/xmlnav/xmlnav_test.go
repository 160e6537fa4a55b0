package xmlnav_test

import (
	"testing"

	"github.com/cloudhands/burst/pkg/xmlnav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vappFixture = `<?xml version="1.0" encoding="UTF-8"?>
<VApp type="application/vnd.vmware.vcloud.vApp+xml" href="https://host/api/vApp/vapp-X" deployed="true">
	<Children>
		<Vm>
			<GuestCustomizationSection type="application/vnd.vmware.vcloud.guestCustomizationSection+xml">
				<CustomizationScript>line1
line2
line3
line4
line5
line6</CustomizationScript>
			</GuestCustomizationSection>
			<NetworkConnectionSection type="application/vnd.vmware.vcloud.networkConnectionSection+xml">
				<NetworkConnection>
					<IpAddress>192.168.2.5</IpAddress>
				</NetworkConnection>
			</NetworkConnectionSection>
		</Vm>
	</Children>
</VApp>`

func TestFindByTypeLocatesVApp(t *testing.T) {
	tree, err := xmlnav.ParseBytes([]byte(vappFixture))
	require.NoError(t, err)

	found := xmlnav.FindByType(tree, xmlnav.MIMEVApp)
	require.Len(t, found, 1)
	href, ok := found[0].Attr("href")
	require.True(t, ok)
	assert.Equal(t, "https://host/api/vApp/vapp-X", href)
	deployed, _ := found[0].Attr("deployed")
	assert.Equal(t, "true", deployed)
}

func TestFindByTypeLocatesNestedSections(t *testing.T) {
	tree, err := xmlnav.ParseBytes([]byte(vappFixture))
	require.NoError(t, err)

	scripts := xmlnav.FindByType(tree, xmlnav.MIMEGuestCustomizationSection)
	require.Len(t, scripts, 1)
	child, ok := scripts[0].Child("CustomizationScript")
	require.True(t, ok)
	assert.Contains(t, child.CharData, "line6")

	network := xmlnav.FindByType(tree, xmlnav.MIMENetworkConnectionSection)
	require.Len(t, network, 1)
	conn, ok := network[0].Child("NetworkConnection")
	require.True(t, ok)
	ip, ok := conn.Child("IpAddress")
	require.True(t, ok)
	assert.Equal(t, "192.168.2.5", ip.CharData)
}

func TestFindByTypeNoMatch(t *testing.T) {
	tree, err := xmlnav.ParseBytes([]byte(vappFixture))
	require.NoError(t, err)
	found := xmlnav.FindByType(tree, xmlnav.MIMECatalogItem)
	assert.Empty(t, found)
}
