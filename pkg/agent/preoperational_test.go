package agent

import (
	"testing"

	"github.com/cloudhands/burst/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateFreeIPPicksUntakenAddress(t *testing.T) {
	fs := newFakeStore()
	a := &PreOperationalAgent{store: fs, componentID: 1, workChan: make(chan Job, 1)}

	const subscriptionArtifactID = int64(42)
	const providerID = int64(7)

	fs.resources[subscriptionArtifactID] = []model.Resource{
		{Kind: model.ResourceIPAddress, Value: "172.16.151.166"},
		{Kind: model.ResourceIPAddress, Value: "172.16.151.167"},
	}
	// Record 172.16.151.166 as already taken.
	takenTouchID := int64(9001)
	fs.resources[takenTouchID] = []model.Resource{
		{Kind: model.ResourceNATRouting, ProviderID: providerID, IPExt: "172.16.151.166"},
	}

	ip, ok, err := a.allocateFreeIP(subscriptionArtifactID, providerID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "172.16.151.167", ip)
}

func TestAllocateFreeIPExhaustedReturnsFalse(t *testing.T) {
	fs := newFakeStore()
	a := &PreOperationalAgent{store: fs, componentID: 1, workChan: make(chan Job, 1)}

	const subscriptionArtifactID = int64(43)
	const providerID = int64(8)

	fs.resources[subscriptionArtifactID] = []model.Resource{
		{Kind: model.ResourceIPAddress, Value: "172.16.151.166"},
	}
	takenTouchID := int64(9002)
	fs.resources[takenTouchID] = []model.Resource{
		{Kind: model.ResourceNATRouting, ProviderID: providerID, IPExt: "172.16.151.166"},
	}

	_, ok, err := a.allocateFreeIP(subscriptionArtifactID, providerID)
	require.NoError(t, err)
	assert.False(t, ok, "pool exhausted must report no free address")
}
