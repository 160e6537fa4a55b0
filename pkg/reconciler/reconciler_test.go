package reconciler

import (
	"testing"
	"time"

	"github.com/cloudhands/burst/pkg/metrics"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// fakeStore is a minimal store.Store stub exercising only what the
// reconciler itself calls: NATRoutingsFor, ArtifactsInState, LatestTouch.
type fakeStore struct {
	natByProvider map[int64][]model.Resource
	artifacts     map[string][]model.Artifact // keyed by state
	touches       map[int64]model.Touch        // keyed by artifact ID
}

func (f *fakeStore) ArtifactsInState(_ model.Kind, state string) ([]model.Artifact, error) {
	return f.artifacts[state], nil
}
func (f *fakeStore) Artifact(string) (model.Artifact, error)           { return model.Artifact{}, nil }
func (f *fakeStore) ArtifactByID(int64) (model.Artifact, error)        { return model.Artifact{}, nil }
func (f *fakeStore) Touches(int64) ([]model.Touch, error)              { return nil, nil }
func (f *fakeStore) LatestTouch(artifactID int64) (model.Touch, error) { return f.touches[artifactID], nil }
func (f *fakeStore) Resources(int64) ([]model.Resource, error)         { return nil, nil }
func (f *fakeStore) ArtifactResources(int64) ([]model.Resource, error) { return nil, nil }
func (f *fakeStore) Organisation(int64) (model.Organisation, error)    { return model.Organisation{}, nil }
func (f *fakeStore) Provider(int64) (model.Provider, error)            { return model.Provider{}, nil }
func (f *fakeStore) ProviderByName(string) (model.Provider, error)     { return model.Provider{}, nil }
func (f *fakeStore) Component(string) (model.Component, error)         { return model.Component{}, nil }
func (f *fakeStore) SubscriptionFor(int64) (model.Subscription, error) { return model.Subscription{}, nil }
func (f *fakeStore) ProviderTokensFor(int64, int64) ([]store.ProviderTokenRecord, error) {
	return nil, nil
}
func (f *fakeStore) NATRoutingsFor(providerID int64) ([]model.Resource, error) {
	return f.natByProvider[providerID], nil
}
func (f *fakeStore) IPPoolFor(int64) ([]model.Resource, error) { return nil, nil }
func (f *fakeStore) Begin() (store.Tx, error)                  { return nil, nil }
func (f *fakeStore) Close() error                               { return nil }

var _ store.Store = (*fakeStore)(nil)

func TestCheckNATUniquenessFlagsDuplicateExternalIP(t *testing.T) {
	fs := &fakeStore{
		natByProvider: map[int64][]model.Resource{
			1: {
				{Kind: model.ResourceNATRouting, IPExt: "198.51.100.10"},
				{Kind: model.ResourceNATRouting, IPExt: "198.51.100.10"},
				{Kind: model.ResourceNATRouting, IPExt: "198.51.100.11"},
			},
		},
	}
	r := New(fs, []model.Provider{{ID: 1, Name: "vcloud-1"}}, time.Minute, time.Hour)

	before := testutil.ToFloat64(metrics.ReconcilerInvariantViolationsTotal.WithLabelValues("nat_ip_uniqueness"))
	r.checkNATUniqueness()
	after := testutil.ToFloat64(metrics.ReconcilerInvariantViolationsTotal.WithLabelValues("nat_ip_uniqueness"))
	require.Greater(t, after, before)
}

func TestCheckStuckAppliancesFlagsOldTouch(t *testing.T) {
	fs := &fakeStore{
		artifacts: map[string][]model.Artifact{
			"pre_operational": {{ID: 5, UUID: "uuid-5"}},
		},
		touches: map[int64]model.Touch{
			5: {ArtifactID: 5, State: model.State{Name: "pre_operational"}, At: time.Now().Add(-time.Hour)},
		},
	}
	r := New(fs, nil, time.Minute, 15*time.Minute)

	// An observational check: it reports through the metric, not an error.
	before := testutil.ToFloat64(metrics.ReconcilerInvariantViolationsTotal.WithLabelValues("stuck_pre_state"))
	r.checkStuckAppliances()
	after := testutil.ToFloat64(metrics.ReconcilerInvariantViolationsTotal.WithLabelValues("stuck_pre_state"))
	require.Greater(t, after, before)
}

func TestCheckStuckAppliancesIgnoresRecentTouch(t *testing.T) {
	fs := &fakeStore{
		artifacts: map[string][]model.Artifact{
			"pre_check": {{ID: 9, UUID: "uuid-9"}},
		},
		touches: map[int64]model.Touch{
			9: {ArtifactID: 9, State: model.State{Name: "pre_check"}, At: time.Now()},
		},
	}
	r := New(fs, nil, time.Minute, 15*time.Minute)
	before := testutil.ToFloat64(metrics.ReconcilerInvariantViolationsTotal.WithLabelValues("stuck_pre_state"))
	r.checkStuckAppliances()
	after := testutil.ToFloat64(metrics.ReconcilerInvariantViolationsTotal.WithLabelValues("stuck_pre_state"))
	require.Equal(t, before, after)
}
