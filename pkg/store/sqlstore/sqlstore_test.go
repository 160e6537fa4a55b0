package sqlstore_test

import (
	"testing"
	"time"

	"github.com/cloudhands/burst/pkg/fsm"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestArtifactsInStateFindsLatestTouchOnly(t *testing.T) {
	s := open(t)

	orgID := mustExec(t, s, `INSERT INTO organisations (name) VALUES (?)`, "acme")
	artifactID := mustExec(t, s, `INSERT INTO artifacts (uuid, kind, organisation_id) VALUES (?, ?, ?)`,
		uuid.NewString(), string(model.KindAppliance), orgID)

	tx, err := s.Begin()
	require.NoError(t, err)
	t0 := time.Now().Add(-time.Hour)
	_, err = tx.AppendTouch(artifactID, model.Actor{Kind: model.ActorComponent, ID: 1}, "requested", t0, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx, err = s.Begin()
	require.NoError(t, err)
	_, err = tx.AppendTouch(artifactID, model.Actor{Kind: model.ActorComponent, ID: 1}, "configuring", t0.Add(time.Minute), nil)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	found, err := s.ArtifactsInState(model.KindAppliance, "configuring")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, artifactID, found[0].ID)

	found, err = s.ArtifactsInState(model.KindAppliance, "requested")
	require.NoError(t, err)
	require.Empty(t, found, "superseded state must not match the latest-touch query")
}

func TestAppendTouchPersistsResources(t *testing.T) {
	s := open(t)

	orgID := mustExec(t, s, `INSERT INTO organisations (name) VALUES (?)`, "acme")
	artifactID := mustExec(t, s, `INSERT INTO artifacts (uuid, kind, organisation_id) VALUES (?, ?, ?)`,
		uuid.NewString(), string(model.KindAppliance), orgID)

	tx, err := s.Begin()
	require.NoError(t, err)
	touch, err := tx.AppendTouch(artifactID, model.Actor{Kind: model.ActorUser, ID: 7}, "operational", time.Now(),
		[]model.Resource{{Kind: model.ResourceIPAddress, Value: "192.168.2.5"}})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	resources, err := s.Resources(touch.ID)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	require.Equal(t, "192.168.2.5", resources[0].Value)

	latest, err := s.LatestTouch(artifactID)
	require.NoError(t, err)
	require.Equal(t, "operational", latest.State.Name)
	require.Equal(t, string(fsm.NameFor(model.KindAppliance)), latest.State.FSM)
}

func TestProviderTokensForOrdersByTouchTimeDescending(t *testing.T) {
	s := open(t)

	orgID := mustExec(t, s, `INSERT INTO organisations (name) VALUES (?)`, "acme")
	providerID := mustExec(t, s, `INSERT INTO providers (name) VALUES (?)`, "vcloud-1")
	artifactID := mustExec(t, s, `INSERT INTO artifacts (uuid, kind, organisation_id) VALUES (?, ?, ?)`,
		uuid.NewString(), string(model.KindRegistration), orgID)

	older := time.Now().Add(-time.Hour)
	newer := time.Now()

	tx, err := s.Begin()
	require.NoError(t, err)
	_, err = tx.AppendTouch(artifactID, model.Actor{Kind: model.ActorUser, ID: 9}, "approved", older,
		[]model.Resource{{Kind: model.ResourceProviderToken, ProviderID: providerID, TokenKey: "X-Token", TokenValue: "old"}})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx, err = s.Begin()
	require.NoError(t, err)
	_, err = tx.AppendTouch(artifactID, model.Actor{Kind: model.ActorUser, ID: 9}, "valid", newer,
		[]model.Resource{{Kind: model.ResourceProviderToken, ProviderID: providerID, TokenKey: "X-Token", TokenValue: "new"}})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tokens, err := s.ProviderTokensFor(providerID, 9)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	require.Equal(t, "new", tokens[0].Resource.TokenValue, "most recent token must sort first")
	require.Equal(t, "old", tokens[1].Resource.TokenValue)
}

// TestSubscriptionForArtifactIDJoinsIPPool guards against confusing the
// subscriptions table's own primary key with the subscription artifact's
// id: IPPoolFor joins on touches.artifact_id, so SubscriptionFor must
// return the artifact id, not the subscriptions row id, or the pool is
// queried under the wrong id space and is always found empty.
func TestSubscriptionForArtifactIDJoinsIPPool(t *testing.T) {
	s := open(t)

	orgID := mustExec(t, s, `INSERT INTO organisations (name) VALUES (?)`, "acme")
	otherOrgID := mustExec(t, s, `INSERT INTO organisations (name) VALUES (?)`, "other-org")
	providerID := mustExec(t, s, `INSERT INTO providers (name) VALUES (?)`, "vcloud-1")

	// Insert an unrelated subscription first so its row id lands at 1,
	// forcing the subscriptions.id and artifacts.id sequences apart for
	// the row this test actually exercises.
	otherSubArtifactID := mustExec(t, s, `INSERT INTO artifacts (uuid, kind, organisation_id) VALUES (?, ?, ?)`,
		uuid.NewString(), string(model.KindSubscription), otherOrgID)
	mustExec(t, s,
		`INSERT INTO subscriptions (artifact_id, organisation_id, provider_id) VALUES (?, ?, ?)`,
		otherSubArtifactID, otherOrgID, providerID)
	// An artifact with no subscription row of its own, so the artifacts
	// and subscriptions autoincrement sequences are no longer in lockstep.
	mustExec(t, s, `INSERT INTO artifacts (uuid, kind, organisation_id) VALUES (?, ?, ?)`,
		uuid.NewString(), string(model.KindAppliance), orgID)

	subArtifactID := mustExec(t, s, `INSERT INTO artifacts (uuid, kind, organisation_id) VALUES (?, ?, ?)`,
		uuid.NewString(), string(model.KindSubscription), orgID)
	mustExec(t, s,
		`INSERT INTO subscriptions (artifact_id, organisation_id, provider_id) VALUES (?, ?, ?)`,
		subArtifactID, orgID, providerID)

	tx, err := s.Begin()
	require.NoError(t, err)
	_, err = tx.AppendTouch(subArtifactID, model.Actor{Kind: model.ActorComponent, ID: 1}, "valid", time.Now(),
		[]model.Resource{{Kind: model.ResourceIPAddress, Value: "172.16.151.166"}})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	sub, err := s.SubscriptionFor(orgID)
	require.NoError(t, err)
	require.Equal(t, subArtifactID, sub.ArtifactID)
	require.NotEqual(t, sub.ID, subArtifactID, "test setup must keep the two id spaces distinct")

	pool, err := s.IPPoolFor(sub.ArtifactID)
	require.NoError(t, err)
	require.Len(t, pool, 1)
	require.Equal(t, "172.16.151.166", pool[0].Value)
}
