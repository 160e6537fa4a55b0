package agent

import (
	"fmt"
	"sort"
	"time"

	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/store"
)

// fakeStore is a minimal in-memory store.Store used only to exercise
// agent decision logic without a real database.
type fakeStore struct {
	artifacts     map[int64]model.Artifact
	byUUID        map[string]int64
	touches       map[int64][]model.Touch
	resources     map[int64][]model.Resource // keyed by touch id
	subscriptions map[int64]model.Subscription
	providers     map[int64]model.Provider
	providersName map[string]int64
	nextTouchID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		artifacts:     make(map[int64]model.Artifact),
		byUUID:        make(map[string]int64),
		touches:       make(map[int64][]model.Touch),
		resources:     make(map[int64][]model.Resource),
		subscriptions: make(map[int64]model.Subscription),
		providers:     make(map[int64]model.Provider),
		providersName: make(map[string]int64),
	}
}

func (f *fakeStore) addArtifact(a model.Artifact) {
	f.artifacts[a.ID] = a
	f.byUUID[a.UUID] = a.ID
}

func (f *fakeStore) addTouch(artifactID int64, t model.Touch, resources []model.Resource) model.Touch {
	f.nextTouchID++
	t.ID = f.nextTouchID
	t.ArtifactID = artifactID
	f.touches[artifactID] = append(f.touches[artifactID], t)
	f.resources[t.ID] = resources
	return t
}

func (f *fakeStore) ArtifactsInState(kind model.Kind, state string) ([]model.Artifact, error) {
	var out []model.Artifact
	for _, a := range f.artifacts {
		if a.Kind != kind {
			continue
		}
		touches := f.touches[a.ID]
		if len(touches) == 0 {
			continue
		}
		if touches[len(touches)-1].State.Name == state {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) Artifact(uuid string) (model.Artifact, error) {
	id, ok := f.byUUID[uuid]
	if !ok {
		return model.Artifact{}, fmt.Errorf("not found: %s", uuid)
	}
	return f.artifacts[id], nil
}

func (f *fakeStore) ArtifactByID(id int64) (model.Artifact, error) {
	a, ok := f.artifacts[id]
	if !ok {
		return model.Artifact{}, fmt.Errorf("not found: %d", id)
	}
	return a, nil
}

func (f *fakeStore) Touches(artifactID int64) ([]model.Touch, error) {
	return f.touches[artifactID], nil
}

func (f *fakeStore) LatestTouch(artifactID int64) (model.Touch, error) {
	ts := f.touches[artifactID]
	if len(ts) == 0 {
		return model.Touch{}, fmt.Errorf("no touches for %d", artifactID)
	}
	return ts[len(ts)-1], nil
}

func (f *fakeStore) Resources(touchID int64) ([]model.Resource, error) {
	return f.resources[touchID], nil
}

func (f *fakeStore) ArtifactResources(artifactID int64) ([]model.Resource, error) {
	var out []model.Resource
	for _, t := range f.touches[artifactID] {
		out = append(out, f.resources[t.ID]...)
	}
	return out, nil
}

func (f *fakeStore) Organisation(id int64) (model.Organisation, error) {
	return model.Organisation{ID: id}, nil
}

func (f *fakeStore) Provider(id int64) (model.Provider, error) {
	p, ok := f.providers[id]
	if !ok {
		return model.Provider{}, fmt.Errorf("no provider %d", id)
	}
	return p, nil
}

func (f *fakeStore) ProviderByName(name string) (model.Provider, error) {
	id, ok := f.providersName[name]
	if !ok {
		return model.Provider{}, fmt.Errorf("no provider %s", name)
	}
	return f.providers[id], nil
}

func (f *fakeStore) Component(handle string) (model.Component, error) {
	return model.Component{Handle: handle}, nil
}

func (f *fakeStore) SubscriptionFor(organisationID int64) (model.Subscription, error) {
	sub, ok := f.subscriptions[organisationID]
	if !ok {
		return model.Subscription{}, fmt.Errorf("no subscription for org %d", organisationID)
	}
	return sub, nil
}

func (f *fakeStore) ProviderTokensFor(providerID, actorID int64) ([]store.ProviderTokenRecord, error) {
	return nil, nil
}

func (f *fakeStore) NATRoutingsFor(providerID int64) ([]model.Resource, error) {
	var out []model.Resource
	for _, rs := range f.resources {
		for _, r := range rs {
			if r.Kind == model.ResourceNATRouting && r.ProviderID == providerID {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) IPPoolFor(subscriptionArtifactID int64) ([]model.Resource, error) {
	return f.resources[subscriptionArtifactID], nil
}

func (f *fakeStore) Begin() (store.Tx, error) {
	return &fakeTx{f: f}, nil
}

func (f *fakeStore) Close() error { return nil }

type fakeTx struct {
	f *fakeStore
}

func (tx *fakeTx) AppendTouch(artifactID int64, actor model.Actor, stateName string, at time.Time, resources []model.Resource) (model.Touch, error) {
	return tx.f.addTouch(artifactID, model.Touch{Actor: actor, State: model.State{Name: stateName}, At: at}, resources), nil
}

func (tx *fakeTx) Commit() error   { return nil }
func (tx *fakeTx) Rollback() error { return nil }

var _ store.Store = (*fakeStore)(nil)
