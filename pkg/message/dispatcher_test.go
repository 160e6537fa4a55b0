package message_test

import (
	"testing"

	"github.com/cloudhands/burst/pkg/message"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRoutesByConcreteType(t *testing.T) {
	d := message.NewDispatcher()

	var gotRunning, gotStopped int
	d.Register(message.Running{}, func(_ store.Store, _ any) (model.Touch, error) {
		gotRunning++
		return model.Touch{ID: 1}, nil
	})
	d.Register(message.Stopped{}, func(_ store.Store, _ any) (model.Touch, error) {
		gotStopped++
		return model.Touch{ID: 2}, nil
	})

	touch, err := d.Dispatch(nil, message.Running{UUID: "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), touch.ID)
	assert.Equal(t, 1, gotRunning)
	assert.Equal(t, 0, gotStopped)

	_, err = d.Dispatch(nil, message.Stopped{UUID: "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, gotStopped)
}

func TestDispatcherNoHandlerIsNoop(t *testing.T) {
	d := message.NewDispatcher()
	touch, err := d.Dispatch(nil, message.Deleted{UUID: "z"})
	require.NoError(t, err)
	assert.Equal(t, model.Touch{}, touch)
}

func TestDispatcherPropagatesHandlerError(t *testing.T) {
	d := message.NewDispatcher()
	d.Register(message.Running{}, func(_ store.Store, _ any) (model.Touch, error) {
		return model.Touch{}, assert.AnError
	})
	_, err := d.Dispatch(nil, message.Running{})
	require.Error(t, err)
}
