package message

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/cloudhands/burst/pkg/log"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/store"
)

// Handler applies one message against the store, inside a single
// transaction it commits itself, and returns the Touch it produced.
type Handler func(s store.Store, msg any) (model.Touch, error)

// Dispatcher is the process-wide, type-keyed registry described in the
// message dispatcher component: Register records a Handler for a message
// type, Dispatch routes an incoming message to the handler registered for
// its concrete Go type. It is safe for concurrent Register calls (done
// once, at agent construction time) and concurrent Dispatch calls, though
// in practice exactly one goroutine — the scheduler — ever calls Dispatch.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[reflect.Type]Handler
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[reflect.Type]Handler)}
}

// Register associates msg's concrete type with h. Registering a second
// handler for the same type replaces the first; agents register once each
// at construction, so this only ever happens if a caller misconfigures the
// scheduler.
func (d *Dispatcher) Register(msg any, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[reflect.TypeOf(msg)] = h
}

// Dispatch routes msg to the handler registered for its type. A message
// with no registered handler is logged and dropped, matching the "log a
// warning and no-op" contract; this keeps an agent bug (forgetting to
// register a message it emits) from taking down the scheduler loop.
func (d *Dispatcher) Dispatch(s store.Store, msg any) (model.Touch, error) {
	t := reflect.TypeOf(msg)
	d.mu.RLock()
	h, ok := d.handlers[t]
	d.mu.RUnlock()
	if !ok {
		log.Logger.Warn().Str("message_type", t.String()).Msg("no handler registered for message")
		return model.Touch{}, nil
	}
	touch, err := h(s, msg)
	if err != nil {
		return model.Touch{}, fmt.Errorf("message: dispatch %s: %w", t, err)
	}
	return touch, nil
}
