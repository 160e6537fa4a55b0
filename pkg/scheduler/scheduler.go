package scheduler

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/cloudhands/burst/pkg/agent"
	"github.com/cloudhands/burst/pkg/audit"
	"github.com/cloudhands/burst/pkg/log"
	"github.com/cloudhands/burst/pkg/message"
	"github.com/cloudhands/burst/pkg/metrics"
	"github.com/cloudhands/burst/pkg/store"
	"golang.org/x/sync/errgroup"
)

const (
	busyInterval = 100 * time.Millisecond
	idleInterval = 1 * time.Second
)

// DefaultDispatchDeadline is the default age at which a pending-set entry
// is forcibly evicted, allowing Jobs to re-offer the artifact to some
// agent even though the one that last held it never reported back.
const DefaultDispatchDeadline = 5 * time.Minute

// pendingEntry records which agent is holding an artifact and when its
// dispatch deadline expires.
type pendingEntry struct {
	agent    string
	deadline time.Time
}

// Scheduler is the sole mutator of the pending set and the sole caller
// of message.Dispatcher.Dispatch. It is not safe for concurrent use by
// more than the one goroutine Operate runs on.
type Scheduler struct {
	store            store.Store
	dispatcher       *message.Dispatcher
	agents           []agent.Agent
	inbound          <-chan any
	dispatchDeadline time.Duration
	idleInterval     time.Duration
	audit            *audit.Broker

	mu      sync.Mutex
	pending map[string]pendingEntry
}

// New builds a Scheduler over agents, reading messages they emit from
// inbound and applying them through dispatcher. A deadline of zero
// selects DefaultDispatchDeadline.
func New(s store.Store, dispatcher *message.Dispatcher, agents []agent.Agent, inbound <-chan any, deadline time.Duration) *Scheduler {
	if deadline <= 0 {
		deadline = DefaultDispatchDeadline
	}
	return &Scheduler{
		store:            s,
		dispatcher:       dispatcher,
		agents:           agents,
		inbound:          inbound,
		dispatchDeadline: deadline,
		idleInterval:     idleInterval,
		pending:          make(map[string]pendingEntry),
	}
}

// SetIdleInterval overrides the sleep between ticks while the pending set
// is empty, the cap named by burstd's --interval flag. A non-positive
// value is ignored.
func (s *Scheduler) SetIdleInterval(d time.Duration) {
	if d > 0 {
		s.idleInterval = d
	}
}

// SetAuditBroker attaches a Broker that every successfully applied Touch
// is published to. Unset by default; Touches are still durable in the
// store either way.
func (s *Scheduler) SetAuditBroker(b *audit.Broker) {
	s.audit = b
}

// Operate starts every agent's Run goroutine and then loops until ctx is
// cancelled and every agent goroutine has acknowledged shutdown. Operate
// itself never returns an error: recovery from every failure it can see
// (a failed Jobs query, a failed dispatch) is local to one tick, and the
// loop is otherwise infallible by design. Only ctx cancellation ends it.
func (s *Scheduler) Operate(ctx context.Context, out chan<- any) {
	group, gctx := errgroup.WithContext(ctx)
	for _, a := range s.agents {
		a := a
		group.Go(func() error {
			a.Run(gctx, out)
			return nil
		})
	}

	s.loop(ctx)

	_ = group.Wait()
}

// loop is the reconciliation cycle: poll agents for new Jobs, enqueue
// the ones not already pending, drain inbound messages, and evict
// anything that has overstayed its dispatch deadline.
func (s *Scheduler) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		timer := metrics.NewTimer()
		s.pollAgents()
		s.evictExpired()
		s.drainInbound()
		timer.ObserveDuration(metrics.SchedulerTickDuration)

		interval := s.idleInterval
		s.mu.Lock()
		size := len(s.pending)
		s.mu.Unlock()
		if size > 0 {
			interval = busyInterval
		}
		metrics.PendingSetSize.Set(float64(size))
		metrics.SchedulerTickInterval.Set(interval.Seconds())

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// pollAgents calls Jobs on every agent and enqueues the ones whose
// artifact is not already in the pending set.
func (s *Scheduler) pollAgents() {
	for _, a := range s.agents {
		jobs, err := a.Jobs(s.store)
		if err != nil {
			log.Logger.Error().Err(err).Str("agent", a.Name()).Msg("scheduler: list jobs")
			continue
		}
		for _, j := range jobs {
			if s.markPending(j.UUID, a.Name()) {
				continue
			}
			select {
			case a.WorkChan() <- j:
				metrics.JobsDispatchedTotal.WithLabelValues(a.Name()).Inc()
			default:
				// Work channel full: leave it unmarked so the next tick
				// retries the enqueue, since Jobs will re-offer it.
				s.unmarkPending(j.UUID)
			}
		}
	}
}

// markPending inserts uuid into the pending set if absent, returning
// true if it was already present (the caller must skip the job).
func (s *Scheduler) markPending(uuid, agentName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[uuid]; ok {
		return true
	}
	s.pending[uuid] = pendingEntry{agent: agentName, deadline: time.Now().Add(s.dispatchDeadline)}
	return false
}

func (s *Scheduler) unmarkPending(uuid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, uuid)
}

// evictExpired drops any pending entry whose dispatch deadline has
// elapsed, logging a warning naming the agent that last held it.
func (s *Scheduler) evictExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for uuid, entry := range s.pending {
		if now.After(entry.deadline) {
			delete(s.pending, uuid)
			metrics.DispatchDeadlineEvictionsTotal.WithLabelValues(entry.agent).Inc()
			log.Logger.Warn().Str("uuid", uuid).Str("agent", entry.agent).
				Msg("scheduler: dispatch deadline exceeded, evicting from pending set")
		}
	}
}

// drainInbound applies every message currently queued on inbound,
// without blocking for more to arrive.
func (s *Scheduler) drainInbound() {
	for {
		select {
		case msg, ok := <-s.inbound:
			if !ok {
				return
			}
			s.apply(msg)
		default:
			return
		}
	}
}

// apply dispatches one message and, on success, frees its artifact from
// the pending set. A failed dispatch leaves the artifact pending; it is
// retried on the next tick, or evicted once its deadline passes.
func (s *Scheduler) apply(msg any) {
	typeName := reflect.TypeOf(msg).String()

	touch, err := s.dispatcher.Dispatch(s.store, msg)
	if err != nil {
		log.Logger.Error().Err(err).Str("message_type", typeName).Msg("scheduler: dispatch message")
		metrics.MessagesDispatchedTotal.WithLabelValues(typeName, "error").Inc()
		return
	}
	metrics.MessagesDispatchedTotal.WithLabelValues(typeName, "ok").Inc()

	if touch.ArtifactID == 0 {
		return
	}
	artifact, err := s.store.ArtifactByID(touch.ArtifactID)
	if err != nil {
		log.Logger.Error().Err(err).Int64("artifact_id", touch.ArtifactID).Msg("scheduler: resolve dispatched artifact")
		return
	}
	metrics.TouchesAppendedTotal.WithLabelValues(string(artifact.Kind), touch.State.Name).Inc()
	s.unmarkPending(artifact.UUID)

	if s.audit != nil {
		s.audit.Publish(audit.Record{ArtifactUUID: artifact.UUID, Touch: touch})
	}
}
