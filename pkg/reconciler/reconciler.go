package reconciler

import (
	"sync"
	"time"

	"github.com/cloudhands/burst/pkg/log"
	"github.com/cloudhands/burst/pkg/metrics"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/store"
	"github.com/rs/zerolog"
)

// preStates lists every transient Appliance state an artifact should
// only occupy briefly; DefaultStuckThreshold bounds how long is
// tolerable before it's flagged.
var preStates = []string{
	"configuring", "pre_provision", "provisioning", "pre_check",
	"pre_operational", "pre_start", "pre_stop", "pre_delete",
}

// DefaultInterval is how often the reconciler runs a check cycle.
const DefaultInterval = 30 * time.Second

// DefaultStuckThreshold is how long an appliance may sit in a pre_*
// state before the reconciler reports it.
const DefaultStuckThreshold = 15 * time.Minute

// Reconciler periodically checks store-wide invariants that no single
// agent is positioned to see, since each agent only ever looks at one
// artifact at a time.
type Reconciler struct {
	store          store.Store
	providers      []model.Provider
	interval       time.Duration
	stuckThreshold time.Duration
	logger         zerolog.Logger
	mu             sync.Mutex
	stopCh         chan struct{}
}

// New builds a Reconciler over providers, the set resolved from
// configuration at boot. A zero interval or stuckThreshold selects the
// package defaults.
func New(s store.Store, providers []model.Provider, interval, stuckThreshold time.Duration) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if stuckThreshold <= 0 {
		stuckThreshold = DefaultStuckThreshold
	}
	return &Reconciler{
		store:          s,
		providers:      providers,
		interval:       interval,
		stuckThreshold: stuckThreshold,
		logger:         log.WithComponent("reconciler"),
		stopCh:         make(chan struct{}),
	}
}

// Start begins the check loop in its own goroutine.
func (r *Reconciler) Start() {
	go r.run()
}

// Stop ends the check loop.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.interval).Msg("reconciler started")

	for {
		select {
		case <-ticker.C:
			r.check()
		case <-r.stopCh:
			r.logger.Info().Msg("reconciler stopped")
			return
		}
	}
}

// check runs one cycle of every invariant check. A check runs under its
// own lock so overlapping ticks (a slow cycle outliving its interval)
// never run concurrently against the store.
func (r *Reconciler) check() {
	r.mu.Lock()
	defer r.mu.Unlock()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconcilerRunDuration)

	r.checkNATUniqueness()
	r.checkStuckAppliances()
}

// checkNATUniqueness verifies that, for every configured provider, no
// external IP address is bound by more than one NATRouting resource —
// the "ownership of public IP" invariant.
func (r *Reconciler) checkNATUniqueness() {
	for _, p := range r.providers {
		routings, err := r.store.NATRoutingsFor(p.ID)
		if err != nil {
			r.logger.Error().Err(err).Str("provider", p.Name).Msg("reconciler: list NAT routings")
			continue
		}
		seen := make(map[string]int, len(routings))
		for _, res := range routings {
			seen[res.IPExt]++
		}
		for ip, count := range seen {
			if count > 1 {
				metrics.ReconcilerInvariantViolationsTotal.WithLabelValues("nat_ip_uniqueness").Inc()
				r.logger.Error().Str("provider", p.Name).Str("ip_ext", ip).Int("count", count).
					Msg("reconciler: public IP bound by more than one NAT routing")
			}
		}
	}
}

// checkStuckAppliances flags any Appliance artifact whose latest Touch
// has sat in a transient pre_* state for longer than stuckThreshold,
// the in-band signal that some agent's attempt never recovered.
func (r *Reconciler) checkStuckAppliances() {
	now := time.Now()
	for _, state := range preStates {
		artifacts, err := r.store.ArtifactsInState(model.KindAppliance, state)
		if err != nil {
			r.logger.Error().Err(err).Str("state", state).Msg("reconciler: list artifacts in state")
			continue
		}
		metrics.ArtifactsByState.WithLabelValues(string(model.KindAppliance), state).Set(float64(len(artifacts)))
		for _, art := range artifacts {
			touch, err := r.store.LatestTouch(art.ID)
			if err != nil {
				r.logger.Error().Err(err).Str("uuid", art.UUID).Msg("reconciler: resolve latest touch")
				continue
			}
			if age := now.Sub(touch.At); age > r.stuckThreshold {
				metrics.ReconcilerInvariantViolationsTotal.WithLabelValues("stuck_pre_state").Inc()
				r.logger.Warn().Str("uuid", art.UUID).Str("state", state).Dur("age", age).
					Msg("reconciler: appliance stuck in transient state")
			}
		}
	}
}
