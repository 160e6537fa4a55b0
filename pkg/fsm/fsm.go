package fsm

import (
	"fmt"

	"github.com/cloudhands/burst/pkg/model"
)

// Name identifies one of the four state machines hosted by the controller.
type Name string

const (
	Appliance    Name = "appliance"
	Registration Name = "registration"
	Membership   Name = "membership"
	Subscription Name = "subscription"
)

// NameFor returns the FSM that governs artifacts of the given kind.
func NameFor(k model.Kind) Name {
	switch k {
	case model.KindAppliance:
		return Appliance
	case model.KindRegistration:
		return Registration
	case model.KindMembership:
		return Membership
	case model.KindSubscription:
		return Subscription
	default:
		return ""
	}
}

// Machine is a closed set of states and the transitions allowed between
// them.
type Machine struct {
	Name    Name
	Entry   string
	Static  map[string]bool
	Active  map[string]bool
	Terminal map[string]bool
	edges   map[string]map[string]bool
}

func newMachine(name Name, entry string, edges map[string][]string, static, active, terminal []string) *Machine {
	m := &Machine{
		Name:     name,
		Entry:    entry,
		Static:   toSet(static),
		Active:   toSet(active),
		Terminal: toSet(terminal),
		edges:    make(map[string]map[string]bool, len(edges)),
	}
	for from, tos := range edges {
		set := make(map[string]bool, len(tos))
		for _, to := range tos {
			set[to] = true
		}
		m.edges[from] = set
	}
	return m
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// States returns every state name known to the machine, in no particular
// order.
func (m *Machine) States() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	add(m.Entry)
	for from, tos := range m.edges {
		add(from)
		for to := range tos {
			add(to)
		}
	}
	return out
}

// CanTransition reports whether the machine permits moving from one state
// to another. Re-entering a known state is always permitted: it records an
// audit Touch without changing state. Any other move needs a declared edge.
func (m *Machine) CanTransition(from, to string) bool {
	if from == to && m.IsKnown(from) {
		return true
	}
	tos, ok := m.edges[from]
	if !ok {
		return false
	}
	return tos[to]
}

// IsKnown reports whether name is a state of this machine.
func (m *Machine) IsKnown(name string) bool {
	if name == m.Entry {
		return true
	}
	if _, ok := m.edges[name]; ok {
		return true
	}
	for _, tos := range m.edges {
		if tos[name] {
			return true
		}
	}
	return false
}

// IsTerminal reports whether name is a terminal state of this machine.
func (m *Machine) IsTerminal(name string) bool {
	return m.Terminal[name]
}

// Registry holds every Machine, keyed by Name. There is exactly one
// package-level instance, Default, built once at init time.
type Registry struct {
	machines map[Name]*Machine
}

// Default is the single FSM registry used throughout the controller.
var Default = buildRegistry()

func buildRegistry() *Registry {
	r := &Registry{machines: make(map[Name]*Machine)}

	r.machines[Appliance] = newMachine(Appliance, "requested",
		map[string][]string{
			"requested":       {"configuring"},
			"configuring":     {"pre_provision"},
			"pre_provision":   {"provisioning"},
			"provisioning":    {"pre_check"},
			"pre_check":       {"operational", "pre_operational", "provisioning"},
			"pre_operational": {"operational", "pre_stop"},
			"operational":     {"pre_check", "pre_stop"},
			"pre_stop":        {"stopped"},
			"stopped":         {"pre_start", "pre_delete"},
			"pre_start":       {"running"},
			"running":         {"pre_stop"},
			"pre_delete":      {"deleted"},
		},
		[]string{"configuring", "pre_check", "pre_operational", "pre_provision", "pre_delete", "pre_stop", "pre_start", "deleted", "stopped"},
		[]string{"provisioning", "operational", "running"},
		[]string{"deleted"},
	)

	// Registration, Membership and Subscription were left as "follow the
	// same pattern" by the distillation; original_source/cloudhands/burst
	// {registration,membership,subscription}.py agree on this shape: a
	// linear approve-then-validate pipeline with its own terminal states.
	r.machines[Registration] = newMachine(Registration, "requested",
		map[string][]string{
			"requested": {"approved"},
			"approved":  {"valid"},
			"valid":     {"expired", "invalid"},
		},
		[]string{"requested", "approved"},
		[]string{"valid"},
		[]string{"expired", "invalid"},
	)

	r.machines[Membership] = newMachine(Membership, "requested",
		map[string][]string{
			"requested": {"approved"},
			"approved":  {"valid"},
			"valid":     {"withdrawn", "valid"},
		},
		[]string{"requested", "approved"},
		[]string{"valid"},
		[]string{"withdrawn"},
	)

	r.machines[Subscription] = newMachine(Subscription, "requested",
		map[string][]string{
			"requested": {"approved"},
			"approved":  {"valid"},
			"valid":     {"terminated"},
		},
		[]string{"requested", "approved"},
		[]string{"valid"},
		[]string{"terminated"},
	)

	return r
}

// Machine returns the named machine, or nil if name is unknown.
func (r *Registry) Machine(name Name) *Machine {
	return r.machines[name]
}

// CanTransition validates a proposed transition for an artifact of kind k.
// An unknown kind or an unknown "from"/"to" state is always rejected.
func (r *Registry) CanTransition(k model.Kind, from, to string) error {
	name := NameFor(k)
	m := r.Machine(name)
	if m == nil {
		return fmt.Errorf("fsm: unknown artifact kind %q", k)
	}
	if !m.IsKnown(from) {
		return fmt.Errorf("fsm: %s has no state %q", name, from)
	}
	if !m.IsKnown(to) {
		return fmt.Errorf("fsm: %s has no state %q", name, to)
	}
	if !m.CanTransition(from, to) {
		return fmt.Errorf("fsm: %s cannot transition %q -> %q", name, from, to)
	}
	return nil
}

// Entry returns the entry state for an artifact kind.
func (r *Registry) Entry(k model.Kind) string {
	name := NameFor(k)
	if m := r.Machine(name); m != nil {
		return m.Entry
	}
	return ""
}

// IsTerminal reports whether state is terminal for kind k.
func (r *Registry) IsTerminal(k model.Kind, state string) bool {
	name := NameFor(k)
	if m := r.Machine(name); m != nil {
		return m.IsTerminal(state)
	}
	return false
}
