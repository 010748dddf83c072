// Package fsm provides a small finite state machine builder on top of looplab/fsm.
// file: internal/fsm/fsm.go
package fsm

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/authsession/internal/logging"
	lfsm "github.com/looplab/fsm"
)

// State represents a state in the FSM.
type State string

// Event represents an event that can trigger a state transition.
type Event string

// TransitionAction runs after a transition completed. It receives the
// source state so a single action can react differently per origin.
type TransitionAction func(ctx context.Context, from State, data any) error

// GuardCondition decides whether an event may fire from the current state.
type GuardCondition func(ctx context.Context, from State, data any) bool

// Transition defines a transition rule between states.
type Transition struct {
	From      []State
	To        State
	Event     Event
	Action    TransitionAction
	Condition GuardCondition
}

// ErrGuardRejected is returned (wrapped) when a guard condition refuses an event.
var ErrGuardRejected = errors.New("guard condition rejected transition")

// Machine is a built state machine. Create one with a Builder.
type Machine struct {
	logger      logging.Logger
	initial     State
	machine     *lfsm.FSM
	transitions map[Event][]Transition

	// mu serializes Transition calls so that the action of one transition
	// completes before the next event is evaluated.
	mu sync.Mutex
}

// Builder collects transitions before the machine is created.
type Builder struct {
	initial     State
	logger      logging.Logger
	transitions []Transition
	err         error
}

// NewBuilder starts a machine definition with the given initial state.
func NewBuilder(initial State, logger logging.Logger) *Builder {
	return &Builder{
		initial: initial,
		logger:  logging.OrNoop(logger).WithField("component", "fsm"),
	}
}

// AddTransition stores a transition definition. Errors surface from Build.
func (b *Builder) AddTransition(t Transition) *Builder {
	if b.err != nil {
		return b
	}
	if len(t.From) == 0 {
		b.err = errors.Newf("transition for event %q has no source states", t.Event)
		return b
	}
	if t.Event == "" || t.To == "" {
		b.err = errors.New("transition requires an event and a destination")
		return b
	}
	b.transitions = append(b.transitions, t)
	return b
}

// Build validates the definitions and creates the looplab machine.
// An event may only have one destination; use separate events otherwise.
func (b *Builder) Build() (*Machine, error) {
	if b.err != nil {
		return nil, b.err
	}

	byEvent := make(map[Event][]Transition)
	descs := make(map[Event]*lfsm.EventDesc)
	order := make([]Event, 0)

	for _, t := range b.transitions {
		desc, ok := descs[t.Event]
		if !ok {
			desc = &lfsm.EventDesc{Name: string(t.Event), Dst: string(t.To)}
			descs[t.Event] = desc
			order = append(order, t.Event)
		} else if desc.Dst != string(t.To) {
			return nil, errors.Newf("event %q has conflicting destinations %q and %q", t.Event, desc.Dst, t.To)
		}
		for _, from := range t.From {
			if !containsString(desc.Src, string(from)) {
				desc.Src = append(desc.Src, string(from))
			}
		}
		byEvent[t.Event] = append(byEvent[t.Event], t)
	}

	m := &Machine{
		logger:      b.logger,
		initial:     b.initial,
		transitions: byEvent,
	}

	events := make([]lfsm.EventDesc, 0, len(order))
	callbacks := lfsm.Callbacks{}
	for _, ev := range order {
		events = append(events, *descs[ev])
		if hasGuard(byEvent[ev]) {
			callbacks["before_"+string(ev)] = m.guardCallback(ev)
		}
	}

	m.machine = lfsm.NewFSM(string(b.initial), events, callbacks)
	b.logger.Debug("State machine built.", "initial", b.initial, "events", len(events))
	return m, nil
}

func (m *Machine) guardCallback(ev Event) lfsm.Callback {
	return func(ctx context.Context, e *lfsm.Event) {
		t, ok := m.match(ev, State(e.Src))
		if !ok || t.Condition == nil {
			return
		}
		if !t.Condition(ctx, State(e.Src), eventData(e.Args)) {
			e.Cancel(errors.Wrapf(ErrGuardRejected, "event %q from %q", ev, e.Src))
		}
	}
}

func (m *Machine) match(ev Event, from State) (Transition, bool) {
	for _, t := range m.transitions[ev] {
		for _, src := range t.From {
			if src == from {
				return t, true
			}
		}
	}
	return Transition{}, false
}

// Current returns the current state.
func (m *Machine) Current() State {
	return State(m.machine.Current())
}

// Can reports whether the event is defined for the current state.
func (m *Machine) Can(ev Event) bool {
	return m.machine.Can(string(ev))
}

// Fire triggers ev. Self transitions (src == dst) are treated as success.
// The transition action, if any, runs after the state has changed and its
// error is returned to the caller.
func (m *Machine) Fire(ctx context.Context, ev Event, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.Current()
	var args []any
	if data != nil {
		args = append(args, data)
	}

	err := m.machine.Event(ctx, string(ev), args...)
	if err != nil {
		var noTransition lfsm.NoTransitionError
		if !errors.As(err, &noTransition) || noTransition.Err != nil {
			m.logger.Debug("Transition refused.", "event", ev, "state", from, "error", err)
			return err
		}
	}

	t, ok := m.match(ev, from)
	if ok && t.Action != nil {
		if err := t.Action(ctx, from, data); err != nil {
			m.logger.Warn("Transition action failed.", "event", ev, "from", from, "to", m.Current(), "error", err)
			return errors.Wrapf(err, "action for event %q", ev)
		}
	}
	m.logger.Debug("Transition complete.", "event", ev, "from", from, "to", m.Current())
	return nil
}

// SetState forces the machine into state without running guards or actions.
func (m *Machine) SetState(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger.Warn("Forcing state.", "state", state)
	m.machine.SetState(string(state))
}

// Reset returns the machine to its initial state.
func (m *Machine) Reset() {
	m.SetState(m.initial)
}

func eventData(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}

func hasGuard(ts []Transition) bool {
	for _, t := range ts {
		if t.Condition != nil {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
