// Package lifecycle provides a small table-driven state machine used to
// model entity lifecycles. Transitions are declared up front through the
// Builder; a built Machine validates every Fire call against the table so
// that illegal transitions are unrepresentable at runtime.
package lifecycle

import "fmt"

// GuardFunc evaluates whether a transition should be allowed
type GuardFunc func() bool

// transition is a target state with an optional guard
type transition[S ~string] struct {
	toState S
	guard   GuardFunc
}

// Builder accumulates transition configurations before building a Machine
type Builder[S, T ~string] struct {
	transitions map[S]map[T][]transition[S]
}

// NewBuilder creates an empty state machine builder
func NewBuilder[S, T ~string]() *Builder[S, T] {
	return &Builder[S, T]{
		transitions: make(map[S]map[T][]transition[S]),
	}
}

// StateConfig configures outgoing transitions for one state
type StateConfig[S, T ~string] struct {
	builder *Builder[S, T]
	from    S
}

// Configure returns the transition configuration for the given state
func (b *Builder[S, T]) Configure(state S) *StateConfig[S, T] {
	if _, ok := b.transitions[state]; !ok {
		b.transitions[state] = make(map[T][]transition[S])
	}
	return &StateConfig[S, T]{builder: b, from: state}
}

// Permit allows a trigger to transition to the target state
func (c *StateConfig[S, T]) Permit(trigger T, toState S) *StateConfig[S, T] {
	return c.PermitIf(trigger, toState, nil)
}

// PermitIf allows a trigger to transition to the target state when the
// guard passes
func (c *StateConfig[S, T]) PermitIf(trigger T, toState S, guard GuardFunc) *StateConfig[S, T] {
	edges := c.builder.transitions[c.from]
	edges[trigger] = append(edges[trigger], transition[S]{toState: toState, guard: guard})
	return c
}

// Build creates a machine positioned at the given initial state. The
// builder's tables are copied so later Configure calls do not affect
// machines already built.
func (b *Builder[S, T]) Build(initial S) *Machine[S, T] {
	copied := make(map[S]map[T][]transition[S], len(b.transitions))
	for state, edges := range b.transitions {
		edgesCopy := make(map[T][]transition[S], len(edges))
		for trigger, ts := range edges {
			edgesCopy[trigger] = append([]transition[S]{}, ts...)
		}
		copied[state] = edgesCopy
	}
	return &Machine[S, T]{current: initial, transitions: copied}
}

// Machine tracks a current state and validates trigger firings against
// the configured transition table
type Machine[S, T ~string] struct {
	current     S
	transitions map[S]map[T][]transition[S]
}

// State returns the current state
func (m *Machine[S, T]) State() S {
	return m.current
}

// CanFire returns true if the trigger has at least one configured
// transition from the current state. Guards are not evaluated here.
func (m *Machine[S, T]) CanFire(trigger T) bool {
	edges, ok := m.transitions[m.current]
	if !ok {
		return false
	}
	return len(edges[trigger]) > 0
}

// Fire executes the trigger, moving to the first target whose guard
// passes. Returns ErrInvalidTransition when the trigger is not configured
// for the current state and ErrGuardFailed when all guards reject.
func (m *Machine[S, T]) Fire(trigger T) error {
	edges, ok := m.transitions[m.current]
	if !ok || len(edges[trigger]) == 0 {
		return fmt.Errorf("%w: trigger %s from state %s", ErrInvalidTransition, trigger, m.current)
	}
	for _, t := range edges[trigger] {
		if t.guard == nil || t.guard() {
			m.current = t.toState
			return nil
		}
	}
	return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.current)
}

// PermittedTriggers returns the triggers configured for the current state
func (m *Machine[S, T]) PermittedTriggers() []T {
	edges, ok := m.transitions[m.current]
	if !ok {
		return []T{}
	}
	triggers := make([]T, 0, len(edges))
	for trigger := range edges {
		triggers = append(triggers, trigger)
	}
	return triggers
}
