package workflow

import "sort"

// Machine is an explicit finite state machine: a transition table keyed by
// (state, action). Anything not in the table is refused.
type Machine[S ~string, A ~string] struct {
	entity string
	edges  map[S]map[A]S
}

// NewMachine builds a machine for the named entity from its transition table.
func NewMachine[S ~string, A ~string](entity string, edges map[S]map[A]S) *Machine[S, A] {
	return &Machine[S, A]{entity: entity, edges: edges}
}

// Can reports whether action is permitted from state.
func (m *Machine[S, A]) Can(from S, action A) bool {
	_, ok := m.edges[from][action]
	return ok
}

// Next returns the target state of action from state, or an
// *InvalidStateError naming the actions that are permitted.
func (m *Machine[S, A]) Next(from S, action A) (S, error) {
	if to, ok := m.edges[from][action]; ok {
		return to, nil
	}
	return from, &InvalidStateError{
		Entity:  m.entity,
		Current: string(from),
		Action:  string(action),
		Allowed: actionNames(m.Allowed(from)),
	}
}

// Allowed lists the actions permitted from state in a stable order.
func (m *Machine[S, A]) Allowed(from S) []A {
	out := make([]A, 0, len(m.edges[from]))
	for action := range m.edges[from] {
		out = append(out, action)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AllowedNames is Allowed as plain strings, for error details.
func (m *Machine[S, A]) AllowedNames(from S) []string {
	return actionNames(m.Allowed(from))
}

func actionNames[A ~string](actions []A) []string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return names
}
