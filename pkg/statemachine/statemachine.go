package statemachine

import "context"

// Guard evaluates whether a move should be allowed based on runtime conditions.
type Guard[S comparable] func(ctx context.Context, from, to S) bool

// Table is an immutable set of allowed moves between states of type S.
// It holds no current state: callers keep state in their own records and ask
// the table whether a move from the stored value to a proposed one is legal.
type Table[S comparable] struct {
	moves  map[S]map[S][]Guard[S]
	states map[S]struct{}
}

// Can reports whether from -> to is a declared move whose guards all pass.
func (t *Table[S]) Can(ctx context.Context, from, to S) bool {
	return t.Check(ctx, from, to) == nil
}

// Check validates from -> to.
// It returns ErrSameState for a self move, *ErrNoTransitionAvailable when the
// move is not declared and *ErrTransitionRejected when a guard refuses it.
func (t *Table[S]) Check(ctx context.Context, from, to S) error {
	if from == to {
		return ErrSameState
	}
	targets, ok := t.moves[from]
	if !ok {
		return NewErrNoTransitionAvailable(from, to)
	}
	guards, ok := targets[to]
	if !ok {
		return NewErrNoTransitionAvailable(from, to)
	}
	for _, g := range guards {
		if g != nil && !g(ctx, from, to) {
			return NewErrTransitionRejected(from, to)
		}
	}
	return nil
}

// Terminal reports whether s has no outgoing moves.
func (t *Table[S]) Terminal(s S) bool {
	return len(t.moves[s]) == 0
}

// Known reports whether s appears anywhere in the table.
func (t *Table[S]) Known(s S) bool {
	_, ok := t.states[s]
	return ok
}

// Targets returns the states reachable from s in one move, in no particular order.
func (t *Table[S]) Targets(s S) []S {
	out := make([]S, 0, len(t.moves[s]))
	for to := range t.moves[s] {
		out = append(out, to)
	}
	return out
}
