package statemachine

import "fmt"

// Builder provides a fluent API for declaring a transition table.
type Builder[S comparable] struct {
	moves  map[S]map[S][]Guard[S]
	states map[S]struct{}
	from   S
	set    bool
	err    error
}

// NewBuilder creates an empty table builder.
func NewBuilder[S comparable]() *Builder[S] {
	return &Builder[S]{
		moves:  make(map[S]map[S][]Guard[S]),
		states: make(map[S]struct{}),
	}
}

// From sets the source state for the following To calls.
func (b *Builder[S]) From(state S) *Builder[S] {
	b.from = state
	b.set = true
	b.states[state] = struct{}{}
	return b
}

// To declares moves from the current source state to each target.
// Guards apply to every target of this call.
func (b *Builder[S]) To(targets ...S) *Builder[S] {
	return b.ToWhen(nil, targets...)
}

// ToWhen is To with a guard attached.
func (b *Builder[S]) ToWhen(guard Guard[S], targets ...S) *Builder[S] {
	if !b.set {
		b.fail(ErrInvalidTransition)
		return b
	}
	for _, to := range targets {
		if to == b.from {
			b.fail(fmt.Errorf("%w: self move on %v", ErrInvalidTransition, to))
			continue
		}
		if _, ok := b.moves[b.from]; !ok {
			b.moves[b.from] = make(map[S][]Guard[S])
		}
		if guard != nil {
			b.moves[b.from][to] = append(b.moves[b.from][to], guard)
		} else if _, ok := b.moves[b.from][to]; !ok {
			b.moves[b.from][to] = nil
		}
		b.states[to] = struct{}{}
	}
	return b
}

// Terminal registers states with no outgoing moves so Known reports them.
func (b *Builder[S]) Terminal(states ...S) *Builder[S] {
	for _, s := range states {
		b.states[s] = struct{}{}
	}
	return b
}

// Build returns the constructed table, or the first declaration error.
func (b *Builder[S]) Build() (*Table[S], error) {
	if b.err != nil {
		return nil, b.err
	}
	return &Table[S]{moves: b.moves, states: b.states}, nil
}

// MustBuild is Build that panics on error. Tables are declared at package init,
// so a bad declaration is a programming error.
func (b *Builder[S]) MustBuild() *Table[S] {
	t, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build transition table: %v", err))
	}
	return t
}

func (b *Builder[S]) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
