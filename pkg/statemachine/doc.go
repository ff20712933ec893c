// Package statemachine provides generic transition tables for states that are
// persisted elsewhere.
//
// A Table does not track a current state. Records such as charge transactions
// keep their status in the database; before writing a new status the caller asks
// the table whether the move is allowed:
//
//	var statuses = statemachine.NewBuilder[Status]().
//		From(Draft).To(Processing, Succeeded, Failed).
//		From(Processing).To(Succeeded, Failed).
//		From(Succeeded).To(Refunded).
//		Terminal(Failed, Refunded).
//		MustBuild()
//
//	if err := statuses.Check(ctx, current, next); err != nil {
//		// ErrSameState, *ErrNoTransitionAvailable or *ErrTransitionRejected
//	}
//
// Guards can veto a declared move at runtime with ToWhen.
package statemachine
