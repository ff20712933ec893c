package transaction

import (
	"context"

	"github.com/dmitrymomot/billing/pkg/ledger"
	"github.com/dmitrymomot/billing/pkg/statemachine"
)

// statuses holds the forward-only status rules of a charge.
var statuses = statemachine.NewBuilder[ledger.TransactionStatus]().
	From(ledger.StatusDraft).To(ledger.StatusProcessing, ledger.StatusSucceeded, ledger.StatusFailed).
	From(ledger.StatusProcessing).To(ledger.StatusSucceeded, ledger.StatusFailed).
	From(ledger.StatusSucceeded).To(ledger.StatusRefunded).
	Terminal(ledger.StatusFailed, ledger.StatusRefunded).
	MustBuild()

// CanMove reports whether a transaction in status from may be moved to status to.
func CanMove(from, to ledger.TransactionStatus) bool {
	return statuses.Can(context.Background(), from, to)
}

// IsTerminal reports whether no further status changes are possible.
func IsTerminal(s ledger.TransactionStatus) bool {
	return statuses.Terminal(s)
}
