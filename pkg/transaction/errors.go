package transaction

import "errors"

var (
	// ErrTransactionNotFound is returned for unknown ids and for ids owned by another user.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrUnknownStatus rejects callback updates carrying a status outside the ledger set.
	ErrUnknownStatus = errors.New("unknown transaction status")
	// ErrInvalidDraft is returned when a draft misses its user, plan, method or provider.
	ErrInvalidDraft = errors.New("invalid draft transaction")
)
