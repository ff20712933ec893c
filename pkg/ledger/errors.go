package ledger

import "errors"

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("ledger: record not found")
	// ErrDuplicate is returned when a write collides with a uniqueness rule
	// (provider method id, active default method, active subscription).
	ErrDuplicate = errors.New("ledger: duplicate record")
	// ErrNilCallback is returned by InTx when fn is nil.
	ErrNilCallback = errors.New("ledger: transaction callback is required")
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate reports whether err is or wraps ErrDuplicate.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
