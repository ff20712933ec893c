package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFailedToOpenDBConnection = errors.New("pg: billing database is unreachable")
	ErrHealthcheckFailed        = errors.New("pg: billing database is not ready")
	ErrSchemaNotMigrated        = errors.New("pg: billing schema is not migrated")
	ErrFailedToParseDBConfig    = errors.New("pg: invalid billing database config")
	ErrFailedToApplyMigrations  = errors.New("pg: billing schema migration failed")
	ErrMigrationsNotProvided    = errors.New("pg: billing migrations filesystem not provided")
)

// IsNotFoundError detects pgx.ErrNoRows for consistent "not found" handling across queries.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKeyError detects PostgreSQL unique constraint violations (SQLSTATE 23505).
// Partial unique indexes on payment methods and subscriptions surface through here.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolationError detects referential integrity violations (SQLSTATE 23503).
func IsForeignKeyViolationError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
