package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Conn is the part of a pool the readiness check needs.
type Conn interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Healthcheck returns a readiness check for the billing database. It pings conn
// and then confirms every relation in tables exists, so an instance pointed at
// an unmigrated database reports not ready instead of failing its first charge.
func Healthcheck(conn Conn, tables ...string) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := conn.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		for _, table := range tables {
			var exists bool
			if err := conn.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists); err != nil {
				return errors.Join(ErrHealthcheckFailed, err)
			}
			if !exists {
				return fmt.Errorf("%w: relation %q", ErrSchemaNotMigrated, table)
			}
		}
		return nil
	}
}
