package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billing/pkg/ledger"
	"github.com/dmitrymomot/billing/pkg/pg"
)

// Migrations holds the schema owned by this store, applied with pg.Migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that goose reads.
const MigrationsDir = "migrations"

// Store implements ledger.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ ledger.Store = (*Store)(nil)

// New returns a Store backed by pool. It panics on a nil pool.
func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("pgstore: pool is required")
	}
	return &Store{pool: pool}
}

type txKey struct{}

// InTx runs fn inside a database transaction.
// A non-nil lockKey takes pg_advisory_xact_lock(hashtext(lockKey)) first, so
// callbacks for the same user run one at a time until commit.
func (s *Store) InTx(ctx context.Context, lockKey uuid.UUID, fn func(ctx context.Context, tx ledger.Tx) error) error {
	if fn == nil {
		return ledger.ErrNilCallback
	}
	if tx, ok := ctx.Value(txKey{}).(*pgTx); ok && tx.store == s {
		if lockKey != uuid.Nil {
			if err := tx.lock(ctx, lockKey); err != nil {
				return err
			}
		}
		return fn(ctx, tx)
	}

	dbTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("pgstore: begin transaction: %w", err)
	}
	defer func() { _ = dbTx.Rollback(context.WithoutCancel(ctx)) }()

	tx := &pgTx{store: s, tx: dbTx}
	if lockKey != uuid.Nil {
		if err := tx.lock(ctx, lockKey); err != nil {
			return err
		}
	}

	txCtx, hooks := ledger.WithCommitHooks(ctx)
	if err := fn(context.WithValue(txCtx, txKey{}, tx), tx); err != nil {
		return err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("pgstore: commit transaction: %w", err)
	}
	hooks.Run(ctx)
	return nil
}

type pgTx struct {
	store *Store
	tx    pgx.Tx
}

func (t *pgTx) lock(ctx context.Context, key uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key.String()); err != nil {
		return fmt.Errorf("pgstore: acquire advisory lock: %w", err)
	}
	return nil
}

// mapError translates driver errors into ledger sentinels.
func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case pg.IsNotFoundError(err):
		return ledger.ErrNotFound
	case pg.IsDuplicateKeyError(err):
		return errors.Join(ledger.ErrDuplicate, err)
	default:
		return fmt.Errorf("pgstore: %s: %w", op, err)
	}
}

// execOne runs a write that must touch exactly one row.
func (t *pgTx) execOne(ctx context.Context, op, sql string, args ...any) error {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}
