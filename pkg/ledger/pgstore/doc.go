// Package pgstore implements ledger.Store on PostgreSQL with pgx/v5.
//
// Each InTx call opens a READ COMMITTED transaction and, for a non-nil lock key,
// takes pg_advisory_xact_lock(hashtext(key)) before running the callback. The
// lock is released on commit or rollback. Partial unique indexes back the
// single-default and single-active rules; violations surface as
// ledger.ErrDuplicate.
//
// The schema ships as embedded goose migrations:
//
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, log); err != nil {
//		return err
//	}
//	store := pgstore.New(pool)
package pgstore
