// Package pg provides utilities for interacting with PostgreSQL using the
// pgx/v5 driver. It offers a thin abstraction around connection pooling,
// migrations, health checks, and common error helpers so that applications can
// bootstrap a resilient database layer with only a few lines of code.
//
// Connectivity comes from pgx/v5 and schema migrations from goose/v3.
//
// # Architecture
//
// At its core the package exposes three cooperating building blocks:
//
//   - Config: a struct populated from environment variables via
//     github.com/caarlos0/env. It controls pool limits, health-check cadence
//     and the migration version table.
//
//   - Connect: opens a *pgxpool.Pool based on Config, retrying with a growing
//     wait until the database becomes available or ctx is cancelled.
//
//   - Migrate: runs goose migrations from an fs.FS (usually an embed.FS owned
//     by the store package) against the same pool.
//
// # Usage
//
// Basic set-up using the default configuration:
//
//	package main
//
//	import (
//	    "context"
//	    "log/slog"
//
//	    "github.com/dmitrymomot/billing/pkg/config"
//	    "github.com/dmitrymomot/billing/pkg/ledger/pgstore"
//	    "github.com/dmitrymomot/billing/pkg/pg"
//	)
//
//	func main() {
//	    var cfg pg.Config
//	    if err := config.Load(&cfg); err != nil {
//	        panic(err)
//	    }
//
//	    ctx := context.Background()
//	    pool, err := pg.Connect(ctx, cfg)
//	    if err != nil {
//	        panic(err)
//	    }
//	    defer pool.Close()
//
//	    if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, slog.Default()); err != nil {
//	        panic(err)
//	    }
//
//	    health := pg.Healthcheck(pool, "plan", "user_subscription")
//	    if err := health(ctx); err != nil {
//	        panic(err)
//	    }
//	}
//
// # Configuration
//
// All configuration values are provided through environment variables so that
// they can be tuned per-environment without code changes. Refer to the field
// tags in Config for exact variable names and defaults.
//
// # Error Handling
//
// Helpers such as [IsDuplicateKeyError] or [IsForeignKeyViolationError]
// unwrap *pgconn.PgError values returned by pgx so stores can translate them
// into their own sentinel errors.
package pg
