package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"trendline-lab/internal/storage/postgres"
)

// postgresLockKey serializes migration runs across processes sharing a database.
const postgresLockKey = 0x74726e64

const createPostgresHistory = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT   NOT NULL,
    applied_at BIGINT NOT NULL
)`

// RunPostgresMigrations applies the embedded PostgreSQL migrations that are not
// yet recorded in schema_migrations. All pending migrations run in one
// transaction.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	all, err := load(embedded, postgresDir)
	if err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, createPostgresHistory); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migrations: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", postgresLockKey); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}

	applied, err := postgresApplied(ctx, tx)
	if err != nil {
		return err
	}
	todo, err := pending(all, applied)
	if err != nil {
		return err
	}

	for _, m := range todo {
		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, $3)",
			m.Version, m.Name, time.Now().UnixMilli(),
		); err != nil {
			return fmt.Errorf("record migration %s: %w", m.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

func postgresApplied(ctx context.Context, tx pgx.Tx) (map[int]string, error) {
	rows, err := tx.Query(ctx, "SELECT version, name FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]string)
	for rows.Next() {
		var (
			version int32
			name    string
		)
		if err := rows.Scan(&version, &name); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[int(version)] = name
	}
	return applied, rows.Err()
}
