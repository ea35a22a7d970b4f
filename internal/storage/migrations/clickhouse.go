package migrations

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	chstore "trendline-lab/internal/storage/clickhouse"
)

const createClickhouseHistory = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    UInt32,
    name       String,
    applied_at DateTime64(3)
) ENGINE = MergeTree()
ORDER BY version`

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// RunClickhouseMigrations creates the DSN's database if needed and applies the
// embedded ClickHouse migrations not yet recorded in schema_migrations.
// Returns a connection to the target database for reuse.
//
// ClickHouse has no transactional DDL: a migration is recorded only after it
// succeeds, so its statement must be safe to repeat.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	all, err := load(embedded, clickhouseDir)
	if err != nil {
		return nil, err
	}
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}

	adminConn, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	if err := adminConn.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+dbName); err != nil {
		adminConn.Close()
		return nil, fmt.Errorf("create database %s: %w", dbName, err)
	}
	if err := adminConn.Close(); err != nil {
		return nil, fmt.Errorf("close admin connection: %w", err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}
	if err := migrateClickhouse(ctx, conn, all); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func migrateClickhouse(ctx context.Context, conn *chstore.Conn, all []Migration) error {
	if err := conn.Exec(ctx, createClickhouseHistory); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	rows, err := conn.Query(ctx, "SELECT version, name FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	applied := make(map[int]string)
	for rows.Next() {
		var (
			version uint32
			name    string
		)
		if err := rows.Scan(&version, &name); err != nil {
			rows.Close()
			return fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[int(version)] = name
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}

	todo, err := pending(all, applied)
	if err != nil {
		return err
	}
	for _, m := range todo {
		stmt, err := clickhouseStatement(m)
		if err != nil {
			return err
		}
		if err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
		if err := conn.Exec(ctx,
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			uint32(m.Version), m.Name, time.Now(),
		); err != nil {
			return fmt.Errorf("record migration %s: %w", m.Name, err)
		}
	}
	return nil
}

// clickhouseStatement returns the single statement of m without comment lines
// or the trailing semicolon. The native protocol runs one statement per Exec,
// so a ClickHouse migration file holds exactly one.
func clickhouseStatement(m Migration) (string, error) {
	var lines []string
	for _, line := range strings.Split(m.SQL, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}
	stmt := strings.TrimSpace(strings.Join(lines, "\n"))
	stmt = strings.TrimSpace(strings.TrimSuffix(stmt, ";"))
	if stmt == "" {
		return "", fmt.Errorf("%w: %s has no statement", ErrInvalidMigration, m.Name)
	}
	if strings.Contains(stmt, ";") {
		return "", fmt.Errorf("%w: %s holds more than one statement", ErrInvalidMigration, m.Name)
	}
	return stmt, nil
}

// databaseFromDSN returns the database named in the DSN path.
// It must be a plain identifier since it is spliced into CREATE DATABASE.
func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	if !identifier.MatchString(db) {
		return "", fmt.Errorf("clickhouse database %q is not a plain identifier", db)
	}
	return db, nil
}
