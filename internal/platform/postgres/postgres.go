// Package postgres opens the database handle and owns the schema the stores
// rely on.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
)

// Open connects to PostgreSQL via the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return db, nil
}

// schema is applied on startup. Statements are idempotent so restarts and
// rolling deploys are safe.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS feature_flags (
		name        TEXT        NOT NULL,
		environment TEXT        NOT NULL,
		status      TEXT        NOT NULL,
		owner       TEXT        NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (name, environment)
	)`,
	`CREATE TABLE IF NOT EXISTS tenant_allowlist (
		flag_name   TEXT        NOT NULL,
		environment TEXT        NOT NULL,
		tenant_id   TEXT        NOT NULL,
		added_at    TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (flag_name, environment, tenant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_allowlist (
		flag_name   TEXT        NOT NULL,
		environment TEXT        NOT NULL,
		user_id     TEXT        NOT NULL,
		added_at    TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (flag_name, environment, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		seq            BIGSERIAL   PRIMARY KEY,
		id             UUID        NOT NULL,
		flag_name      TEXT        NOT NULL,
		environment    TEXT        NOT NULL,
		action         TEXT        NOT NULL,
		result         BOOLEAN,
		reason         TEXT        NOT NULL DEFAULT '',
		tenant_id      TEXT        NOT NULL DEFAULT '',
		user_id        TEXT        NOT NULL DEFAULT '',
		actor          TEXT        NOT NULL DEFAULT '',
		correlation_id TEXT        NOT NULL,
		"timestamp"    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS audit_log_correlation_idx ON audit_log (correlation_id)`,
	`CREATE INDEX IF NOT EXISTS audit_log_flag_ts_idx ON audit_log (flag_name, environment, "timestamp")`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
