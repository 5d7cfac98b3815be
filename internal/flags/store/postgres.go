package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"rollout/internal/flags/models"
	"rollout/pkg/platform/sentinel"
	txcontext "rollout/pkg/platform/tx"
)

// Postgres persists flags in PostgreSQL. Mutations are serialized per
// (name, environment) by row-level locks; cross-flag mutations proceed in
// parallel. All methods join a caller transaction carried in context, which
// is how the admin service makes a mutation and its audit event atomic.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed flag store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// wrapInfra hides the storage-engine error behind the unavailable sentinel so
// engine-specific detail never leaks past the store.
func wrapInfra(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", sentinel.ErrUnavailable, op, err)
}

func (s *Postgres) Get(ctx context.Context, name, environment string) (*models.FeatureFlag, bool, error) {
	query := `
		SELECT name, environment, status, owner, created_at, updated_at
		FROM feature_flags
		WHERE name = $1 AND environment = $2
	`
	flag, err := scanFlag(s.runner(ctx).QueryRowContext(ctx, query, name, environment))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapInfra("get flag", err)
	}
	return flag, true, nil
}

func (s *Postgres) GetWithAllowlists(ctx context.Context, name, environment string) (*models.FeatureFlag, models.Allowlists, bool, error) {
	flag, found, err := s.Get(ctx, name, environment)
	if err != nil || !found {
		return nil, models.Allowlists{}, found, err
	}

	tenants, err := s.listSubjects(ctx, "tenant_allowlist", "tenant_id", name, environment)
	if err != nil {
		return nil, models.Allowlists{}, false, err
	}
	users, err := s.listSubjects(ctx, "user_allowlist", "user_id", name, environment)
	if err != nil {
		return nil, models.Allowlists{}, false, err
	}
	return flag, models.NewAllowlists(tenants, users), true, nil
}

func (s *Postgres) List(ctx context.Context, environment string) ([]*models.FeatureFlag, error) {
	query := `
		SELECT name, environment, status, owner, created_at, updated_at
		FROM feature_flags
		WHERE environment = $1
		ORDER BY name
	`
	rows, err := s.runner(ctx).QueryContext(ctx, query, environment)
	if err != nil {
		return nil, wrapInfra("list flags", err)
	}
	defer rows.Close()

	var flags []*models.FeatureFlag
	for rows.Next() {
		flag, err := scanFlag(rows)
		if err != nil {
			return nil, wrapInfra("scan flag", err)
		}
		flags = append(flags, flag)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapInfra("iterate flags", err)
	}
	return flags, nil
}

func (s *Postgres) Create(ctx context.Context, flag *models.FeatureFlag) error {
	query := `
		INSERT INTO feature_flags (name, environment, status, owner, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.runner(ctx).ExecContext(ctx, query,
		flag.Name,
		flag.Environment,
		string(flag.Status),
		flag.Owner,
		flag.CreatedAt,
		flag.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: flag %s/%s", sentinel.ErrConflict, flag.Environment, flag.Name)
		}
		return wrapInfra("create flag", err)
	}
	return nil
}

// Update locks the row, applies the patch, and bumps updated_at
// monotonically. Concurrent updates to the same key serialize on the lock.
func (s *Postgres) Update(ctx context.Context, name, environment string, patch models.UpdatePatch, now time.Time) (*models.FeatureFlag, error) {
	runner := s.runner(ctx)

	lockQuery := `
		SELECT name, environment, status, owner, created_at, updated_at
		FROM feature_flags
		WHERE name = $1 AND environment = $2
		FOR UPDATE
	`
	flag, err := scanFlag(runner.QueryRowContext(ctx, lockQuery, name, environment))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: flag %s/%s", sentinel.ErrNotFound, environment, name)
	}
	if err != nil {
		return nil, wrapInfra("lock flag", err)
	}

	flag.ApplyPatch(patch, now)

	updateQuery := `
		UPDATE feature_flags
		SET status = $3, owner = $4, updated_at = $5
		WHERE name = $1 AND environment = $2
	`
	_, err = runner.ExecContext(ctx, updateQuery,
		name,
		environment,
		string(flag.Status),
		flag.Owner,
		flag.UpdatedAt,
	)
	if err != nil {
		return nil, wrapInfra("update flag", err)
	}
	return flag, nil
}

func (s *Postgres) Delete(ctx context.Context, name, environment string) error {
	runner := s.runner(ctx)

	// Allowlists go with the flag; the audit trail references flags by name
	// and survives unaffected.
	for _, table := range []string{"tenant_allowlist", "user_allowlist"} {
		query := fmt.Sprintf(`DELETE FROM %s WHERE flag_name = $1 AND environment = $2`, table)
		if _, err := runner.ExecContext(ctx, query, name, environment); err != nil {
			return wrapInfra("delete allowlists", err)
		}
	}

	result, err := runner.ExecContext(ctx,
		`DELETE FROM feature_flags WHERE name = $1 AND environment = $2`,
		name, environment,
	)
	if err != nil {
		return wrapInfra("delete flag", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return wrapInfra("delete flag", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: flag %s/%s", sentinel.ErrNotFound, environment, name)
	}
	return nil
}

func (s *Postgres) AddToAllowlist(ctx context.Context, entry *models.AllowlistEntry) error {
	runner := s.runner(ctx)

	if err := s.requireFlag(ctx, entry.FlagName, entry.Environment); err != nil {
		return err
	}

	table, column := allowlistTable(entry.Kind)
	// ON CONFLICT DO NOTHING gives set semantics: a duplicate insert keeps
	// the original added_at.
	query := fmt.Sprintf(`
		INSERT INTO %s (flag_name, environment, %s, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (flag_name, environment, %s) DO NOTHING
	`, table, column, column)

	_, err := runner.ExecContext(ctx, query,
		entry.FlagName,
		entry.Environment,
		entry.SubjectID,
		entry.AddedAt,
	)
	if err != nil {
		return wrapInfra("add allowlist entry", err)
	}
	return nil
}

func (s *Postgres) RemoveFromAllowlist(ctx context.Context, name, environment string, kind models.AllowlistKind, subjectID string) error {
	if err := s.requireFlag(ctx, name, environment); err != nil {
		return err
	}

	table, column := allowlistTable(kind)
	query := fmt.Sprintf(`DELETE FROM %s WHERE flag_name = $1 AND environment = $2 AND %s = $3`, table, column)

	if _, err := s.runner(ctx).ExecContext(ctx, query, name, environment, subjectID); err != nil {
		return wrapInfra("remove allowlist entry", err)
	}
	return nil
}

func (s *Postgres) ListAllowlist(ctx context.Context, name, environment string, kind models.AllowlistKind) ([]string, error) {
	if err := s.requireFlag(ctx, name, environment); err != nil {
		return nil, err
	}
	table, column := allowlistTable(kind)
	return s.listSubjects(ctx, table, column, name, environment)
}

func (s *Postgres) requireFlag(ctx context.Context, name, environment string) error {
	var exists bool
	err := s.runner(ctx).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM feature_flags WHERE name = $1 AND environment = $2)`,
		name, environment,
	).Scan(&exists)
	if err != nil {
		return wrapInfra("check flag", err)
	}
	if !exists {
		return fmt.Errorf("%w: flag %s/%s", sentinel.ErrNotFound, environment, name)
	}
	return nil
}

func (s *Postgres) listSubjects(ctx context.Context, table, column, name, environment string) ([]string, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE flag_name = $1 AND environment = $2 ORDER BY %s`, column, table, column)

	rows, err := s.runner(ctx).QueryContext(ctx, query, name, environment)
	if err != nil {
		return nil, wrapInfra("list allowlist", err)
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var subject string
		if err := rows.Scan(&subject); err != nil {
			return nil, wrapInfra("scan allowlist entry", err)
		}
		subjects = append(subjects, subject)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapInfra("iterate allowlist", err)
	}
	return subjects, nil
}

// allowlistTable maps a kind to its table and subject column. Kinds are a
// closed enum, so the table name never derives from caller input.
func allowlistTable(kind models.AllowlistKind) (table, column string) {
	if kind == models.KindUser {
		return "user_allowlist", "user_id"
	}
	return "tenant_allowlist", "tenant_id"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlag(row rowScanner) (*models.FeatureFlag, error) {
	var (
		flag   models.FeatureFlag
		status string
	)
	err := row.Scan(
		&flag.Name,
		&flag.Environment,
		&status,
		&flag.Owner,
		&flag.CreatedAt,
		&flag.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	flag.Status = models.Status(status)
	return &flag, nil
}
