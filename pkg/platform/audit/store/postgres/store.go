package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	audit "rollout/pkg/platform/audit"
	"rollout/pkg/platform/sentinel"
	txcontext "rollout/pkg/platform/tx"
)

// Store implements audit.Store on the append-only audit_log table. The table
// carries a monotonic seq column so insertion order survives identical
// timestamps; nothing in this package issues UPDATE or DELETE.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execer joins a caller transaction when one is carried in ctx, so an
// administrative mutation and its audit event commit or roll back together.
func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_log (
			id, flag_name, environment, action, result, reason,
			tenant_id, user_id, actor, correlation_id, timestamp
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		event.ID,
		event.FlagName,
		event.Environment,
		string(event.Action),
		event.Result,
		event.Reason,
		event.TenantID,
		event.UserID,
		event.Actor,
		event.CorrelationID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("%w: insert audit event: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

const selectColumns = `
	SELECT id, flag_name, environment, action, result, reason,
	       tenant_id, user_id, actor, correlation_id, timestamp
	FROM audit_log
`

func (s *Store) ListByCorrelationID(ctx context.Context, correlationID string) ([]audit.Event, error) {
	query := selectColumns + `
		WHERE correlation_id = $1
		ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query, correlationID)
	if err != nil {
		return nil, fmt.Errorf("%w: query audit events: %v", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *Store) ListByFlag(ctx context.Context, q audit.FlagQuery) ([]audit.Event, error) {
	query := selectColumns + `
		WHERE flag_name = $1
		  AND environment = $2
		  AND ($3::timestamptz IS NULL OR timestamp >= $3)
		  AND ($4::timestamptz IS NULL OR timestamp <= $4)
		ORDER BY seq
		LIMIT $5 OFFSET $6
	`
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, query,
		q.FlagName,
		q.Environment,
		nullTime(q.From),
		nullTime(q.To),
		limit,
		q.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query audit events: %v", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			event  audit.Event
			action string
			result sql.NullBool
		)
		err := rows.Scan(
			&event.ID,
			&event.FlagName,
			&event.Environment,
			&action,
			&result,
			&event.Reason,
			&event.TenantID,
			&event.UserID,
			&event.Actor,
			&event.CorrelationID,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scan audit event: %v", sentinel.ErrUnavailable, err)
		}

		event.Action = audit.Action(action)
		if result.Valid {
			event.Result = &result.Bool
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate audit events: %v", sentinel.ErrUnavailable, err)
	}
	return events, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
