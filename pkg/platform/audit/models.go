// Package audit defines the append-only audit trail for flag evaluations and
// administrative mutations. Events are write-once, read-many: no code path in
// this repository updates or deletes an existing event.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action classifies what produced an audit event.
type Action string

const (
	ActionEvaluated        Action = "evaluated"
	ActionCreated          Action = "created"
	ActionUpdated          Action = "updated"
	ActionDeleted          Action = "deleted"
	ActionAllowlistAdded   Action = "allowlist_added"
	ActionAllowlistRemoved Action = "allowlist_removed"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionEvaluated, ActionCreated, ActionUpdated, ActionDeleted,
		ActionAllowlistAdded, ActionAllowlistRemoved:
		return true
	}
	return false
}

// Event is one entry of the audit trail. Keep it transport-agnostic so stores
// and publishers can fan out.
type Event struct {
	ID            uuid.UUID `json:"id"`
	FlagName      string    `json:"flag_name"`
	Environment   string    `json:"environment"`
	Action        Action    `json:"action"`
	Result        *bool     `json:"result,omitempty"` // set for evaluated events only
	Reason        string    `json:"reason,omitempty"`
	TenantID      string    `json:"tenant_id,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
	Actor         string    `json:"actor,omitempty"` // admin identity for mutations
	CorrelationID string    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// FlagQuery selects events for one flag within a time range, paginated.
// Zero From/To mean unbounded on that side.
type FlagQuery struct {
	FlagName    string
	Environment string
	From        time.Time
	To          time.Time
	Limit       int
	Offset      int
}

// Store persists audit events. Append is the only write; both list methods
// return events in insertion order.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByCorrelationID(ctx context.Context, correlationID string) ([]Event, error)
	ListByFlag(ctx context.Context, q FlagQuery) ([]Event, error)
}
