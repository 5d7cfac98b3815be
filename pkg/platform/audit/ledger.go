package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	dErrors "rollout/pkg/domain-errors"
	"rollout/pkg/requestcontext"
)

// Publisher fans appended events out to external consumers (SIEM, analytics).
// Publishing is always best-effort and never blocks the durability decision.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Option configures the Ledger.
type Option func(*Ledger)

// WithLogger sets a logger for append failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithPublisher attaches a downstream publisher.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithTimeout bounds the store write for best-effort appends.
func WithTimeout(d time.Duration) Option {
	return func(l *Ledger) { l.timeout = d }
}

const defaultAppendTimeout = 2 * time.Second

// Ledger wraps a Store with the two append disciplines this system needs:
//
//   - AppendRequired: administrative mutations. The write is synchronous and
//     fail-closed: if the event cannot be persisted the mutation must not go
//     through, so the error propagates.
//   - AppendBestEffort: evaluation events. The caller needs an answer whether
//     or not the trail is reachable, so failures are logged and counted but
//     never returned.
//
// The asymmetry is deliberate: losing the record of a policy change is
// unacceptable, losing one evaluation record is observability degradation.
type Ledger struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	metrics   *Metrics
	timeout   time.Duration
}

// NewLedger constructs a Ledger over store.
func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, timeout: defaultAppendTimeout}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AppendRequired durably records an administrative mutation. If the caller's
// context carries a transaction, the write joins it, making the mutation and
// its audit event atomic. Returns an error the caller MUST treat as fatal to
// its operation.
func (l *Ledger) AppendRequired(ctx context.Context, event Event) error {
	l.prepare(ctx, &event)

	if err := l.store.Append(ctx, event); err != nil {
		if l.metrics != nil {
			l.metrics.IncAppendFailures(string(event.Action))
		}
		if l.logger != nil {
			l.logger.ErrorContext(ctx, "required audit append failed",
				"action", event.Action,
				"flag", event.FlagName,
				"correlation_id", event.CorrelationID,
				"error", err,
			)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit trail unavailable")
	}

	l.afterAppend(ctx, event)
	return nil
}

// AppendBestEffort records an evaluation event without ever failing the
// caller. The write is detached from the caller's cancellation, so an aborted
// HTTP request does not cost the trail its entry, but is still bounded by the
// ledger timeout.
func (l *Ledger) AppendBestEffort(ctx context.Context, event Event) {
	l.prepare(ctx, &event)

	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	if err := l.store.Append(detached, event); err != nil {
		if l.metrics != nil {
			l.metrics.IncAppendFailures(string(event.Action))
		}
		if l.logger != nil {
			l.logger.WarnContext(ctx, "best-effort audit append failed",
				"action", event.Action,
				"flag", event.FlagName,
				"correlation_id", event.CorrelationID,
				"error", err,
			)
		}
		return
	}

	l.afterAppend(detached, event)
}

func (l *Ledger) prepare(ctx context.Context, event *Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.CorrelationID == "" {
		event.CorrelationID = requestcontext.CorrelationID(ctx)
	}
}

func (l *Ledger) afterAppend(ctx context.Context, event Event) {
	if l.metrics != nil {
		l.metrics.IncEventsAppended(string(event.Action))
	}
	if l.publisher != nil {
		l.publisher.Publish(ctx, event)
	}
}
