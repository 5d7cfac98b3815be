// Package service exposes read access to the audit trail for operators.
package service

import (
	"context"
	"log/slog"
	"strings"

	dErrors "rollout/pkg/domain-errors"
	audit "rollout/pkg/platform/audit"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Reader is the subset of the audit store the query API needs.
type Reader interface {
	ListByCorrelationID(ctx context.Context, correlationID string) ([]audit.Event, error)
	ListByFlag(ctx context.Context, q audit.FlagQuery) ([]audit.Event, error)
}

// Service answers audit trail queries.
type Service struct {
	reader Reader
	logger *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New constructs the audit query service.
func New(reader Reader, opts ...Option) *Service {
	s := &Service{reader: reader}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ByCorrelationID returns the full trail of one request, in insertion order.
func (s *Service) ByCorrelationID(ctx context.Context, correlationID string) ([]audit.Event, error) {
	if strings.TrimSpace(correlationID) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "correlationId is required")
	}
	events, err := s.reader.ListByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query audit trail")
	}
	return events, nil
}

// ByFlag returns the history of one flag, optionally bounded by a time range.
func (s *Service) ByFlag(ctx context.Context, q audit.FlagQuery) ([]audit.Event, error) {
	if strings.TrimSpace(q.FlagName) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "flagName is required")
	}
	if strings.TrimSpace(q.Environment) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "environment is required")
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return nil, dErrors.New(dErrors.CodeValidation, "time range end precedes start")
	}
	if q.Limit < 0 || q.Offset < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "limit and offset must be non-negative")
	}
	if q.Limit == 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}

	events, err := s.reader.ListByFlag(ctx, q)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query audit trail")
	}
	return events, nil
}
