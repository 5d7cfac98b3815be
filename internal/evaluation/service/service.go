// Package service orchestrates flag evaluation: load a snapshot, run the pure
// decision, record the outcome. The hot-path contract is fail-safe: any
// infrastructure fault yields a disabled decision with a diagnostic reason
// instead of an error.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"rollout/internal/evaluation/evaluator"
	evalmetrics "rollout/internal/evaluation/metrics"
	"rollout/internal/flags/models"
	dErrors "rollout/pkg/domain-errors"
	audit "rollout/pkg/platform/audit"
	"rollout/pkg/requestcontext"
)

const (
	defaultReadTimeout = 500 * time.Millisecond
	bulkConcurrency    = 8
)

// Request identifies one evaluation: which flag, in which environment, for
// which caller.
type Request struct {
	FlagName    string
	Environment string
	TenantID    string
	UserID      string
}

// Result is the outcome returned to the caller and mirrored into the audit
// trail.
type Result struct {
	FlagName      string
	Environment   string
	Enabled       bool
	Reason        string
	EvaluatedAt   time.Time
	CorrelationID string
}

// Service evaluates flags against the read model.
type Service struct {
	reader      FlagReader
	ledger      Ledger
	logger      *slog.Logger
	metrics     *evalmetrics.Metrics
	tracer      trace.Tracer
	readTimeout time.Duration
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *evalmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithReadTimeout bounds the flag snapshot read. Reads exceeding it count as
// store unavailability and fail safe.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

// New constructs the evaluation service.
func New(reader FlagReader, ledger Ledger, opts ...Option) (*Service, error) {
	if reader == nil {
		return nil, fmt.Errorf("flag reader is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("audit ledger is required")
	}
	s := &Service{
		reader:      reader,
		ledger:      ledger,
		tracer:      otel.Tracer("rollout/evaluation"),
		readTimeout: defaultReadTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Evaluate gates one flag for one caller. The only error path is request
// validation; once the request is well-formed the caller always gets a
// decision, falling back to disabled when the snapshot cannot be loaded.
func (s *Service) Evaluate(ctx context.Context, req Request) (*Result, error) {
	if err := validateRequest(ctx, req); err != nil {
		return nil, err
	}
	return s.evaluateOne(ctx, req), nil
}

// EvaluateBulk gates several flags for the same caller. Results come back in
// request order. Entries are independent: one flag failing safe does not
// affect its neighbors.
func (s *Service) EvaluateBulk(ctx context.Context, names []string, base Request) ([]Result, error) {
	if len(names) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one flag name is required")
	}
	for _, name := range names {
		req := base
		req.FlagName = name
		if err := validateRequest(ctx, req); err != nil {
			return nil, err
		}
	}

	results := make([]Result, len(names))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrency)
	for i, name := range names {
		req := base
		req.FlagName = name
		g.Go(func() error {
			results[i] = *s.evaluateOne(gCtx, req)
			return nil
		})
	}
	// evaluateOne never errors; Wait only propagates ctx teardown ordering.
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "bulk evaluation failed")
	}
	return results, nil
}

func (s *Service) evaluateOne(ctx context.Context, req Request) *Result {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "evaluation.Evaluate",
		trace.WithAttributes(
			attribute.String("flag.name", req.FlagName),
			attribute.String("flag.environment", req.Environment),
		))
	defer span.End()

	decision := s.decide(ctx, req)

	result := &Result{
		FlagName:      req.FlagName,
		Environment:   req.Environment,
		Enabled:       decision.Enabled,
		Reason:        decision.Reason,
		EvaluatedAt:   requestcontext.Now(ctx),
		CorrelationID: requestcontext.CorrelationID(ctx),
	}
	span.SetAttributes(
		attribute.Bool("flag.enabled", result.Enabled),
		attribute.String("flag.reason", result.Reason),
	)

	s.ledger.AppendBestEffort(ctx, audit.Event{
		FlagName:    req.FlagName,
		Environment: req.Environment,
		Action:      audit.ActionEvaluated,
		Result:      &result.Enabled,
		Reason:      result.Reason,
		TenantID:    req.TenantID,
		UserID:      req.UserID,
		Timestamp:   result.EvaluatedAt,
	})

	if s.metrics != nil {
		s.metrics.IncEvaluation(result.Reason, result.Enabled)
		s.metrics.ObserveDuration(time.Since(start))
	}
	return result
}

// decide loads the snapshot under the read deadline and runs the pure gate.
func (s *Service) decide(ctx context.Context, req Request) evaluator.Decision {
	readCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	flag, lists, found, err := s.reader.GetWithAllowlists(readCtx, req.FlagName, req.Environment)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncFailSafe()
		}
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "flag snapshot read failed, failing safe",
				"flag", req.FlagName,
				"environment", req.Environment,
				"correlation_id", requestcontext.CorrelationID(ctx),
				"error", err,
			)
		}
		return evaluator.Disabled(evaluator.ReasonEvalError)
	}
	if !found {
		return evaluator.Disabled(evaluator.ReasonFlagNotFound)
	}
	return evaluator.Decide(flag, lists, evaluator.Context{TenantID: req.TenantID, UserID: req.UserID})
}

func validateRequest(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.FlagName) == "" {
		return dErrors.New(dErrors.CodeValidation, "flag name is required")
	}
	if err := models.ValidateName("environment", req.Environment); err != nil {
		return err
	}
	if requestcontext.CorrelationID(ctx) == "" {
		return dErrors.New(dErrors.CodeValidation, "correlation id is required")
	}
	return nil
}
