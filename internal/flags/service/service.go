// Package service orchestrates administrative flag mutations. Every mutation
// runs inside a transaction together with its required audit append; a
// policy change that cannot be recorded does not happen.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	flagmetrics "rollout/internal/flags/metrics"
	"rollout/internal/flags/models"
	dErrors "rollout/pkg/domain-errors"
	audit "rollout/pkg/platform/audit"
	"rollout/pkg/platform/sentinel"
	"rollout/pkg/platform/tx"
	"rollout/pkg/requestcontext"
)

// Service coordinates flag CRUD and allowlist management.
type Service struct {
	store       Store
	ledger      Ledger
	runner      tx.Runner
	logger      *slog.Logger
	metrics     *flagmetrics.Metrics
	invalidator Invalidator
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *flagmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithInvalidator(inv Invalidator) Option {
	return func(s *Service) { s.invalidator = inv }
}

// New constructs the admin service. Runner defaults to the no-op runner for
// in-memory stores, which are individually atomic.
func New(store Store, ledger Ledger, runner tx.Runner, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("flag store is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("audit ledger is required")
	}
	if runner == nil {
		runner = tx.NewNoopRunner()
	}
	s := &Service{store: store, ledger: ledger, runner: runner}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateFlag registers a new flag. Duplicate (name, environment) is a conflict.
func (s *Service) CreateFlag(ctx context.Context, name, environment string, status models.Status, owner string) (*models.FeatureFlag, error) {
	name = strings.TrimSpace(name)
	environment = strings.TrimSpace(environment)

	var flag *models.FeatureFlag
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		f, err := models.NewFeatureFlag(name, environment, status, owner, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}

		if err := s.store.Create(txCtx, f); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "flag already exists in this environment")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create flag")
		}

		if err := s.appendMutation(txCtx, audit.ActionCreated, f.Name, f.Environment,
			fmt.Sprintf("status=%s owner=%s", f.Status, f.Owner)); err != nil {
			return err
		}
		flag = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, string(audit.ActionCreated), name, environment)
	return flag, nil
}

// UpdateFlag applies a partial update. The store serializes concurrent
// updates per (name, environment).
func (s *Service) UpdateFlag(ctx context.Context, name, environment string, patch models.UpdatePatch) (*models.FeatureFlag, error) {
	if err := validateKey(name, environment); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "update patch is empty")
	}

	var flag *models.FeatureFlag
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		f, err := s.store.Update(txCtx, name, environment, patch, requestcontext.Now(txCtx))
		if err != nil {
			return translateFlagErr(err, "failed to update flag")
		}

		if err := s.appendMutation(txCtx, audit.ActionUpdated, name, environment, describePatch(patch)); err != nil {
			return err
		}
		flag = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, string(audit.ActionUpdated), name, environment)
	return flag, nil
}

// DeleteFlag removes a flag and its allowlists. The delete is audited inside
// the same transaction, so the trail records the removal even though the row
// is gone.
func (s *Service) DeleteFlag(ctx context.Context, name, environment string) error {
	if err := validateKey(name, environment); err != nil {
		return err
	}

	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.appendMutation(txCtx, audit.ActionDeleted, name, environment, "flag deleted"); err != nil {
			return err
		}
		if err := s.store.Delete(txCtx, name, environment); err != nil {
			return translateFlagErr(err, "failed to delete flag")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.afterMutation(ctx, string(audit.ActionDeleted), name, environment)
	return nil
}

// GetFlag returns one flag definition.
func (s *Service) GetFlag(ctx context.Context, name, environment string) (*models.FeatureFlag, error) {
	if err := validateKey(name, environment); err != nil {
		return nil, err
	}
	flag, found, err := s.store.Get(ctx, name, environment)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load flag")
	}
	if !found {
		return nil, dErrors.New(dErrors.CodeNotFound, "flag not found")
	}
	return flag, nil
}

// ListFlags returns every flag in an environment.
func (s *Service) ListFlags(ctx context.Context, environment string) ([]*models.FeatureFlag, error) {
	if err := models.ValidateName("environment", environment); err != nil {
		return nil, err
	}
	flags, err := s.store.List(ctx, environment)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list flags")
	}
	return flags, nil
}

// AddAllowlistEntry grants a subject access to a non-GA flag. Idempotent:
// re-adding an existing subject changes nothing but is still audited as an
// administrative action.
func (s *Service) AddAllowlistEntry(ctx context.Context, name, environment string, kind models.AllowlistKind, subjectID string) error {
	if err := validateAllowlistInput(name, environment, kind, subjectID); err != nil {
		return err
	}

	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		entry := &models.AllowlistEntry{
			FlagName:    name,
			Environment: environment,
			Kind:        kind,
			SubjectID:   subjectID,
			AddedAt:     requestcontext.Now(txCtx),
		}
		if err := s.store.AddToAllowlist(txCtx, entry); err != nil {
			return translateFlagErr(err, "failed to add allowlist entry")
		}
		return s.appendAllowlistMutation(txCtx, audit.ActionAllowlistAdded, name, environment, kind, subjectID)
	})
	if err != nil {
		return err
	}

	s.afterMutation(ctx, string(audit.ActionAllowlistAdded), name, environment)
	return nil
}

// RemoveAllowlistEntry revokes a subject's access. Idempotent.
func (s *Service) RemoveAllowlistEntry(ctx context.Context, name, environment string, kind models.AllowlistKind, subjectID string) error {
	if err := validateAllowlistInput(name, environment, kind, subjectID); err != nil {
		return err
	}

	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.RemoveFromAllowlist(txCtx, name, environment, kind, subjectID); err != nil {
			return translateFlagErr(err, "failed to remove allowlist entry")
		}
		return s.appendAllowlistMutation(txCtx, audit.ActionAllowlistRemoved, name, environment, kind, subjectID)
	})
	if err != nil {
		return err
	}

	s.afterMutation(ctx, string(audit.ActionAllowlistRemoved), name, environment)
	return nil
}

// ListAllowlist returns the subject set of one allowlist.
func (s *Service) ListAllowlist(ctx context.Context, name, environment string, kind models.AllowlistKind) ([]string, error) {
	if err := validateKey(name, environment); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "allowlist kind must be tenant or user")
	}
	subjects, err := s.store.ListAllowlist(ctx, name, environment, kind)
	if err != nil {
		return nil, translateFlagErr(err, "failed to list allowlist")
	}
	return subjects, nil
}

func (s *Service) appendMutation(ctx context.Context, action audit.Action, name, environment, reason string) error {
	return s.ledger.AppendRequired(ctx, audit.Event{
		FlagName:    name,
		Environment: environment,
		Action:      action,
		Reason:      reason,
		Actor:       requestcontext.Actor(ctx),
	})
}

func (s *Service) appendAllowlistMutation(ctx context.Context, action audit.Action, name, environment string, kind models.AllowlistKind, subjectID string) error {
	event := audit.Event{
		FlagName:    name,
		Environment: environment,
		Action:      action,
		Reason:      fmt.Sprintf("%s allowlist", kind),
		Actor:       requestcontext.Actor(ctx),
	}
	if kind == models.KindTenant {
		event.TenantID = subjectID
	} else {
		event.UserID = subjectID
	}
	return s.ledger.AppendRequired(ctx, event)
}

func (s *Service) afterMutation(ctx context.Context, action, name, environment string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, name, environment)
	}
	if s.metrics != nil {
		s.metrics.IncMutations(action)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "flag mutation applied",
			"action", action,
			"flag", name,
			"environment", environment,
			"actor", requestcontext.Actor(ctx),
			"correlation_id", requestcontext.CorrelationID(ctx),
		)
	}
}

func validateKey(name, environment string) error {
	if err := models.ValidateName("flag name", name); err != nil {
		return err
	}
	return models.ValidateName("environment", environment)
}

func validateAllowlistInput(name, environment string, kind models.AllowlistKind, subjectID string) error {
	if err := validateKey(name, environment); err != nil {
		return err
	}
	if !kind.Valid() {
		return dErrors.New(dErrors.CodeValidation, "allowlist kind must be tenant or user")
	}
	if strings.TrimSpace(subjectID) == "" {
		return dErrors.New(dErrors.CodeValidation, "subject id is required")
	}
	return nil
}

func translateFlagErr(err error, internalMsg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "flag not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "flag already exists in this environment")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
	}
}

func describePatch(patch models.UpdatePatch) string {
	var parts []string
	if patch.Status != nil {
		parts = append(parts, "status="+patch.Status.String())
	}
	if patch.Owner != nil {
		parts = append(parts, "owner="+*patch.Owner)
	}
	return strings.Join(parts, " ")
}
