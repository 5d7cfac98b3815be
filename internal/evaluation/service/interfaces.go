package service

import (
	"context"

	"rollout/internal/flags/models"
	audit "rollout/pkg/platform/audit"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/interfaces.go -package=mocks

// FlagReader supplies the flag snapshot an evaluation runs against. The cache
// decorator and the persistent stores both satisfy it.
type FlagReader interface {
	GetWithAllowlists(ctx context.Context, name, environment string) (*models.FeatureFlag, models.Allowlists, bool, error)
}

// Ledger records evaluation events. Evaluations use the best-effort append:
// a failing audit sink must not block feature delivery.
type Ledger interface {
	AppendBestEffort(ctx context.Context, event audit.Event)
}
