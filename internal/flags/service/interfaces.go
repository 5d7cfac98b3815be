package service

import (
	"context"
	"time"

	"rollout/internal/flags/models"
	audit "rollout/pkg/platform/audit"
)

// Store is the persistence contract the admin service drives. Implemented by
// the memory and postgres stores in internal/flags/store.
type Store interface {
	Get(ctx context.Context, name, environment string) (*models.FeatureFlag, bool, error)
	List(ctx context.Context, environment string) ([]*models.FeatureFlag, error)
	Create(ctx context.Context, flag *models.FeatureFlag) error
	Update(ctx context.Context, name, environment string, patch models.UpdatePatch, now time.Time) (*models.FeatureFlag, error)
	Delete(ctx context.Context, name, environment string) error
	AddToAllowlist(ctx context.Context, entry *models.AllowlistEntry) error
	RemoveFromAllowlist(ctx context.Context, name, environment string, kind models.AllowlistKind, subjectID string) error
	ListAllowlist(ctx context.Context, name, environment string, kind models.AllowlistKind) ([]string, error)
}

// Ledger records administrative mutations. Appends are fail-closed: an error
// here fails the whole mutation.
type Ledger interface {
	AppendRequired(ctx context.Context, event audit.Event) error
}

// Invalidator drops cached flag snapshots after a committed mutation so
// evaluation converges on the new state within one cache miss.
type Invalidator interface {
	Invalidate(ctx context.Context, name, environment string)
}
