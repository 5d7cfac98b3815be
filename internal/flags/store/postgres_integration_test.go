//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollout/internal/flags/models"
	"rollout/internal/flags/store"
	"rollout/pkg/platform/sentinel"
	"rollout/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"audit_log", "tenant_allowlist", "user_allowlist", "feature_flags")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) create(name, environment string, status models.Status) *models.FeatureFlag {
	flag, err := models.NewFeatureFlag(name, environment, status, "platform", time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), flag))
	return flag
}

func (s *PostgresStoreSuite) TestCreateGetRoundTrip() {
	ctx := context.Background()
	created := s.create("checkout.redesign", "production", models.StatusBeta)

	flag, found, err := s.store.Get(ctx, "checkout.redesign", "production")
	s.Require().NoError(err)
	s.Require().True(found)
	s.Equal(created.Status, flag.Status)
	s.Equal(created.Owner, flag.Owner)
	s.WithinDuration(created.CreatedAt, flag.CreatedAt, time.Millisecond)
}

// TestConcurrentDuplicateCreate verifies that concurrent creates of the same
// (name, environment) key produce exactly one flag.
func (s *PostgresStoreSuite) TestConcurrentDuplicateCreate() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var created, conflicted atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			flag, err := models.NewFeatureFlag("race.flag", "production", models.StatusDisabled, "platform", time.Now().UTC())
			if err != nil {
				return
			}
			switch err := s.store.Create(ctx, flag); {
			case err == nil:
				created.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicted.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	s.Equal(int32(goroutines-1), conflicted.Load())
}

func (s *PostgresStoreSuite) TestUpdateSerializesConcurrentPatches() {
	ctx := context.Background()
	s.create("checkout.redesign", "production", models.StatusDisabled)

	const goroutines = 10
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			status := models.StatusBeta
			if n%2 == 0 {
				status = models.StatusGA
			}
			_, err := s.store.Update(ctx, "checkout.redesign", "production",
				models.UpdatePatch{Status: &status}, time.Now().UTC())
			s.NoError(err)
		}(i)
	}
	wg.Wait()

	flag, found, err := s.store.Get(ctx, "checkout.redesign", "production")
	s.Require().NoError(err)
	s.Require().True(found)
	// One of the two written statuses won; the row is never torn.
	s.Contains([]models.Status{models.StatusBeta, models.StatusGA}, flag.Status)
}

func (s *PostgresStoreSuite) TestAllowlistLifecycle() {
	ctx := context.Background()
	s.create("checkout.redesign", "production", models.StatusBeta)

	entry := &models.AllowlistEntry{
		FlagName: "checkout.redesign", Environment: "production",
		Kind: models.KindTenant, SubjectID: "acme", AddedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.store.AddToAllowlist(ctx, entry))
	// Idempotent re-add.
	s.Require().NoError(s.store.AddToAllowlist(ctx, entry))

	subjects, err := s.store.ListAllowlist(ctx, "checkout.redesign", "production", models.KindTenant)
	s.Require().NoError(err)
	s.Equal([]string{"acme"}, subjects)

	_, lists, found, err := s.store.GetWithAllowlists(ctx, "checkout.redesign", "production")
	s.Require().NoError(err)
	s.Require().True(found)
	s.Contains(lists.Tenants, "acme")
	s.Empty(lists.Users)

	s.Require().NoError(s.store.RemoveFromAllowlist(ctx, "checkout.redesign", "production", models.KindTenant, "acme"))
	subjects, err = s.store.ListAllowlist(ctx, "checkout.redesign", "production", models.KindTenant)
	s.Require().NoError(err)
	s.Empty(subjects)
}

func (s *PostgresStoreSuite) TestAllowlistRequiresFlag() {
	err := s.store.AddToAllowlist(context.Background(), &models.AllowlistEntry{
		FlagName: "ghost", Environment: "production",
		Kind: models.KindUser, SubjectID: "u1", AddedAt: time.Now().UTC(),
	})
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *PostgresStoreSuite) TestDeleteCascadesAllowlists() {
	ctx := context.Background()
	s.create("checkout.redesign", "production", models.StatusBeta)
	s.Require().NoError(s.store.AddToAllowlist(ctx, &models.AllowlistEntry{
		FlagName: "checkout.redesign", Environment: "production",
		Kind: models.KindUser, SubjectID: "u42", AddedAt: time.Now().UTC(),
	}))

	s.Require().NoError(s.store.Delete(ctx, "checkout.redesign", "production"))

	_, found, err := s.store.Get(ctx, "checkout.redesign", "production")
	s.Require().NoError(err)
	s.False(found)

	var count int
	err = s.postgres.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_allowlist WHERE flag_name = $1 AND environment = $2`,
		"checkout.redesign", "production").Scan(&count)
	s.Require().NoError(err)
	s.Zero(count)

	s.True(errors.Is(s.store.Delete(ctx, "checkout.redesign", "production"), sentinel.ErrNotFound))
}

func (s *PostgresStoreSuite) TestListByEnvironment() {
	ctx := context.Background()
	s.create("checkout.redesign", "production", models.StatusBeta)
	s.create("checkout.redesign", "staging", models.StatusGA)

	flags, err := s.store.List(ctx, "staging")
	s.Require().NoError(err)
	s.Require().Len(flags, 1)
	s.Equal(models.StatusGA, flags[0].Status)
}
