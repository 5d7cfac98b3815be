//go:build integration

package cache_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollout/internal/evaluation/cache"
	"rollout/internal/flags/models"
	"rollout/internal/flags/store"
	"rollout/pkg/testutil/containers"
)

// countingSource counts reads that fall through to the underlying store.
type countingSource struct {
	inner *store.InMemory
	reads atomic.Int32
}

func (c *countingSource) GetWithAllowlists(ctx context.Context, name, environment string) (*models.FeatureFlag, models.Allowlists, bool, error) {
	c.reads.Add(1)
	return c.inner.GetWithAllowlists(ctx, name, environment)
}

type RedisCacheSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	source *countingSource
	cache  *cache.Redis
	ctx    context.Context
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisCacheSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.redis.FlushAll(s.ctx))

	s.source = &countingSource{inner: store.NewInMemory()}
	s.cache = cache.New(s.redis.Client, s.source, cache.WithTTL(time.Minute))

	flag, err := models.NewFeatureFlag("checkout.redesign", "production", models.StatusBeta, "payments", time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.source.inner.Create(s.ctx, flag))
	s.Require().NoError(s.source.inner.AddToAllowlist(s.ctx, &models.AllowlistEntry{
		FlagName: "checkout.redesign", Environment: "production",
		Kind: models.KindTenant, SubjectID: "acme", AddedAt: time.Now().UTC(),
	}))
}

func (s *RedisCacheSuite) TestReadThroughAndHit() {
	flag, lists, found, err := s.cache.GetWithAllowlists(s.ctx, "checkout.redesign", "production")
	s.Require().NoError(err)
	s.Require().True(found)
	s.Equal(models.StatusBeta, flag.Status)
	s.Contains(lists.Tenants, "acme")
	s.Equal(int32(1), s.source.reads.Load())

	// Second read is served from the cache.
	flag, lists, found, err = s.cache.GetWithAllowlists(s.ctx, "checkout.redesign", "production")
	s.Require().NoError(err)
	s.Require().True(found)
	s.Equal(models.StatusBeta, flag.Status)
	s.Contains(lists.Tenants, "acme")
	s.Equal(int32(1), s.source.reads.Load(), "cache hit must not touch the store")
}

func (s *RedisCacheSuite) TestAbsentFlagsAreNotCached() {
	_, _, found, err := s.cache.GetWithAllowlists(s.ctx, "ghost", "production")
	s.Require().NoError(err)
	s.False(found)

	// A flag created after a miss is visible immediately.
	flag, err := models.NewFeatureFlag("ghost", "production", models.StatusGA, "web", time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.source.inner.Create(s.ctx, flag))

	got, _, found, err := s.cache.GetWithAllowlists(s.ctx, "ghost", "production")
	s.Require().NoError(err)
	s.Require().True(found)
	s.Equal(models.StatusGA, got.Status)
}

func (s *RedisCacheSuite) TestInvalidateDropsSnapshot() {
	_, _, _, err := s.cache.GetWithAllowlists(s.ctx, "checkout.redesign", "production")
	s.Require().NoError(err)
	s.Equal(int32(1), s.source.reads.Load())

	// Mutate the store behind the cache, then invalidate.
	status := models.StatusDisabled
	_, err = s.source.inner.Update(s.ctx, "checkout.redesign", "production",
		models.UpdatePatch{Status: &status}, time.Now().UTC())
	s.Require().NoError(err)
	s.cache.Invalidate(s.ctx, "checkout.redesign", "production")

	flag, _, found, err := s.cache.GetWithAllowlists(s.ctx, "checkout.redesign", "production")
	s.Require().NoError(err)
	s.Require().True(found)
	s.Equal(models.StatusDisabled, flag.Status, "invalidation must expose the new state")
	s.Equal(int32(2), s.source.reads.Load())
}
