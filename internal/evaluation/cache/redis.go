// Package cache provides a Redis read-through layer over the flag store for
// the evaluation hot path. Admin mutations invalidate the cached snapshot, so
// stale reads are bounded by one cache miss plus the TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	evalmetrics "rollout/internal/evaluation/metrics"
	"rollout/internal/flags/models"
)

const defaultTTL = 30 * time.Second

// Source is the underlying flag store the cache falls through to.
type Source interface {
	GetWithAllowlists(ctx context.Context, name, environment string) (*models.FeatureFlag, models.Allowlists, bool, error)
}

// snapshot is the cached wire form of a flag plus its allowlists.
type snapshot struct {
	Flag    models.FeatureFlag `json:"flag"`
	Tenants []string           `json:"tenants"`
	Users   []string           `json:"users"`
}

// Redis decorates a Source with a shared cache. Cache faults are never
// surfaced: a broken cache degrades to direct store reads.
type Redis struct {
	client  *redis.Client
	source  Source
	ttl     time.Duration
	logger  *slog.Logger
	metrics *evalmetrics.Metrics
}

// Option configures the cache.
type Option func(*Redis)

func WithTTL(ttl time.Duration) Option {
	return func(c *Redis) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Redis) { c.logger = logger }
}

func WithMetrics(m *evalmetrics.Metrics) Option {
	return func(c *Redis) { c.metrics = m }
}

// New wraps source with a Redis cache.
func New(client *redis.Client, source Source, opts ...Option) *Redis {
	c := &Redis{client: client, source: source, ttl: defaultTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetWithAllowlists serves the snapshot from Redis when present, otherwise
// reads through to the source and caches the result. Absent flags are not
// cached, so a newly created flag is visible on its first evaluation.
func (c *Redis) GetWithAllowlists(ctx context.Context, name, environment string) (*models.FeatureFlag, models.Allowlists, bool, error) {
	key := snapshotKey(name, environment)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var snap snapshot
		if err := json.Unmarshal(raw, &snap); err == nil {
			c.hit()
			return &snap.Flag, snap.allowlists(), true, nil
		}
		// Undecodable entry: drop it and read through.
		c.client.Del(ctx, key)
	case !errors.Is(err, redis.Nil):
		c.warn(ctx, "cache read failed, falling through to store", name, environment, err)
	}
	c.miss()

	flag, lists, found, err := c.source.GetWithAllowlists(ctx, name, environment)
	if err != nil || !found {
		return flag, lists, found, err
	}

	if raw, err := json.Marshal(newSnapshot(flag, lists)); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.warn(ctx, "cache write failed", name, environment, err)
		}
	}
	return flag, lists, true, nil
}

// Invalidate drops the cached snapshot for one flag. Called by the admin
// service after every committed mutation.
func (c *Redis) Invalidate(ctx context.Context, name, environment string) {
	if err := c.client.Del(ctx, snapshotKey(name, environment)).Err(); err != nil {
		c.warn(ctx, "cache invalidation failed", name, environment, err)
	}
}

func newSnapshot(flag *models.FeatureFlag, lists models.Allowlists) snapshot {
	snap := snapshot{Flag: *flag}
	for t := range lists.Tenants {
		snap.Tenants = append(snap.Tenants, t)
	}
	for u := range lists.Users {
		snap.Users = append(snap.Users, u)
	}
	return snap
}

func (s snapshot) allowlists() models.Allowlists {
	return models.NewAllowlists(s.Tenants, s.Users)
}

func snapshotKey(name, environment string) string {
	return fmt.Sprintf("rollout:flag:%s:%s", environment, name)
}

func (c *Redis) hit() {
	if c.metrics != nil {
		c.metrics.IncCacheHit()
	}
}

func (c *Redis) miss() {
	if c.metrics != nil {
		c.metrics.IncCacheMiss()
	}
}

func (c *Redis) warn(ctx context.Context, msg, name, environment string, err error) {
	if c.logger != nil {
		c.logger.WarnContext(ctx, msg, "flag", name, "environment", environment, "error", err)
	}
}
