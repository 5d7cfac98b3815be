// Package config builds runtime configuration from the environment so main
// stays lean. Missing optional backends (postgres, redis, kafka) switch the
// affected component to its in-process fallback rather than failing startup.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "rollout/pkg/platform/strings"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr string

	// DatabaseURL selects the persistent store. Empty runs the server on
	// in-memory stores, which is only suitable for development and tests.
	DatabaseURL string

	// RedisURL enables the evaluation snapshot cache when set.
	RedisURL string
	CacheTTL time.Duration
	Redis    RedisConfig

	// KafkaBrokers enables audit event fan-out when non-empty.
	KafkaBrokers    []string
	KafkaAuditTopic string

	// JWTSigningKey verifies admin tokens.
	JWTSigningKey string

	// DefaultEnvironment fills evaluation requests that omit one.
	DefaultEnvironment string

	// StoreReadTimeout bounds flag snapshot reads on the evaluation path.
	StoreReadTimeout time.Duration

	LogLevel string
}

// RedisConfig tunes the cache client connection pool.
type RedisConfig struct {
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:               envOr("ROLLOUT_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("ROLLOUT_REDIS_URL"),
		CacheTTL:           envDuration("ROLLOUT_CACHE_TTL", 30*time.Second),
		KafkaAuditTopic:    envOr("ROLLOUT_KAFKA_AUDIT_TOPIC", "rollout.audit"),
		JWTSigningKey:      envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		DefaultEnvironment: envOr("ROLLOUT_DEFAULT_ENVIRONMENT", "production"),
		StoreReadTimeout:   envDuration("ROLLOUT_STORE_READ_TIMEOUT", 500*time.Millisecond),
		LogLevel:           envOr("ROLLOUT_LOG_LEVEL", "info"),
		Redis: RedisConfig{
			PoolSize:     envInt("ROLLOUT_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("ROLLOUT_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("ROLLOUT_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("ROLLOUT_REDIS_READ_TIMEOUT", 250*time.Millisecond),
			WriteTimeout: envDuration("ROLLOUT_REDIS_WRITE_TIMEOUT", 250*time.Millisecond),
		},
	}

	if brokers := os.Getenv("ROLLOUT_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = pstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
