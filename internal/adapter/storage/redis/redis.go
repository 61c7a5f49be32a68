// Package redis holds the Redis-backed stores: rate limits, idempotency keys,
// the persisted exchange rate, per-game RTP counters and cross-instance user locks.
package redis

import (
	"context"
	"fmt"
	"time"

	"casino-engine/config"
	"casino-engine/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "casino:"

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(clientOptions(cfg))

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Int("pool_size", cfg.PoolSize).
		Msg("Redis connection established")

	return client, nil
}

// clientOptions maps config onto go-redis options. Zero values keep the
// library defaults.
func clientOptions(cfg config.RedisConfig) *goredis.Options {
	return &goredis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// HealthProbe pings the client for /health.
func HealthProbe(client *goredis.Client) ports.Probe {
	return ports.NewProbe("redis", time.Second, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}
