package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyGuard implements ports.IdempotencyGuard using Redis SET NX.
type IdempotencyGuard struct {
	client *goredis.Client
	prefix string
}

// NewIdempotencyGuard creates a new Redis-backed idempotency guard.
func NewIdempotencyGuard(client *goredis.Client) *IdempotencyGuard {
	return &IdempotencyGuard{
		client: client,
		prefix: keyPrefix + "idem:",
	}
}

// Claim atomically records key. Returns true if the key is new, false if
// a request with the same key was already accepted within ttl.
func (g *IdempotencyGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := g.client.SetArgs(ctx, g.prefix+key, time.Now().Unix(), goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis idempotency claim: %w", err)
	}
	return result == "OK", nil
}
