package redis

import (
	"context"
	"fmt"
	"time"

	"casino-engine/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// RateLimitStore counts requests per key in fixed windows shared by every
// engine instance.
type RateLimitStore struct {
	client *goredis.Client
	now    func() time.Time
}

func NewRateLimitStore(client *goredis.Client) *RateLimitStore {
	return &RateLimitStore{client: client, now: time.Now}
}

// Allow increments key's counter for the current window. The INCR and the
// expiry go out in one MULTI so a counter never outlives its window.
func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*ports.RateLimitResult, error) {
	id, resetAt := ports.Window(s.now(), window)
	counter := fmt.Sprintf("%sratelimit:%s:%d", keyPrefix, key, id)

	var incr *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		incr = p.Incr(ctx, counter)
		p.Expire(ctx, counter, window+time.Second)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("counting %s: %w", key, err)
	}
	return ports.CountResult(incr.Val(), limit, resetAt), nil
}
