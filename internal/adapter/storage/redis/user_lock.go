package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired is returned when the retry budget runs out.
var ErrLockNotAcquired = errors.New("user lock not acquired")

// unlockScript deletes the key only if it still holds our token, so an
// expired holder can never release a lock someone else now owns.
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// UserLock implements ports.UserLocker with SET NX EX and a compare-and-delete release.
type UserLock struct {
	client        *goredis.Client
	prefix        string
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

// NewUserLock creates a Redis-backed per-user lock. ttl bounds how long a
// crashed holder can block the user.
func NewUserLock(client *goredis.Client, ttl time.Duration) *UserLock {
	return &UserLock{
		client:        client,
		prefix:        keyPrefix + "lock:user:",
		ttl:           ttl,
		retryInterval: 20 * time.Millisecond,
		maxRetries:    250,
	}
}

// Lock retries until the lock is held, the context ends or retries run out.
func (l *UserLock) Lock(ctx context.Context, userID uuid.UUID) (string, error) {
	key := l.prefix + userID.String()
	token := uuid.NewString()
	for i := 0; i < l.maxRetries; i++ {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("redis user lock: %w", err)
		}
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
	return "", ErrLockNotAcquired
}

// Unlock releases the lock if token still owns it.
func (l *UserLock) Unlock(ctx context.Context, userID uuid.UUID, token string) error {
	if err := unlockScript.Run(ctx, l.client, []string{l.prefix + userID.String()}, token).Err(); err != nil {
		return fmt.Errorf("redis user unlock: %w", err)
	}
	return nil
}
