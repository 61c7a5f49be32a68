package redis

import (
	"context"
	"fmt"
	"strconv"

	"casino-engine/internal/core/domain"
	"casino-engine/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// StatsStore implements ports.StatsRecorder with one hash per game.
type StatsStore struct {
	client *goredis.Client
	prefix string
}

// NewStatsStore creates a new Redis-backed RTP counter store.
func NewStatsStore(client *goredis.Client) *StatsStore {
	return &StatsStore{client: client, prefix: keyPrefix + "stats:"}
}

// Record adds one round to the game's running totals.
func (s *StatsStore) Record(ctx context.Context, g domain.Game, wager, payout int64) error {
	key := s.prefix + string(g)
	_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HIncrBy(ctx, key, "rounds", 1)
		p.HIncrBy(ctx, key, "wagered", wager)
		p.HIncrBy(ctx, key, "paid", payout)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis stats record: %w", err)
	}
	return nil
}

// Stats returns the running totals; a game with no rounds yields zeros.
func (s *StatsStore) Stats(ctx context.Context, g domain.Game) (ports.GameStats, error) {
	vals, err := s.client.HGetAll(ctx, s.prefix+string(g)).Result()
	if err != nil {
		return ports.GameStats{}, fmt.Errorf("redis stats get: %w", err)
	}
	st := ports.GameStats{Game: g}
	for field, dst := range map[string]*int64{"rounds": &st.Rounds, "wagered": &st.Wagered, "paid": &st.Paid} {
		if v, ok := vals[field]; ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ports.GameStats{}, fmt.Errorf("parse stats field %s: %w", field, err)
			}
			*dst = n
		}
	}
	return st, nil
}
