package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"casino-engine/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// RateStore implements ports.RateStore. The rate is stored as JSON without expiry.
type RateStore struct {
	client *goredis.Client
	key    string
}

// NewRateStore creates a new Redis-backed exchange rate store.
func NewRateStore(client *goredis.Client) *RateStore {
	return &RateStore{client: client, key: keyPrefix + "exchange_rate"}
}

// Save overwrites the stored rate.
func (s *RateStore) Save(ctx context.Context, rate domain.ExchangeRate) error {
	data, err := json.Marshal(rate)
	if err != nil {
		return fmt.Errorf("marshal exchange rate: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis rate set: %w", err)
	}
	return nil
}

// Load returns nil, nil if no rate has been stored.
func (s *RateStore) Load(ctx context.Context) (*domain.ExchangeRate, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis rate get: %w", err)
	}
	var rate domain.ExchangeRate
	if err := json.Unmarshal(data, &rate); err != nil {
		return nil, fmt.Errorf("decode exchange rate: %w", err)
	}
	return &rate, nil
}
