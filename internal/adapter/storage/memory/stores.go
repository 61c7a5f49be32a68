package memory

import (
	"context"
	"sync"
	"time"

	"casino-engine/internal/core/domain"
	"casino-engine/internal/core/ports"
)

// RateLimitStore implements ports.RateLimitStore with in-process fixed windows.
type RateLimitStore struct {
	mu      sync.Mutex
	windows map[string]rateWindow
	now     func() time.Time
}

type rateWindow struct {
	id    int64
	count int64
}

func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{windows: make(map[string]rateWindow), now: time.Now}
}

// Allow counts one request against key's current window.
func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*ports.RateLimitResult, error) {
	id, resetAt := ports.Window(s.now(), window)

	s.mu.Lock()
	w := s.windows[key]
	if w.id != id {
		w = rateWindow{id: id}
	}
	w.count++
	s.windows[key] = w
	s.mu.Unlock()

	return ports.CountResult(w.count, limit, resetAt), nil
}

// IdempotencyGuard implements ports.IdempotencyGuard in process memory.
type IdempotencyGuard struct {
	mu     sync.Mutex
	claims map[string]time.Time
	now    func() time.Time
}

func NewIdempotencyGuard() *IdempotencyGuard {
	return &IdempotencyGuard{claims: make(map[string]time.Time), now: time.Now}
}

// Claim returns true the first time key is seen within ttl.
func (g *IdempotencyGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	if exp, ok := g.claims[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.claims[key] = now.Add(ttl)
	// opportunistic cleanup keeps the map bounded by live claims
	if len(g.claims)%256 == 0 {
		for k, exp := range g.claims {
			if !now.Before(exp) {
				delete(g.claims, k)
			}
		}
	}
	return true, nil
}

// RateStore implements ports.RateStore for a single process.
type RateStore struct {
	mu   sync.RWMutex
	rate *domain.ExchangeRate
}

func NewRateStore() *RateStore {
	return &RateStore{}
}

func (s *RateStore) Save(ctx context.Context, rate domain.ExchangeRate) error {
	s.mu.Lock()
	s.rate = &rate
	s.mu.Unlock()
	return nil
}

func (s *RateStore) Load(ctx context.Context) (*domain.ExchangeRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rate == nil {
		return nil, nil
	}
	r := *s.rate
	return &r, nil
}

// StatsStore implements ports.StatsRecorder in process memory.
type StatsStore struct {
	mu    sync.Mutex
	stats map[domain.Game]ports.GameStats
}

func NewStatsStore() *StatsStore {
	return &StatsStore{stats: make(map[domain.Game]ports.GameStats)}
}

func (s *StatsStore) Record(ctx context.Context, g domain.Game, wager, payout int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[g]
	st.Game = g
	st.Rounds++
	st.Wagered += wager
	st.Paid += payout
	s.stats[g] = st
	return nil
}

func (s *StatsStore) Stats(ctx context.Context, g domain.Game) (ports.GameStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[g]
	st.Game = g
	return st, nil
}
