package ports

import (
	"context"
	"encoding/json"
	"time"

	"casino-engine/internal/core/domain"

	"github.com/google/uuid"
)

// SignatureService handles HMAC-SHA256 signing and verification of round records.
type SignatureService interface {
	Sign(payload string) string
	Verify(payload string, signature string) bool
}

// TokenService verifies player session tokens. Generate exists for tooling
// and tests; the login flow that normally issues tokens lives elsewhere.
type TokenService interface {
	Generate(userID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims is what the engine reads from a verified token.
type TokenClaims struct {
	UserID    uuid.UUID
	ExpiresAt time.Time
}

// --- Store Ports ---

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// Window identifies the fixed window containing now. Windows shorter than a
// second are widened to one second.
func Window(now time.Time, window time.Duration) (id, resetAt int64) {
	secs := int64(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	id = now.Unix() / secs
	return id, (id + 1) * secs
}

// CountResult turns the count seen in a window into a RateLimitResult.
func CountResult(count, limit, resetAt int64) *RateLimitResult {
	return &RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   resetAt,
	}
}

// RetryAfter is the wait until the window resets, at least one second.
func (r *RateLimitResult) RetryAfter(now time.Time) time.Duration {
	return max(time.Unix(r.ResetAt, 0).Sub(now), time.Second)
}

// RateLimitStore counts requests in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// IdempotencyGuard claims a client-supplied request key exactly once.
type IdempotencyGuard interface {
	// Claim returns true if the key is new, false if it was already claimed.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RateStore persists the live exchange rate so restarts resume the walk.
type RateStore interface {
	Save(ctx context.Context, rate domain.ExchangeRate) error
	// Load returns nil, nil when nothing has been stored.
	Load(ctx context.Context) (*domain.ExchangeRate, error)
}

// GameStats aggregates observed returns for one game.
type GameStats struct {
	Game    domain.Game `json:"game"`
	Rounds  int64       `json:"rounds"`
	Wagered int64       `json:"wagered"`
	Paid    int64       `json:"paid"`
}

// RTP is the observed return to player, or zero before any wager.
func (s GameStats) RTP() float64 {
	if s.Wagered == 0 {
		return 0
	}
	return float64(s.Paid) / float64(s.Wagered)
}

// StatsRecorder accumulates per-game wager and payout totals.
type StatsRecorder interface {
	Record(ctx context.Context, g domain.Game, wager, payout int64) error
	Stats(ctx context.Context, g domain.Game) (GameStats, error)
}

// UserLocker serializes a user's settlements across engine instances.
type UserLocker interface {
	// Lock blocks until the lock is held and returns the owner token.
	Lock(ctx context.Context, userID uuid.UUID) (string, error)
	Unlock(ctx context.Context, userID uuid.UUID, token string) error
}

// EventPublisher emits settled rounds to downstream consumers.
type EventPublisher interface {
	PublishRound(ctx context.Context, round *domain.GameRound) error
	Close() error
}

// Broadcaster is the slice of the realtime hub the services push through.
// Both calls take an explicit message kind and payload.
type Broadcaster interface {
	NotifyUser(userID uuid.UUID, kind string, payload any) int
	NotifyAll(kind string, payload any) int
}

// --- Service Ports (Business Logic) ---

// Settlement is one atomic ledger unit: debit and credit land together or not at all.
type Settlement struct {
	UserID   uuid.UUID
	Currency domain.Currency
	Debit    int64
	Credit   int64
	Reason   domain.TxReason
	Round    *domain.GameRound // optional; persisted in the same transaction
}

// MutateFunc changes a locked user in place. Returning an error aborts the
// enclosing transaction with nothing applied.
type MutateFunc func(u *domain.User, now time.Time) error

// LedgerService owns every balance mutation.
type LedgerService interface {
	Balance(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	Debit(ctx context.Context, userID uuid.UUID, currency domain.Currency, amount int64, reason domain.TxReason) (domain.Balances, error)
	Credit(ctx context.Context, userID uuid.UUID, currency domain.Currency, amount int64, reason domain.TxReason) (domain.Balances, error)
	SettleRound(ctx context.Context, s Settlement) (domain.Balances, error)
	Mutate(ctx context.Context, userID uuid.UUID, reason domain.TxReason, fn MutateFunc) (*domain.User, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error)
}

// EconomyService covers exchange, daily bonus, house cut and the rate walk.
type EconomyService interface {
	CurrentRate() domain.ExchangeRate
	Exchange(ctx context.Context, userID uuid.UUID, from domain.Currency, amount int64) (*domain.ExchangeResult, error)
	ClaimDailyBonus(ctx context.Context, userID uuid.UUID) (domain.Balances, error)
	HouseCut(wager, payout int64) int64
	Tick(ctx context.Context) (domain.ExchangeRate, error)
}

// PlayRequest is a validated single-shot game request.
type PlayRequest struct {
	UserID   uuid.UUID
	Game     domain.Game
	Currency domain.Currency
	Bet      int64
	Choice   json.RawMessage
}

// PlayResult is the settled round and the balances it left behind.
type PlayResult struct {
	Round    *domain.GameRound
	Balances domain.Balances
	Event    string // active timed event, if any
}

// GameService plays single-shot games.
type GameService interface {
	Play(ctx context.Context, req PlayRequest) (*PlayResult, error)
	Stats(ctx context.Context) ([]GameStats, error)
}

// HandView is what a player may see of a blackjack hand.
type HandView struct {
	ID          uuid.UUID        `json:"hand_id"`
	State       string           `json:"state"`
	Currency    domain.Currency  `json:"currency"`
	Wager       int64            `json:"wager"`
	Doubled     bool             `json:"doubled"`
	Player      []string         `json:"player"`
	PlayerTotal int              `json:"player_total"`
	Dealer      []string         `json:"dealer"`
	DealerTotal int              `json:"dealer_total"`
	CanDouble   bool             `json:"can_double"`
	Outcome     string           `json:"outcome,omitempty"`
	Payout      int64            `json:"payout"`
	RoundID     *uuid.UUID       `json:"round_id,omitempty"`
	Balances    *domain.Balances `json:"balance,omitempty"`
}

// BlackjackService runs stateful blackjack hands.
type BlackjackService interface {
	Deal(ctx context.Context, userID uuid.UUID, currency domain.Currency, bet int64) (*HandView, error)
	Hit(ctx context.Context, userID, handID uuid.UUID) (*HandView, error)
	Stand(ctx context.Context, userID, handID uuid.UUID) (*HandView, error)
	Double(ctx context.Context, userID, handID uuid.UUID) (*HandView, error)
	Current(ctx context.Context, userID uuid.UUID) (*HandView, error)
}
