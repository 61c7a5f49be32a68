package postgres

import (
	"context"
	"errors"
	"fmt"

	"casino-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const roundColumns = `id, user_id, game, currency, wager, choice, draws, outcome, is_win, multiplier,
	payout, house_cut, detail, cash_after, credits_after, signature, created_at`

// RoundRepo implements ports.RoundRepository. Rounds are insert-only.
type RoundRepo struct {
	pool Pool
}

// NewRoundRepo creates a new RoundRepo.
func NewRoundRepo(pool Pool) *RoundRepo {
	return &RoundRepo{pool: pool}
}

// Create records a resolved round within a database transaction.
func (r *RoundRepo) Create(ctx context.Context, tx pgx.Tx, gr *domain.GameRound) error {
	query := `INSERT INTO game_rounds (` + roundColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := tx.Exec(ctx, query,
		gr.ID, gr.UserID, gr.Game, gr.Currency, gr.Wager, gr.Choice, gr.Draws,
		gr.Outcome, gr.IsWin, gr.Multiplier, gr.Payout, gr.HouseCut, gr.Detail,
		gr.CashAfter, gr.CreditsAfter, gr.Signature, gr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert game round: %w", err)
	}
	return nil
}

// GetByID fetches a round for audit or replay. Returns nil, nil if absent.
func (r *RoundRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.GameRound, error) {
	query := `SELECT ` + roundColumns + ` FROM game_rounds WHERE id = $1`

	gr := &domain.GameRound{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&gr.ID, &gr.UserID, &gr.Game, &gr.Currency, &gr.Wager, &gr.Choice, &gr.Draws,
		&gr.Outcome, &gr.IsWin, &gr.Multiplier, &gr.Payout, &gr.HouseCut, &gr.Detail,
		&gr.CashAfter, &gr.CreditsAfter, &gr.Signature, &gr.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get game round: %w", err)
	}
	return gr, nil
}
