package postgres

import (
	"context"
	"fmt"

	"casino-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, user_id, cash_delta, credits_delta, cash_after, credits_after, reason, round_id, created_at`

// TransactionRepo is the append-only ledger table.
type TransactionRepo struct {
	pool Pool
}

func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create appends t inside tx, alongside the balance update it records.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.UserID, t.CashDelta, t.CreditsDelta, t.CashAfter, t.CreditsAfter, t.Reason, t.RoundID, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appending %s entry for %s: %w", t.Reason, t.UserID, err)
	}
	return nil
}

// ListByUser returns up to limit entries, newest first.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing ledger for %s: %w", userID, err)
	}

	txns, err := pgx.CollectRows(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("reading ledger for %s: %w", userID, err)
	}
	return txns, nil
}

func scanTransaction(row pgx.CollectableRow) (domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.CashDelta, &t.CreditsDelta, &t.CashAfter, &t.CreditsAfter,
		&t.Reason, &t.RoundID, &t.CreatedAt)
	return t, err
}
