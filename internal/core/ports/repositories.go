package ports

import (
	"context"

	"casino-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository defines persistence operations for player balances.
// Lookups return (nil, nil) when the user does not exist.
type UserRepository interface {
	// Create inserts u, ignoring a concurrent insert of the same id.
	Create(ctx context.Context, tx pgx.Tx, u *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// GetForUpdate locks the user row for the rest of tx.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error)
	Update(ctx context.Context, tx pgx.Tx, u *domain.User) error
}

// TransactionRepository is the append-only ledger journal.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error)
}

// RoundRepository is the append-only audit trail of resolved rounds.
// It exposes no update.
type RoundRepository interface {
	Create(ctx context.Context, tx pgx.Tx, r *domain.GameRound) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.GameRound, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
