package postgres

import (
	"context"
	"errors"
	"fmt"

	"casino-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, cash, credits, last_daily_bonus, last_exchange, exchange_pressure, created_at, updated_at`

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	pool Pool
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(pool Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Create inserts a user. A concurrent insert of the same id is not an error;
// the caller re-reads the row under lock.
func (r *UserRepo) Create(ctx context.Context, tx pgx.Tx, u *domain.User) error {
	query := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	_, err := tx.Exec(ctx, query,
		u.ID, u.Cash, u.Credits, u.LastDailyBonus, u.LastExchange,
		u.ExchangePressure, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID fetches a user without locking.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetForUpdate fetches a user with pessimistic locking.
// This MUST be called within a transaction.
func (r *UserRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	u, err := scanUser(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get user for update: %w", err)
	}
	return u, nil
}

// Update writes balances and economy state within a transaction.
func (r *UserRepo) Update(ctx context.Context, tx pgx.Tx, u *domain.User) error {
	query := `UPDATE users SET cash = $1, credits = $2, last_daily_bonus = $3, last_exchange = $4,
		exchange_pressure = $5, updated_at = $6 WHERE id = $7`

	tag, err := tx.Exec(ctx, query,
		u.Cash, u.Credits, u.LastDailyBonus, u.LastExchange,
		u.ExchangePressure, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", u.ID)
	}
	return nil
}

// scanUser returns nil, nil when the row does not exist.
func scanUser(row pgx.Row) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(
		&u.ID, &u.Cash, &u.Credits, &u.LastDailyBonus, &u.LastExchange,
		&u.ExchangePressure, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}
