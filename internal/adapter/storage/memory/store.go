// Package memory is a process-local ledger backend for development and tests.
// It honours the same transactional contract as the postgres adapter: writes
// staged in a Tx become visible together at Commit and vanish on Rollback.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"casino-engine/internal/core/domain"
	"casino-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store holds committed state shared by the memory repositories.
type Store struct {
	mu     sync.RWMutex
	users  map[uuid.UUID]domain.User
	txs    []domain.Transaction
	rounds map[uuid.UUID]domain.GameRound

	rowMu sync.Mutex
	rows  map[uuid.UUID]chan struct{}
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:  make(map[uuid.UUID]domain.User),
		rounds: make(map[uuid.UUID]domain.GameRound),
		rows:   make(map[uuid.UUID]chan struct{}),
	}
}

func (s *Store) rowLock(id uuid.UUID) chan struct{} {
	s.rowMu.Lock()
	defer s.rowMu.Unlock()
	ch, ok := s.rows[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.rows[id] = ch
	}
	return ch
}

func (s *Store) lockRow(ctx context.Context, id uuid.UUID) error {
	select {
	case s.rowLock(id) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) unlockRow(id uuid.UUID) {
	<-s.rowLock(id)
}

// Tx stages writes until Commit. Only Commit and Rollback are meaningful;
// the embedded pgx.Tx is nil and the SQL surface is never called.
type Tx struct {
	pgx.Tx
	store  *Store
	users  map[uuid.UUID]domain.User
	txs    []domain.Transaction
	rounds []domain.GameRound
	held   map[uuid.UUID]bool
	closed bool
}

// Commit applies every staged write atomically and releases row locks.
func (t *Tx) Commit(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	defer t.release()

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range t.rounds {
		if _, dup := s.rounds[r.ID]; dup {
			return fmt.Errorf("round %s already recorded", r.ID)
		}
	}
	for id, u := range t.users {
		s.users[id] = u
	}
	for _, r := range t.rounds {
		s.rounds[r.ID] = r
	}
	s.txs = append(s.txs, t.txs...)
	return nil
}

// Rollback discards staged writes. It is safe to call after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.release()
	return nil
}

func (t *Tx) release() {
	t.closed = true
	for id := range t.held {
		t.store.unlockRow(id)
	}
	t.held = nil
	t.users, t.txs, t.rounds = nil, nil, nil
}

func asTx(tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, errors.New("memory store requires a memory transaction")
	}
	if t.closed {
		return nil, pgx.ErrTxClosed
	}
	return t, nil
}

// Transactor implements ports.DBTransactor.
type Transactor struct {
	store *Store
}

// NewTransactor creates a transactor over store.
func NewTransactor(store *Store) *Transactor {
	return &Transactor{store: store}
}

// Begin opens a staging transaction.
func (tr *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{
		store: tr.store,
		users: make(map[uuid.UUID]domain.User),
		held:  make(map[uuid.UUID]bool),
	}, nil
}

// --- Users ---

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	store *Store
}

func NewUserRepo(store *Store) *UserRepo {
	return &UserRepo{store: store}
}

// Create stages u unless the id already exists.
func (r *UserRepo) Create(ctx context.Context, tx pgx.Tx, u *domain.User) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if _, ok := t.users[u.ID]; ok {
		return nil
	}
	r.store.mu.RLock()
	_, exists := r.store.users[u.ID]
	r.store.mu.RUnlock()
	if !exists {
		t.users[u.ID] = *u
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// GetForUpdate takes the row lock for id and holds it until the tx ends.
// The lock is taken even when the user does not exist yet, which serializes
// concurrent first-sight creation.
func (r *UserRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if !t.held[id] {
		if err := r.store.lockRow(ctx, id); err != nil {
			return nil, fmt.Errorf("lock user %s: %w", id, err)
		}
		t.held[id] = true
	}
	if u, ok := t.users[id]; ok {
		return &u, nil
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepo) Update(ctx context.Context, tx pgx.Tx, u *domain.User) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if _, ok := t.users[u.ID]; !ok {
		r.store.mu.RLock()
		_, exists := r.store.users[u.ID]
		r.store.mu.RUnlock()
		if !exists {
			return fmt.Errorf("user not found: %s", u.ID)
		}
	}
	t.users[u.ID] = *u
	return nil
}

// --- Transactions ---

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	store *Store
}

func NewTransactionRepo(store *Store) *TransactionRepo {
	return &TransactionRepo{store: store}
}

func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	t.txs = append(t.txs, *txn)
	return nil
}

// ListByUser returns the newest entries first.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	result := []domain.Transaction{}
	for _, txn := range r.store.txs {
		if txn.UserID == userID {
			result = append(result, txn)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// --- Rounds ---

// RoundRepo implements ports.RoundRepository. Rounds are insert-only.
type RoundRepo struct {
	store *Store
}

func NewRoundRepo(store *Store) *RoundRepo {
	return &RoundRepo{store: store}
}

func (r *RoundRepo) Create(ctx context.Context, tx pgx.Tx, round *domain.GameRound) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	t.rounds = append(t.rounds, *round)
	return nil
}

func (r *RoundRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.GameRound, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	round, ok := r.store.rounds[id]
	if !ok {
		return nil, nil
	}
	return &round, nil
}

// HealthProbe reports the store unhealthy when its state lock cannot be
// taken for reading within the probe timeout.
func HealthProbe(s *Store) ports.Probe {
	return ports.NewProbe("memory", time.Second, func(ctx context.Context) error {
		free := make(chan struct{})
		go func() {
			s.mu.RLock()
			s.mu.RUnlock()
			close(free)
		}()
		select {
		case <-free:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("ledger state locked: %w", ctx.Err())
		}
	})
}
