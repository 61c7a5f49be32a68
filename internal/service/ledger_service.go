package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casino-engine/internal/core/domain"
	"casino-engine/internal/core/ports"
	"casino-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Postgres SQLSTATEs worth one more attempt.
var retryableCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && retryableCodes[pgErr.Code]
}

// StartingBalances seeds a user the first time the ledger sees them.
type StartingBalances struct {
	Cash    int64
	Credits int64
}

// LedgerServiceImpl implements ports.LedgerService. Every mutation runs in
// one database transaction under the user's in-process mutex, the user's
// row lock and, when configured, a distributed user lock.
type LedgerServiceImpl struct {
	users      ports.UserRepository
	txns       ports.TransactionRepository
	rounds     ports.RoundRepository
	transactor ports.DBTransactor
	locker     ports.UserLocker // nil on single-instance deployments
	locks      *keyedMutex
	start      StartingBalances
	now        func() time.Time
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl. locker may be nil.
func NewLedgerService(
	users ports.UserRepository,
	txns ports.TransactionRepository,
	rounds ports.RoundRepository,
	transactor ports.DBTransactor,
	locker ports.UserLocker,
	start StartingBalances,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		users:      users,
		txns:       txns,
		rounds:     rounds,
		transactor: transactor,
		locker:     locker,
		locks:      newKeyedMutex(),
		start:      start,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

// Balance returns the user, creating it with starting balances on first sight.
func (s *LedgerServiceImpl) Balance(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("get user: %w", err))
	}
	if u != nil {
		return u, nil
	}
	return s.run(ctx, userID, "", nil, nil)
}

// Debit removes amount from one balance.
func (s *LedgerServiceImpl) Debit(ctx context.Context, userID uuid.UUID, currency domain.Currency, amount int64, reason domain.TxReason) (domain.Balances, error) {
	return s.SettleRound(ctx, ports.Settlement{UserID: userID, Currency: currency, Debit: amount, Reason: reason})
}

// Credit adds amount to one balance.
func (s *LedgerServiceImpl) Credit(ctx context.Context, userID uuid.UUID, currency domain.Currency, amount int64, reason domain.TxReason) (domain.Balances, error) {
	return s.SettleRound(ctx, ports.Settlement{UserID: userID, Currency: currency, Credit: amount, Reason: reason})
}

// SettleRound applies a debit and a credit, appends the journal entry and,
// when present, the round record. Either all of it commits or none of it.
func (s *LedgerServiceImpl) SettleRound(ctx context.Context, st ports.Settlement) (domain.Balances, error) {
	if !st.Currency.Valid() {
		return domain.Balances{}, apperror.ErrInvalidCurrency(string(st.Currency))
	}
	if st.Debit < 0 || st.Credit < 0 || (st.Debit == 0 && st.Credit == 0 && st.Round == nil) {
		return domain.Balances{}, apperror.ErrInvalidAmount()
	}
	reason := st.Reason
	if reason == "" {
		reason = domain.TxReasonRound
	}

	u, err := s.run(ctx, st.UserID, reason, func(u *domain.User, _ time.Time) error {
		if u.Balance(st.Currency) < st.Debit {
			return apperror.ErrInsufficientFunds()
		}
		u.Adjust(st.Currency, st.Credit-st.Debit)
		return nil
	}, st.Round)
	if err != nil {
		return domain.Balances{}, err
	}

	s.log.Info().
		Str("user_id", st.UserID.String()).
		Str("reason", string(reason)).
		Str("currency", string(st.Currency)).
		Int64("debit", st.Debit).
		Int64("credit", st.Credit).
		Msg("ledger settled")
	return u.Balances(), nil
}

// Mutate runs fn against the locked user inside one transaction.
func (s *LedgerServiceImpl) Mutate(ctx context.Context, userID uuid.UUID, reason domain.TxReason, fn ports.MutateFunc) (*domain.User, error) {
	if fn == nil {
		return nil, apperror.InternalError(errors.New("nil mutate func"))
	}
	return s.run(ctx, userID, reason, fn, nil)
}

// History returns the newest journal entries for the user.
func (s *LedgerServiceImpl) History(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	txns, err := s.txns.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("list transactions: %w", err))
	}
	return txns, nil
}

// run serializes on the user and retries a conflicting attempt once.
func (s *LedgerServiceImpl) run(ctx context.Context, userID uuid.UUID, reason domain.TxReason, fn ports.MutateFunc, round *domain.GameRound) (*domain.User, error) {
	release, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		u, err := s.apply(ctx, userID, reason, fn, round)
		if err == nil {
			return u, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
		s.log.Warn().Err(err).Str("user_id", userID.String()).Int("attempt", attempt).Msg("ledger conflict")
	}
	return nil, apperror.ErrConcurrencyConflict(lastErr)
}

func (s *LedgerServiceImpl) lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	unlock := s.locks.Lock(userID)
	if s.locker == nil {
		return unlock, nil
	}
	token, err := s.locker.Lock(ctx, userID)
	if err != nil {
		unlock()
		return nil, apperror.ErrLockTimeout(fmt.Errorf("distributed user lock: %w", err))
	}
	return func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), userID, token); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to release distributed user lock")
		}
		unlock()
	}, nil
}

// apply is one transactional attempt. Nothing is visible before Commit.
func (s *LedgerServiceImpl) apply(ctx context.Context, userID uuid.UUID, reason domain.TxReason, fn ports.MutateFunc, round *domain.GameRound) (*domain.User, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, persistence("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := s.now()
	u, err := s.users.GetForUpdate(ctx, dbTx, userID)
	if err != nil {
		return nil, persistence("lock user", err)
	}
	if u == nil {
		fresh := &domain.User{
			ID:        userID,
			Cash:      s.start.Cash,
			Credits:   s.start.Credits,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.users.Create(ctx, dbTx, fresh); err != nil {
			return nil, persistence("create user", err)
		}
		if u, err = s.users.GetForUpdate(ctx, dbTx, userID); err != nil {
			return nil, persistence("lock new user", err)
		}
		if u == nil {
			return nil, apperror.ErrPersistence(fmt.Errorf("user %s missing after create", userID))
		}
		s.log.Info().Str("user_id", userID.String()).Msg("user created")
	}

	before := u.Balances()
	if fn != nil {
		if err := fn(u, now); err != nil {
			return nil, err
		}
	}
	if u.Negative() {
		return nil, apperror.ErrInsufficientFunds()
	}
	u.UpdatedAt = now

	if err := s.users.Update(ctx, dbTx, u); err != nil {
		return nil, persistence("update user", err)
	}

	var roundID *uuid.UUID
	if round != nil {
		round.CashAfter = u.Cash
		round.CreditsAfter = u.Credits
		if err := s.rounds.Create(ctx, dbTx, round); err != nil {
			return nil, persistence("record round", err)
		}
		roundID = &round.ID
	}

	if after := u.Balances(); after != before || round != nil {
		txn := domain.NewTransaction(userID, before, after, reason, roundID, now)
		if err := s.txns.Create(ctx, dbTx, txn); err != nil {
			return nil, persistence("append transaction", err)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, persistence("commit tx", err)
	}
	return u, nil
}

func persistence(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.ErrLockTimeout(fmt.Errorf("%s: %w", op, err))
	}
	return apperror.ErrPersistence(fmt.Errorf("%s: %w", op, err))
}
