package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"casino-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store  *Store
	tr     *Transactor
	users  *UserRepo
	txns   *TransactionRepo
	rounds *RoundRepo
}

func newFixture() fixture {
	s := NewStore()
	return fixture{
		store:  s,
		tr:     NewTransactor(s),
		users:  NewUserRepo(s),
		txns:   NewTransactionRepo(s),
		rounds: NewRoundRepo(s),
	}
}

func seedUser(t *testing.T, f fixture, cash int64) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	tx, err := f.tr.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, f.users.Create(ctx, tx, &domain.User{ID: id, Cash: cash}))
	require.NoError(t, tx.Commit(ctx))
	return id
}

func TestTx_CommitAppliesAllWrites(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id := seedUser(t, f, 1000)

	tx, err := f.tr.Begin(ctx)
	require.NoError(t, err)
	u, err := f.users.GetForUpdate(ctx, tx, id)
	require.NoError(t, err)
	require.NotNil(t, u)

	before := u.Balances()
	u.Cash -= 100
	round := &domain.GameRound{ID: uuid.New(), UserID: id, Game: domain.GameSlots, Wager: 100}
	require.NoError(t, f.users.Update(ctx, tx, u))
	require.NoError(t, f.rounds.Create(ctx, tx, round))
	require.NoError(t, f.txns.Create(ctx, tx, domain.NewTransaction(id, before, u.Balances(), domain.TxReasonRound, &round.ID, time.Now())))

	// nothing visible before commit
	got, _ := f.users.GetByID(ctx, id)
	assert.Equal(t, int64(1000), got.Cash)
	r, _ := f.rounds.GetByID(ctx, round.ID)
	assert.Nil(t, r)

	require.NoError(t, tx.Commit(ctx))

	got, _ = f.users.GetByID(ctx, id)
	assert.Equal(t, int64(900), got.Cash)
	r, _ = f.rounds.GetByID(ctx, round.ID)
	require.NotNil(t, r)
	hist, err := f.txns.ListByUser(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, int64(-100), hist[0].CashDelta)
}

func TestTx_RollbackDiscards(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id := seedUser(t, f, 1000)

	tx, err := f.tr.Begin(ctx)
	require.NoError(t, err)
	u, err := f.users.GetForUpdate(ctx, tx, id)
	require.NoError(t, err)
	u.Cash = 0
	require.NoError(t, f.users.Update(ctx, tx, u))
	require.NoError(t, tx.Rollback(ctx))

	got, _ := f.users.GetByID(ctx, id)
	assert.Equal(t, int64(1000), got.Cash)

	// the row lock was released
	tx2, _ := f.tr.Begin(ctx)
	lockCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err = f.users.GetForUpdate(lockCtx, tx2, id)
	require.NoError(t, err)
	require.NoError(t, tx2.Rollback(ctx))
}

func TestTx_RollbackAfterCommitIsClosed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tx, _ := f.tr.Begin(ctx)
	require.NoError(t, tx.Commit(ctx))
	assert.ErrorIs(t, tx.Rollback(ctx), pgx.ErrTxClosed)
	assert.ErrorIs(t, f.users.Create(ctx, tx, &domain.User{ID: uuid.New()}), pgx.ErrTxClosed)
}

func TestUserRepo_GetMissing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	u, err := f.users.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, u)

	tx, _ := f.tr.Begin(ctx)
	defer tx.Rollback(ctx) //nolint:errcheck
	u, err = f.users.GetForUpdate(ctx, tx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestUserRepo_CreateIgnoresExisting(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id := seedUser(t, f, 500)

	tx, _ := f.tr.Begin(ctx)
	require.NoError(t, f.users.Create(ctx, tx, &domain.User{ID: id, Cash: 1}))
	require.NoError(t, tx.Commit(ctx))

	got, _ := f.users.GetByID(ctx, id)
	assert.Equal(t, int64(500), got.Cash)
}

func TestUserRepo_UpdateMissing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tx, _ := f.tr.Begin(ctx)
	defer tx.Rollback(ctx) //nolint:errcheck
	assert.Error(t, f.users.Update(ctx, tx, &domain.User{ID: uuid.New()}))
}

func TestUserRepo_RejectsForeignTx(t *testing.T) {
	f := newFixture()
	_, err := f.users.GetForUpdate(context.Background(), nil, uuid.New())
	assert.Error(t, err)
}

func TestGetForUpdate_SerializesWriters(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id := seedUser(t, f, 0)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := f.tr.Begin(ctx)
			if !assert.NoError(t, err) {
				return
			}
			u, err := f.users.GetForUpdate(ctx, tx, id)
			if !assert.NoError(t, err) {
				return
			}
			u.Cash += 10
			assert.NoError(t, f.users.Update(ctx, tx, u))
			assert.NoError(t, tx.Commit(ctx))
		}()
	}
	wg.Wait()

	got, _ := f.users.GetByID(ctx, id)
	assert.Equal(t, int64(workers*10), got.Cash)
}

func TestGetForUpdate_HonoursContext(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id := seedUser(t, f, 0)

	holder, _ := f.tr.Begin(ctx)
	_, err := f.users.GetForUpdate(ctx, holder, id)
	require.NoError(t, err)
	defer holder.Rollback(ctx) //nolint:errcheck

	waiter, _ := f.tr.Begin(ctx)
	defer waiter.Rollback(ctx) //nolint:errcheck
	short, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = f.users.GetForUpdate(short, waiter, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRoundRepo_DuplicateRejectedAtCommit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	round := &domain.GameRound{ID: uuid.New()}

	tx, _ := f.tr.Begin(ctx)
	require.NoError(t, f.rounds.Create(ctx, tx, round))
	require.NoError(t, tx.Commit(ctx))

	tx, _ = f.tr.Begin(ctx)
	require.NoError(t, f.rounds.Create(ctx, tx, round))
	assert.Error(t, tx.Commit(ctx))
}

func TestTransactionRepo_ListNewestFirstWithLimit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id := seedUser(t, f, 0)
	base := time.Now()

	tx, _ := f.tr.Begin(ctx)
	for i := 0; i < 5; i++ {
		txn := domain.NewTransaction(id, domain.Balances{}, domain.Balances{Cash: int64(i)}, domain.TxReasonPayout, nil, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, f.txns.Create(ctx, tx, txn))
	}
	require.NoError(t, f.txns.Create(ctx, tx, domain.NewTransaction(uuid.New(), domain.Balances{}, domain.Balances{}, domain.TxReasonPayout, nil, base)))
	require.NoError(t, tx.Commit(ctx))

	hist, err := f.txns.ListByUser(ctx, id, 3)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, int64(4), hist[0].CashAfter)
	assert.Equal(t, int64(2), hist[2].CashAfter)

	empty, err := f.txns.ListByUser(ctx, uuid.New(), 10)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestHealthProbe(t *testing.T) {
	s := NewStore()
	probe := HealthProbe(s)
	assert.Equal(t, "memory", probe.Name())
	assert.NoError(t, probe.Ping(context.Background()))

	s.mu.Lock()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := probe.Ping(ctx)
	s.mu.Unlock()

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorContains(t, err, "ledger state locked")
}
