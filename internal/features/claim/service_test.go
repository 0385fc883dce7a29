package claim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/daily-login-bot/internal/chain"
	"serotonyl.ru/daily-login-bot/internal/common"
	"serotonyl.ru/daily-login-bot/internal/features/leaderboard"
	"serotonyl.ru/daily-login-bot/internal/features/streak"
	"serotonyl.ru/daily-login-bot/internal/storage"
)

// fakeChain — контракт в памяти: помнит время последнего клейма.
type fakeChain struct {
	mu        sync.Mutex
	now       func() time.Time
	signers   map[string]bool
	last      map[string]int64
	readErr   error
	submitErr error
	submitted int
	block     chan struct{}
}

func (f *fakeChain) CanSign(address string) bool {
	return f.signers[address]
}

func (f *fakeChain) GetLastClaimTimestamp(_ context.Context, address string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.last[address], nil
}

func (f *fakeChain) SubmitDailyClaim(_ context.Context, address string) (string, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted++
	f.last[address] = f.now().Unix()
	return "0xhash", nil
}

func (f *fakeChain) QueryLoginEvents(context.Context, uint64) ([]chain.LoginEvent, error) {
	return nil, nil
}

type fixture struct {
	svc     *Service
	chain   *fakeChain
	streaks *streak.Service
	board   *leaderboard.Service
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithKV(t, storage.NewMemory())
}

func newFixtureWithKV(t *testing.T, kv storage.KV) *fixture {
	t.Helper()
	loc := common.LoadLocation("Europe/Moscow")
	f := &fixture{now: time.Date(2024, 1, 1, 10, 0, 0, 0, loc)}
	cal := common.NewCalendar(loc, func() time.Time { return f.now })

	f.chain = &fakeChain{
		now:     func() time.Time { return f.now },
		signers: map[string]bool{"0xaaa": true},
		last:    map[string]int64{},
	}

	f.streaks = streak.NewService(streak.NewRepository(kv), cal)
	f.board = leaderboard.NewService(leaderboard.NewRepository(kv), f.streaks, f.chain, cal, leaderboard.Options{})
	f.svc = NewService(f.chain, f.streaks, f.board, cal)
	return f
}

// Сценарий: первый клейм, клейм на следующий день, пропуск двух дней.
func TestClaimScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.Claim(ctx, "0xAAA")
	require.NoError(t, err)
	assert.Equal(t, "0xhash", res.TxHash)
	assert.Equal(t, 1, res.CurrentStreak)
	assert.Equal(t, 1, res.BestStreak)

	f.now = f.now.Add(25 * time.Hour)
	res, err = f.svc.Claim(ctx, "0xaaa")
	require.NoError(t, err)
	assert.Equal(t, 2, res.CurrentStreak)

	f.now = f.now.Add(3 * 24 * time.Hour)
	res, err = f.svc.Claim(ctx, "0xaaa")
	require.NoError(t, err)
	assert.Equal(t, 1, res.CurrentStreak)
	assert.Equal(t, 2, res.BestStreak)

	// клейм сразу виден в рейтингах
	today := f.board.TodaysClaimers()
	require.Len(t, today, 1)
	assert.Equal(t, "0xaaa", today[0].Address)

	leaders := f.board.Leaders(0)
	require.Len(t, leaders, 1)
	assert.Equal(t, 3, leaders[0].TotalClaims)
}

func TestClaimBeforeIntervalDoesNotSpendGas(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Claim(ctx, "0xaaa")
	require.NoError(t, err)

	f.now = f.now.Add(23 * time.Hour)
	_, err = f.svc.Claim(ctx, "0xaaa")
	ce, ok := common.AsClaimError(err)
	require.True(t, ok)
	assert.Equal(t, common.ClaimAlreadyClaimedToday, ce.Kind)
	assert.Equal(t, 1, f.chain.submitted)
}

func TestClaimWithoutSigner(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Claim(context.Background(), "0xbbb")
	assert.ErrorIs(t, err, common.ErrWalletUnavailable)
	assert.False(t, f.svc.CanClaim("0xbbb"))
	assert.True(t, f.svc.CanClaim("0xAAA"))
}

func TestClaimFailureKeepsStreak(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.chain.submitErr = errors.New("insufficient funds for gas * price + value")

	_, err := f.svc.Claim(ctx, "0xaaa")
	ce, ok := common.AsClaimError(err)
	require.True(t, ok)
	assert.Equal(t, common.ClaimInsufficientFunds, ce.Kind)

	assert.True(t, f.streaks.LoadStreak(ctx, "0xaaa").IsZero())
	assert.Empty(t, f.board.TodaysClaimers())
}

func TestClaimReadFailureLetsContractDecide(t *testing.T) {
	f := newFixture(t)
	f.chain.readErr = errors.New("rpc timeout")

	res, err := f.svc.Claim(context.Background(), "0xaaa")
	require.NoError(t, err)
	assert.Equal(t, 1, res.CurrentStreak)
}

func TestClaimInProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.chain.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Claim(ctx, "0xaaa")
		done <- err
	}()

	require.Eventually(t, func() bool {
		f.svc.mu.Lock()
		defer f.svc.mu.Unlock()
		_, busy := f.svc.inflight["0xaaa"]
		return busy
	}, time.Second, time.Millisecond)

	_, err := f.svc.Claim(ctx, "0xaaa")
	assert.ErrorIs(t, err, ErrClaimInProgress)

	close(f.chain.block)
	require.NoError(t, <-done)
}

// ctxKV — хранилище, которое, как pgx и go-redis, отказывает на отменённом контексте.
type ctxKV struct {
	storage.KV
}

func (k ctxKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return k.KV.Get(ctx, key)
}

func (k ctxKV) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return k.KV.Put(ctx, key, value)
}

func (k ctxKV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return k.KV.Delete(ctx, key)
}

func (k ctxKV) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return k.KV.Scan(ctx, prefix)
}

// Остановка во время ожидания квитанции не должна терять стрик уже прошедшей транзакции.
func TestClaimPersistsAfterCancelDuringSubmit(t *testing.T) {
	f := newFixtureWithKV(t, ctxKV{KV: storage.NewMemory()})
	f.chain.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := f.svc.Claim(ctx, "0xaaa")
		done <- outcome{res, err}
	}()

	require.Eventually(t, func() bool {
		f.svc.mu.Lock()
		defer f.svc.mu.Unlock()
		_, busy := f.svc.inflight["0xaaa"]
		return busy
	}, time.Second, time.Millisecond)

	cancel()
	close(f.chain.block)

	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, 1, out.res.CurrentStreak)
	assert.Equal(t, 1, f.chain.submitted)

	rec := f.streaks.LoadStreak(context.Background(), "0xaaa")
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 1, rec.BestStreak)
	assert.Equal(t, "2024-01-01", rec.LastLoginDate)

	leaders := f.board.Leaders(0)
	require.Len(t, leaders, 1)
	assert.Equal(t, 1, leaders[0].TotalClaims)
}

func TestLastClaim(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	info, err := f.svc.LastClaim(ctx, "0xaaa")
	require.NoError(t, err)
	assert.True(t, info.CanClaim)
	assert.True(t, info.LastClaimAt.IsZero())
	assert.Contains(t, FormatLastClaim(info), "ни разу")

	_, err = f.svc.Claim(ctx, "0xaaa")
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Hour)
	info, err = f.svc.LastClaim(ctx, "0xaaa")
	require.NoError(t, err)
	assert.False(t, info.CanClaim)
	assert.Equal(t, 22*time.Hour, info.Wait)
	assert.Equal(t, "2 часа назад", info.TimeAgo)
	assert.Contains(t, FormatLastClaim(info), "22 ч 00 мин")
}

func TestClaimErrorMessages(t *testing.T) {
	kinds := []common.ClaimErrorKind{
		common.ClaimAlreadyClaimedToday,
		common.ClaimUserRejected,
		common.ClaimInsufficientFunds,
		common.ClaimNetworkMismatch,
		common.ClaimUnknown,
	}
	seen := make(map[string]bool)
	for _, k := range kinds {
		msg := claimErrorMessage(common.NewClaimError(k, nil))
		assert.False(t, seen[msg], "message for %s must be distinct", k)
		seen[msg] = true
	}
	assert.Contains(t, claimErrorMessage(common.ErrWalletUnavailable), "просмотр")
}
