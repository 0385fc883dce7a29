package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/daily-login-bot/internal/chain"
	"serotonyl.ru/daily-login-bot/internal/common"
	"serotonyl.ru/daily-login-bot/internal/features/leaderboard"
)

type noEvents struct{}

func (noEvents) QueryLoginEvents(context.Context, uint64) ([]chain.LoginEvent, error) {
	return nil, nil
}

func newHandler(t *testing.T, f *fixture) (*Handler, *leaderboard.Service, *recorder) {
	t.Helper()
	cal := common.NewCalendar(common.LoadLocation("Europe/Moscow"), func() time.Time { return f.now })
	board := leaderboard.NewService(leaderboard.NewRepository(f.kv), f.streaks, noEvents{}, cal,
		leaderboard.Options{TopN: 100, TodayLookback: 10_000, SyncLookback: 100_000})
	rec := &recorder{}
	return NewHandler(f.svc, board, rec), board, rec
}

func TestHandleConnect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2024-01-05 12:00")
	h, _, rec := newHandler(t, f)

	h.HandleConnect(ctx, 10, 1, "alice", "Alice", nil)
	h.HandleConnect(ctx, 10, 1, "alice", "Alice", []string{"0x123"})
	h.HandleConnect(ctx, 10, 1, "alice", "Alice", []string{addrA})

	require.Len(t, rec.sent, 3)
	assert.Contains(t, rec.sent[0].text, "Формат: /connect")
	assert.Contains(t, rec.sent[1].text, "Некорректный адрес")
	assert.Contains(t, rec.sent[2].text, "подключён")
	assert.Contains(t, rec.sent[2].text, "Клеймов ещё не было")
	assert.Equal(t, int64(10), rec.sent[2].chatID)
}

func TestHandleDisconnectAndMe(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2024-01-05 12:00")
	h, board, rec := newHandler(t, f)

	h.HandleMe(ctx, 10, 1)
	h.HandleDisconnect(ctx, 10, 1)
	require.Len(t, rec.sent, 2)
	assert.Contains(t, rec.sent[0].text, "Кошелёк не подключён")
	assert.Contains(t, rec.sent[1].text, "и так не подключён")

	_, err := f.svc.Connect(ctx, 1, "alice", "Alice", addrA)
	require.NoError(t, err)
	_, err = f.streaks.UpdateStreak(ctx, addrA, "")
	require.NoError(t, err)
	require.NoError(t, board.AddLocalClaim(ctx, addrA, leaderboard.ClaimInfo{Timestamp: f.now.Add(-2 * time.Minute).Unix()}))

	h.HandleMe(ctx, 10, 1)
	require.Len(t, rec.sent, 3)
	me := rec.sent[2].text
	assert.Contains(t, me, "🔥 Серия: 1 день")
	assert.Contains(t, me, "Место в рейтинге: 1")
	assert.Contains(t, me, "Сегодня клейм был 2 минуты назад")

	h.HandleDisconnect(ctx, 10, 1)
	require.Len(t, rec.sent, 4)
	assert.Contains(t, rec.sent[3].text, "Кошелёк отключён")
}

func TestFormatMeWithoutClaimToday(t *testing.T) {
	text := FormatMe(addrB, leaderboard.View{CurrentStreak: 0, BestStreak: 4, Stale: true})
	assert.Contains(t, text, "🏅 Рекорд: 4 дня")
	assert.Contains(t, text, "Сегодня клейма ещё не было")
	assert.NotContains(t, text, "Место в рейтинге")
	assert.Contains(t, text, "неактуальны")
}
