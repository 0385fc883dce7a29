package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/daily-login-bot/internal/common"
	"serotonyl.ru/daily-login-bot/internal/features/claim"
	"serotonyl.ru/daily-login-bot/internal/features/leaderboard"
	"serotonyl.ru/daily-login-bot/internal/features/streak"
)

const addr = "0x00000000000000000000000000000000000000aa"

type fakeBoard struct {
	leaders   []leaderboard.LeaderRow
	lastLimit int
}

func (f *fakeBoard) TodaysClaimers() []leaderboard.ClaimerView {
	return []leaderboard.ClaimerView{{Address: addr, Timestamp: 1704186000, Streak: 3}}
}

func (f *fakeBoard) Leaders(limit int) []leaderboard.LeaderRow {
	f.lastLimit = limit
	if limit > 0 && len(f.leaders) > limit {
		return f.leaders[:limit]
	}
	return f.leaders
}

func (f *fakeBoard) Snapshot(_ context.Context, address string) leaderboard.View {
	return leaderboard.View{CurrentStreak: 3, BestStreak: 5, TodaysClaimers: f.TodaysClaimers(), AllTimeLeaders: f.leaders}
}

type fakeStreaks struct{}

func (fakeStreaks) LoadStreak(_ context.Context, address string) *streak.Record {
	if address == addr {
		return &streak.Record{CurrentStreak: 3, BestStreak: 5, LastLoginDate: "2024-01-02"}
	}
	return &streak.Record{}
}

func (fakeStreaks) Today() string { return "2024-01-02" }

type fakeClaims struct{ err error }

func (f fakeClaims) LastClaim(_ context.Context, address string) (*claim.LastClaimInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &claim.LastClaimInfo{Address: address, CanClaim: true}, nil
}

func newRouter(board *fakeBoard, claims fakeClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(NewHandler(board, fakeStreaks{}, claims), false)
}

func get(t *testing.T, r http.Handler, path string) (int, map[string]json.RawMessage) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealth(t *testing.T) {
	code, body := get(t, newRouter(&fakeBoard{}, fakeClaims{}), "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `"ok"`, string(body["status"]))
}

func TestToday(t *testing.T) {
	code, body := get(t, newRouter(&fakeBoard{}, fakeClaims{}), "/api/v1/today")
	require.Equal(t, http.StatusOK, code)

	var views []leaderboard.ClaimerView
	require.NoError(t, json.Unmarshal(body["data"], &views))
	require.Len(t, views, 1)
	assert.Equal(t, addr, views[0].Address)
	assert.Equal(t, 3, views[0].Streak)
}

func TestLeadersLimit(t *testing.T) {
	board := &fakeBoard{}
	for i := 1; i <= 30; i++ {
		board.leaders = append(board.leaders, leaderboard.LeaderRow{Rank: i, Address: fmt.Sprintf("0x%040x", i)})
	}
	r := newRouter(board, fakeClaims{})

	code, body := get(t, r, "/api/v1/leaders")
	require.Equal(t, http.StatusOK, code)
	var rows []leaderboard.LeaderRow
	require.NoError(t, json.Unmarshal(body["data"], &rows))
	assert.Len(t, rows, defaultLeadersLimit)

	_, _ = get(t, r, "/api/v1/leaders?limit=1000")
	assert.Equal(t, maxLeadersLimit, board.lastLimit)

	code, body = get(t, r, "/api/v1/leaders?limit=abc")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(body["error"]), "limit")
}

func TestInvalidAddress(t *testing.T) {
	r := newRouter(&fakeBoard{}, fakeClaims{})
	for _, path := range []string{
		"/api/v1/views/0x123",
		"/api/v1/streaks/not-an-address",
		"/api/v1/claims/00000000000000000000000000000000000000aa/last",
	} {
		code, body := get(t, r, path)
		assert.Equal(t, http.StatusBadRequest, code, path)
		assert.JSONEq(t, `"invalid address"`, string(body["error"]))
	}
}

func TestStreak(t *testing.T) {
	r := newRouter(&fakeBoard{}, fakeClaims{})

	code, body := get(t, r, "/api/v1/streaks/0x00000000000000000000000000000000000000AA")
	require.Equal(t, http.StatusOK, code)

	var resp StreakResponse
	require.NoError(t, json.Unmarshal(body["data"], &resp))
	assert.Equal(t, StreakResponse{
		Address:       addr,
		CurrentStreak: 3,
		BestStreak:    5,
		LastLoginDate: "2024-01-02",
		ClaimedToday:  true,
		Active:        true,
	}, resp)
}

func TestView(t *testing.T) {
	code, body := get(t, newRouter(&fakeBoard{}, fakeClaims{}), "/api/v1/views/"+addr)
	require.Equal(t, http.StatusOK, code)

	var view leaderboard.View
	require.NoError(t, json.Unmarshal(body["data"], &view))
	assert.Equal(t, 3, view.CurrentStreak)
	assert.Equal(t, 5, view.BestStreak)
	assert.Len(t, view.TodaysClaimers, 1)
}

func TestLastClaim(t *testing.T) {
	code, body := get(t, newRouter(&fakeBoard{}, fakeClaims{}), "/api/v1/claims/"+addr+"/last")
	require.Equal(t, http.StatusOK, code)

	var info claim.LastClaimInfo
	require.NoError(t, json.Unmarshal(body["data"], &info))
	assert.True(t, info.CanClaim)
	assert.True(t, info.LastClaimAt.Equal(time.Time{}))

	failing := fakeClaims{err: fmt.Errorf("%w: timeout", common.ErrChainRead)}
	code, _ = get(t, newRouter(&fakeBoard{}, failing), "/api/v1/claims/"+addr+"/last")
	assert.Equal(t, http.StatusBadGateway, code)
}
