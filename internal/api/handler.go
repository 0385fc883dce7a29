// Package api — HTTP-представления только для чтения: список «сегодня»,
// общий рейтинг, стрики и сводка по адресу.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/daily-login-bot/internal/common"
	"serotonyl.ru/daily-login-bot/internal/features/claim"
	"serotonyl.ru/daily-login-bot/internal/features/leaderboard"
	"serotonyl.ru/daily-login-bot/internal/features/streak"
)

const (
	defaultLeadersLimit = 10
	maxLeadersLimit     = 100
)

// Board — чтение представлений агрегатора.
type Board interface {
	TodaysClaimers() []leaderboard.ClaimerView
	Leaders(limit int) []leaderboard.LeaderRow
	Snapshot(ctx context.Context, address string) leaderboard.View
}

// Streaks — чтение стриков.
type Streaks interface {
	LoadStreak(ctx context.Context, address string) *streak.Record
	Today() string
}

// Claims — данные о последнем клейме с контракта.
type Claims interface {
	LastClaim(ctx context.Context, address string) (*claim.LastClaimInfo, error)
}

type Handler struct {
	board   Board
	streaks Streaks
	claims  Claims
}

func NewHandler(board Board, streaks Streaks, claims Claims) *Handler {
	return &Handler{board: board, streaks: streaks, claims: claims}
}

// StreakResponse — стрик адреса с производными флагами.
type StreakResponse struct {
	Address       string `json:"address"`
	CurrentStreak int    `json:"currentStreak"`
	BestStreak    int    `json:"bestStreak"`
	LastLoginDate string `json:"lastLoginDate"`
	ClaimedToday  bool   `json:"claimedToday"`
	Active        bool   `json:"active"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Today(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.board.TodaysClaimers()})
}

func (h *Handler) Leaders(c *gin.Context) {
	limit := defaultLeadersLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxLeadersLimit)
	}
	c.JSON(http.StatusOK, gin.H{"data": h.board.Leaders(limit)})
}

func (h *Handler) View(c *gin.Context) {
	address, ok := parseAddress(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.board.Snapshot(c.Request.Context(), address)})
}

func (h *Handler) Streak(c *gin.Context) {
	address, ok := parseAddress(c)
	if !ok {
		return
	}

	rec := h.streaks.LoadStreak(c.Request.Context(), address)
	today := h.streaks.Today()
	c.JSON(http.StatusOK, gin.H{"data": StreakResponse{
		Address:       address,
		CurrentStreak: rec.CurrentStreak,
		BestStreak:    rec.BestStreak,
		LastLoginDate: rec.LastLoginDate,
		ClaimedToday:  streak.HasLoggedInToday(rec.LastLoginDate, today),
		Active:        rec.CurrentStreak > 0 && streak.IsStreakValid(rec.LastLoginDate, today),
	}})
}

func (h *Handler) LastClaim(c *gin.Context) {
	address, ok := parseAddress(c)
	if !ok {
		return
	}

	info, err := h.claims.LastClaim(c.Request.Context(), address)
	if err != nil {
		log.WithError(err).WithField("address", address).Warn("Последний клейм не прочитан")
		status := http.StatusInternalServerError
		if errors.Is(err, common.ErrChainRead) {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": "chain unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": info})
}

func parseAddress(c *gin.Context) (string, bool) {
	address, err := common.ParseAddress(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return "", false
	}
	return address, true
}
