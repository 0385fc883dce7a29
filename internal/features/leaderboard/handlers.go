// Package leaderboard — handlers.go обрабатывает команды /today и /top.
package leaderboard

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"serotonyl.ru/daily-login-bot/internal/common"
)

// maxTopInChat — больше строк в одно сообщение не выводим.
const maxTopInChat = 50

// Handler обрабатывает команды рейтингов.
type Handler struct {
	service *Service
	sender  common.Sender
}

// NewHandler создаёт новый обработчик команд рейтингов.
func NewHandler(service *Service, sender common.Sender) *Handler {
	return &Handler{service: service, sender: sender}
}

// HandleToday показывает, кто сегодня уже заклеймил.
//
// Формат ответа:
//
//	☀️ Сегодня заклеймили (3):
//	1. 0x1234...abcd — 🔥 5, 2 минуты назад
func (h *Handler) HandleToday(ctx context.Context, chatID int64) {
	h.sender.Send(ctx, chatID, FormatToday(h.service.Snapshot(ctx, "")))
}

// HandleTop показывает общий рейтинг. Необязательный аргумент — число строк.
func (h *Handler) HandleTop(ctx context.Context, chatID int64, args []string) {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			h.sender.Send(ctx, chatID, "❌ Формат: /top [количество]")
			return
		}
		limit = n
	}
	if limit > maxTopInChat {
		limit = maxTopInChat
	}

	view := h.service.Snapshot(ctx, "")
	if len(view.AllTimeLeaders) > limit {
		view.AllTimeLeaders = view.AllTimeLeaders[:limit]
	}
	h.sender.Send(ctx, chatID, FormatLeaders(view))
}

// FormatToday собирает текст списка «сегодня».
func FormatToday(view View) string {
	var sb strings.Builder
	if len(view.TodaysClaimers) == 0 {
		sb.WriteString("☀️ Сегодня ещё никто не клеймил. Будь первым: /claim")
	} else {
		fmt.Fprintf(&sb, "☀️ Сегодня заклеймили (%d):\n\n", len(view.TodaysClaimers))
		for i, v := range view.TodaysClaimers {
			fmt.Fprintf(&sb, "%d. %s — 🔥 %d, %s\n", i+1, common.ShortAddress(v.Address), v.Streak, v.TimeAgo)
		}
	}
	if view.Stale {
		sb.WriteString("\n\n⚠️ Данные могут быть неактуальны: сеть недоступна")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatLeaders собирает текст общего рейтинга.
func FormatLeaders(view View) string {
	var sb strings.Builder
	if len(view.AllTimeLeaders) == 0 {
		sb.WriteString("🏆 Рейтинг пока пуст")
	} else {
		sb.WriteString("🏆 Лучшие серии:\n\n")
		for _, row := range view.AllTimeLeaders {
			status := "💤"
			if row.IsActive {
				status = "🔥"
			}
			fmt.Fprintf(&sb, "%d. %s %s рекорд %d, сейчас %d, %d %s\n",
				row.Rank, status, common.ShortAddress(row.Address),
				row.BestStreak, row.CurrentStreak,
				row.TotalClaims, common.PluralizeClaims(row.TotalClaims),
			)
		}
	}
	if view.Stale {
		sb.WriteString("\n\n⚠️ Данные могут быть неактуальны: сеть недоступна")
	}
	return strings.TrimRight(sb.String(), "\n")
}
