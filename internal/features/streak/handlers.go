// Package streak — handlers.go обрабатывает команду /streak.
// Показывает текущую серию, рекорд и статус клейма за сегодня.
package streak

import (
	"context"
	"fmt"
	"strings"

	"serotonyl.ru/daily-login-bot/internal/common"
)

// Handler обрабатывает команды стрик-системы.
type Handler struct {
	service *Service
	sender  common.Sender
}

// NewHandler создаёт новый обработчик стрик-команд.
func NewHandler(service *Service, sender common.Sender) *Handler {
	return &Handler{service: service, sender: sender}
}

// HandleStreak показывает стрик адреса. Адрес уже разобран роутером
// (аргумент команды или подключённый кошелёк).
//
// Формат ответа:
//
//	🔥 Стрик 0x1234...abcd
//	Текущая серия: 8 дней
//	Лучшая серия: 12 дней
//	✅ Сегодня клейм засчитан
func (h *Handler) HandleStreak(ctx context.Context, chatID int64, address string) {
	rec := h.service.LoadStreak(ctx, address)
	h.sender.Send(ctx, chatID, FormatStreak(address, rec, h.service.Today()))
}

// FormatStreak собирает текст ответа /streak.
func FormatStreak(address string, rec *Record, today string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔥 Стрик %s\n\n", common.ShortAddress(address))

	if rec.IsZero() {
		sb.WriteString("Клеймов ещё не было. Начни серию командой /claim")
		return sb.String()
	}

	fmt.Fprintf(&sb, "Текущая серия: %d %s\n", rec.CurrentStreak, common.PluralizeDays(rec.CurrentStreak))
	fmt.Fprintf(&sb, "Лучшая серия: %d %s\n\n", rec.BestStreak, common.PluralizeDays(rec.BestStreak))

	switch {
	case HasLoggedInToday(rec.LastLoginDate, today):
		sb.WriteString("✅ Сегодня клейм засчитан")
	case rec.CurrentStreak > 0 && IsStreakValid(rec.LastLoginDate, today):
		sb.WriteString("⏳ Сегодня клейма ещё не было, серия сгорит в полночь")
	default:
		fmt.Fprintf(&sb, "💤 Серия прервана (последний клейм %s)", rec.LastLoginDate)
	}
	return sb.String()
}
