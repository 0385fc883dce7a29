// Package session — handlers.go обрабатывает команды /connect, /disconnect и /me.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/daily-login-bot/internal/common"
	"serotonyl.ru/daily-login-bot/internal/features/leaderboard"
)

// Handler обрабатывает команды сессий.
type Handler struct {
	service *Service
	board   *leaderboard.Service
	sender  common.Sender
}

// NewHandler создаёт обработчик команд сессий.
func NewHandler(service *Service, board *leaderboard.Service, sender common.Sender) *Handler {
	return &Handler{service: service, board: board, sender: sender}
}

// HandleConnect подключает кошелёк: /connect 0x...
func (h *Handler) HandleConnect(ctx context.Context, chatID, userID int64, username, firstName string, args []string) {
	if len(args) == 0 {
		h.sender.Send(ctx, chatID, "❌ Формат: /connect 0x...")
		return
	}

	rec, err := h.service.Connect(ctx, userID, username, firstName, args[0])
	if err != nil {
		if errors.Is(err, common.ErrInvalidAddress) {
			h.sender.Send(ctx, chatID, "❌ Некорректный адрес. Нужен адрес вида 0x и 40 hex-символов")
			return
		}
		log.WithError(err).WithField("user_id", userID).Error("Ошибка подключения кошелька")
		h.sender.Send(ctx, chatID, "❌ Не удалось подключить кошелёк, попробуй позже")
		return
	}

	address, _ := common.ParseAddress(args[0])
	text := fmt.Sprintf("🔗 Кошелёк %s подключён\n\n", common.ShortAddress(address))
	if rec.IsZero() {
		text += "Клеймов ещё не было. Начни серию: /claim"
	} else {
		text += fmt.Sprintf("🔥 Серия: %d %s, рекорд: %d %s",
			rec.CurrentStreak, common.PluralizeDays(rec.CurrentStreak),
			rec.BestStreak, common.PluralizeDays(rec.BestStreak))
	}
	h.sender.Send(ctx, chatID, text)
}

// HandleDisconnect отключает кошелёк.
func (h *Handler) HandleDisconnect(ctx context.Context, chatID, userID int64) {
	if err := h.service.Disconnect(ctx, userID); err != nil {
		if errors.Is(err, common.ErrNotConnected) {
			h.sender.Send(ctx, chatID, "ℹ️ Кошелёк и так не подключён")
			return
		}
		log.WithError(err).WithField("user_id", userID).Error("Ошибка отключения кошелька")
		h.sender.Send(ctx, chatID, "❌ Не удалось отключить кошелёк")
		return
	}
	h.sender.Send(ctx, chatID, "👋 Кошелёк отключён")
}

// HandleMe показывает сводку по подключённому кошельку: стрик, место
// в рейтинге и клейм за сегодня.
func (h *Handler) HandleMe(ctx context.Context, chatID, userID int64) {
	sess, err := h.service.Current(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotConnected) {
			h.sender.Send(ctx, chatID, "🔌 Кошелёк не подключён. Подключи: /connect 0x...")
			return
		}
		log.WithError(err).WithField("user_id", userID).Error("Ошибка чтения сессии")
		h.sender.Send(ctx, chatID, "❌ Ошибка получения данных")
		return
	}

	view := h.board.Snapshot(ctx, sess.Address)
	h.sender.Send(ctx, chatID, FormatMe(sess.Address, view))
}

// FormatMe собирает текст ответа /me из снимка рейтингов.
func FormatMe(address string, view leaderboard.View) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "👤 %s\n\n", common.ShortAddress(address))
	fmt.Fprintf(&sb, "🔥 Серия: %d %s\n", view.CurrentStreak, common.PluralizeDays(view.CurrentStreak))
	fmt.Fprintf(&sb, "🏅 Рекорд: %d %s\n", view.BestStreak, common.PluralizeDays(view.BestStreak))

	rank := 0
	for _, row := range view.AllTimeLeaders {
		if row.Address == address {
			rank = row.Rank
			break
		}
	}
	if rank > 0 {
		fmt.Fprintf(&sb, "🏆 Место в рейтинге: %d\n", rank)
	}

	claimed := false
	for _, v := range view.TodaysClaimers {
		if v.Address == address {
			claimed = true
			fmt.Fprintf(&sb, "✅ Сегодня клейм был %s\n", v.TimeAgo)
			break
		}
	}
	if !claimed {
		sb.WriteString("⏳ Сегодня клейма ещё не было: /claim\n")
	}
	if view.Stale {
		sb.WriteString("\n⚠️ Данные могут быть неактуальны: сеть недоступна")
	}
	return strings.TrimRight(sb.String(), "\n")
}
