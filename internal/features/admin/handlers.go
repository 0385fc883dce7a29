// Package admin — handlers.go обрабатывает админ-команды.
// Поток: /login в личке → пароль → команды обслуживания (/resync, /decay, /forget).
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/daily-login-bot/internal/common"
	"serotonyl.ru/daily-login-bot/internal/features/leaderboard"
	"serotonyl.ru/daily-login-bot/internal/features/streak"
)

// Handler обрабатывает админ-команды.
type Handler struct {
	service *Service
	streaks *streak.Service
	board   *leaderboard.Service
	sender  common.Sender
}

// NewHandler создаёт обработчик админ-команд.
func NewHandler(service *Service, streaks *streak.Service, board *leaderboard.Service, sender common.Sender) *Handler {
	return &Handler{
		service: service,
		streaks: streaks,
		board:   board,
		sender:  sender,
	}
}

// HandleLogin — /login [пароль]. Без пароля бот спрашивает его следующим сообщением.
// Пароль принимается только в личных сообщениях.
func (h *Handler) HandleLogin(ctx context.Context, chatID, userID int64, private bool, args []string) {
	if !h.service.IsAdmin(userID) {
		h.sender.Send(ctx, chatID, "❌ "+common.ErrNotAdmin.Error())
		return
	}
	if !private {
		h.sender.Send(ctx, chatID, "🔐 Вход только в личных сообщениях с ботом")
		return
	}
	if h.service.HasActiveSession(ctx, userID) {
		h.sender.Send(ctx, chatID, "✅ Вы уже авторизованы")
		return
	}

	if len(args) == 0 {
		h.service.SetState(userID, StateAwaitingPassword)
		h.sender.Send(ctx, chatID, "🔐 Введите пароль администратора:")
		return
	}
	h.handlePasswordInput(ctx, chatID, userID, strings.Join(args, " "))
}

// HandleMessage обрабатывает обычный текст в личке, если бот ждёт пароль.
// Возвращает true, если сообщение поглощено.
func (h *Handler) HandleMessage(ctx context.Context, chatID, userID int64, text string) bool {
	state := h.service.GetState(userID)
	if state == nil || state.State != StateAwaitingPassword {
		return false
	}
	h.handlePasswordInput(ctx, chatID, userID, strings.TrimSpace(text))
	return true
}

// handlePasswordInput обрабатывает ввод пароля.
func (h *Handler) handlePasswordInput(ctx context.Context, chatID, userID int64, password string) {
	h.service.ClearState(userID)

	if err := h.service.VerifyPassword(ctx, userID, password); err != nil {
		switch {
		case errors.Is(err, common.ErrNotAdmin),
			errors.Is(err, common.ErrWrongPassword),
			errors.Is(err, common.ErrTooManyAttempts):
			h.sender.Send(ctx, chatID, "❌ "+err.Error())
		default:
			log.WithError(err).WithField("user_id", userID).Error("Ошибка входа администратора")
			h.sender.Send(ctx, chatID, "❌ Не удалось выполнить вход, попробуйте позже")
		}
		return
	}

	h.sender.Send(ctx, chatID, "✅ Аутентификация успешна!\n\n"+adminHelp)
}

// HandleLogout — /logout.
func (h *Handler) HandleLogout(ctx context.Context, chatID, userID int64) {
	if !h.service.IsAdmin(userID) {
		h.sender.Send(ctx, chatID, "❌ "+common.ErrNotAdmin.Error())
		return
	}
	if err := h.service.Logout(ctx, userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка выхода администратора")
		h.sender.Send(ctx, chatID, "❌ Не удалось завершить сессию")
		return
	}
	h.sender.Send(ctx, chatID, "👋 Сессия завершена")
}

// HandleResync — /resync: полный пересчёт истории клеймов по событиям контракта.
func (h *Handler) HandleResync(ctx context.Context, chatID, userID int64) {
	if !h.authorize(ctx, chatID, userID) {
		return
	}
	h.sender.Send(ctx, chatID, "⏳ Сканирую события контракта...")

	added, err := h.board.Resync(ctx)
	if err != nil {
		h.sender.Send(ctx, chatID, "❌ Сеть недоступна, история не обновлена")
		return
	}
	if err := h.board.RefreshToday(ctx); err != nil {
		log.WithError(err).Warn("Список за сегодня не обновлён после пересинхронизации")
	}
	h.sender.Send(ctx, chatID, fmt.Sprintf("✅ Пересинхронизация завершена, новых дат: %d", added))
}

// HandleDecay — /decay: внеплановая проверка простоя по всем стрикам.
func (h *Handler) HandleDecay(ctx context.Context, chatID, userID int64) {
	if !h.authorize(ctx, chatID, userID) {
		return
	}
	broken, err := h.streaks.DecayAll(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка проверки простоя")
		h.sender.Send(ctx, chatID, "❌ Хранилище недоступно")
		return
	}
	h.sender.Send(ctx, chatID, fmt.Sprintf("✅ Проверка завершена, прервано серий: %d", broken))
}

// HandleForget — /forget 0x...: удаляет стрик и историю адреса.
func (h *Handler) HandleForget(ctx context.Context, chatID, userID int64, args []string) {
	if !h.authorize(ctx, chatID, userID) {
		return
	}
	if len(args) == 0 {
		h.sender.Send(ctx, chatID, "❌ Формат: /forget 0x...")
		return
	}
	address, err := common.ParseAddress(args[0])
	if err != nil {
		h.sender.Send(ctx, chatID, "❌ Некорректный адрес")
		return
	}

	// Сначала стрик, иначе пересчёт рейтинга вернёт адрес обратно
	if err := h.streaks.Forget(ctx, address); err != nil {
		log.WithError(err).WithField("address", address).Error("Ошибка удаления стрика")
		h.sender.Send(ctx, chatID, "❌ Хранилище недоступно")
		return
	}
	if err := h.board.Forget(ctx, address); err != nil {
		log.WithError(err).WithField("address", address).Error("Ошибка удаления истории")
		h.sender.Send(ctx, chatID, "❌ Хранилище недоступно")
		return
	}

	log.WithFields(log.Fields{
		"address": address,
		"admin":   userID,
	}).Info("Данные адреса удалены")
	h.sender.Send(ctx, chatID, fmt.Sprintf("🗑 Данные %s удалены", common.ShortAddress(address)))
}

// authorize проверяет админ-сессию и сообщает пользователю причину отказа.
func (h *Handler) authorize(ctx context.Context, chatID, userID int64) bool {
	err := h.service.Authorize(ctx, userID)
	if err == nil {
		return true
	}
	h.sender.Send(ctx, chatID, "❌ "+err.Error())
	return false
}

const adminHelp = `Команды администратора:
/claim — клейм от имени подключённого кошелька
/resync — пересчитать историю по событиям контракта
/decay — проверить простой всех стриков
/forget 0x... — удалить данные адреса
/logout — завершить сессию`
