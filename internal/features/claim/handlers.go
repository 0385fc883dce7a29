// Package claim — handlers.go обрабатывает команды /claim и /last.
package claim

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/daily-login-bot/internal/common"
)

// Handler обрабатывает команды клейма.
type Handler struct {
	service *Service
	sender  common.Sender
}

// NewHandler создаёт обработчик команд клейма.
func NewHandler(service *Service, sender common.Sender) *Handler {
	return &Handler{service: service, sender: sender}
}

// HandleClaim выполняет клейм для подключённого адреса.
//
// Формат ответа:
//
//	✅ Клейм засчитан!
//	🔥 Серия: 3 дня (рекорд 5 дней)
//	Tx: 0xabc...
func (h *Handler) HandleClaim(ctx context.Context, chatID int64, address string) {
	h.sender.Send(ctx, chatID, "⏳ Отправляем транзакцию, это может занять пару минут...")

	result, err := h.service.Claim(ctx, address)
	if err != nil {
		h.sender.Send(ctx, chatID, claimErrorMessage(err))
		return
	}

	h.sender.Send(ctx, chatID, fmt.Sprintf(
		"✅ Клейм засчитан!\n\n"+
			"🔥 Серия: %d %s (рекорд %d %s)\n"+
			"Tx: %s",
		result.CurrentStreak, common.PluralizeDays(result.CurrentStreak),
		result.BestStreak, common.PluralizeDays(result.BestStreak),
		result.TxHash,
	))
}

// HandleLast показывает последний клейм адреса по данным контракта.
func (h *Handler) HandleLast(ctx context.Context, chatID int64, address string) {
	info, err := h.service.LastClaim(ctx, address)
	if err != nil {
		log.WithError(err).WithField("address", address).Warn("Последний клейм не прочитан")
		h.sender.Send(ctx, chatID, "⚠️ Не удалось получить данные из сети, попробуй позже")
		return
	}
	h.sender.Send(ctx, chatID, FormatLastClaim(info))
}

// FormatLastClaim собирает текст ответа /last.
func FormatLastClaim(info *LastClaimInfo) string {
	addr := common.ShortAddress(info.Address)
	if info.LastClaimAt.IsZero() {
		return fmt.Sprintf("🕐 %s ещё ни разу не клеймил. Можно прямо сейчас: /claim", addr)
	}

	text := fmt.Sprintf("🕐 Последний клейм %s: %s (%s)\n",
		addr, info.LastClaimAt.Format("02.01.2006 15:04"), info.TimeAgo)
	if info.CanClaim {
		return text + "✅ Следующий клейм доступен: /claim"
	}
	return text + fmt.Sprintf("⏳ Следующий через %s (%s)",
		common.FormatDuration(info.Wait), info.NextClaimAt.Format("02.01.2006 15:04"))
}

// claimErrorMessage переводит ошибку клейма в текст для пользователя.
func claimErrorMessage(err error) string {
	if ce, ok := common.AsClaimError(err); ok {
		return ce.UserMessage()
	}
	switch {
	case errors.Is(err, common.ErrWalletUnavailable):
		return "🔒 Для этого адреса нет ключа подписи. Доступен только просмотр"
	case errors.Is(err, ErrClaimInProgress):
		return "⏳ " + err.Error()
	default:
		log.WithError(err).Error("Необработанная ошибка клейма")
		return "❌ Не удалось выполнить клейм, попробуй ещё раз"
	}
}
