package bot

import (
	"context"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"
)

// Sender отправляет текстовые сообщения через Telegram Bot API.
type Sender struct {
	api *telego.Bot
}

// NewSender создаёт отправителя поверх клиента telego.
func NewSender(api *telego.Bot) *Sender {
	return &Sender{api: api}
}

// Send отправляет сообщение. Ошибки только логируются: пользователь
// в заблокировавшем бота чате ответа всё равно не увидит.
func (s *Sender) Send(ctx context.Context, chatID int64, text string) {
	if _, err := s.api.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Warn("Ошибка отправки сообщения")
		return
	}
	log.WithField("chat_id", chatID).Debug("message sent")
}
