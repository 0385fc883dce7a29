// Package middleware содержит промежуточные обработчики для логирования,
// восстановления после паники и rate-limiting.
package middleware

import (
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// LogMessage логирует входящее сообщение.
// Записывает: user_id, chat_id, username и текст (первые 50 символов).
func LogMessage(message *telego.Message) {
	if message == nil {
		return
	}

	fields := log.Fields{
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
		"text":      truncate(message.Text, 50),
	}
	if message.From != nil {
		fields["user_id"] = message.From.ID
		fields["username"] = message.From.Username
	}
	log.WithFields(fields).Debug("Входящее сообщение")
}

// truncate обрезает строку до n символов (не байт, чтобы не резать кириллицу).
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
