// Package filters решает, в каких чатах бот отвечает на сообщения.
package filters

import (
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// ChatFilter пропускает личные сообщения и один групповой чат (BOT_CHAT_ID).
type ChatFilter struct {
	groupChatID int64
}

func NewChatFilter(groupChatID int64) *ChatFilter {
	return &ChatFilter{groupChatID: groupChatID}
}

func (f *ChatFilter) CheckAccess(message *telego.Message) bool {
	if message == nil {
		log.WithField("component", "ChatFilter").Warn("nil message")
		return false
	}
	if message.From == nil || message.From.IsBot {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Debug("deny: no sender or sender is a bot (service/channel message?)")
		return false
	}

	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
		"user_id":   message.From.ID,
	})

	// 1) Личка
	if message.Chat.Type == telego.ChatTypePrivate {
		logger.Debug("allow: private")
		return true
	}

	// 2) Разрешённый групповой чат
	if f.groupChatID != 0 && message.Chat.ID == f.groupChatID {
		logger.Debug("allow: group chat")
		return true
	}

	// 3) Остальные чаты игнорируем
	logger.Debug("deny: not private and not the configured chat")
	return false
}
