package filters

import (
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
)

func message(chatID int64, chatType string, from *telego.User) *telego.Message {
	return &telego.Message{
		Chat: telego.Chat{ID: chatID, Type: chatType},
		From: from,
		Text: "/today",
	}
}

func TestChatFilter(t *testing.T) {
	user := &telego.User{ID: 7, FirstName: "Ann"}
	bot := &telego.User{ID: 8, IsBot: true}
	f := NewChatFilter(-100)

	assert.True(t, f.CheckAccess(message(7, telego.ChatTypePrivate, user)))
	assert.True(t, f.CheckAccess(message(-100, telego.ChatTypeSupergroup, user)))
	assert.False(t, f.CheckAccess(message(-200, telego.ChatTypeGroup, user)))
	assert.False(t, f.CheckAccess(message(-100, telego.ChatTypeSupergroup, nil)))
	assert.False(t, f.CheckAccess(message(-100, telego.ChatTypeSupergroup, bot)))
	assert.False(t, f.CheckAccess(nil))
}

func TestChatFilterPrivateOnly(t *testing.T) {
	f := NewChatFilter(0)
	user := &telego.User{ID: 7}

	assert.True(t, f.CheckAccess(message(7, telego.ChatTypePrivate, user)))
	assert.False(t, f.CheckAccess(message(0, telego.ChatTypeGroup, user)))
}
