// Package session хранит подключённые кошельки пользователей Telegram.
// models.go описывает запись сессии.
package session

import (
	"encoding/json"
	"fmt"
	"strconv"

	"serotonyl.ru/daily-login-bot/internal/common"
)

// Session — подключение пользователя Telegram к адресу кошелька.
// После отключения адрес остаётся как последний подключённый.
type Session struct {
	UserID      int64  `json:"userId"`               // Telegram user ID
	Username    string `json:"username,omitempty"`   // @username (может быть пустым)
	FirstName   string `json:"firstName,omitempty"`  // Имя пользователя
	Connected   bool   `json:"connected"`            // Флаг подключения
	Address     string `json:"address"`              // Последний подключённый адрес, нижний регистр
	ConnectedAt int64  `json:"connectedAt"`          // Unix-время последнего подключения
	RemindedOn  string `json:"remindedOn,omitempty"` // Дата последнего напоминания, 2006-01-02
}

// DisplayName возвращает отображаемое имя пользователя.
// Если есть @username — возвращает его, иначе — имя.
func (s *Session) DisplayName() string {
	if s.Username != "" {
		return "@" + s.Username
	}
	if s.FirstName != "" {
		return s.FirstName
	}
	return strconv.FormatInt(s.UserID, 10)
}

// parseSession разбирает запись сессии.
func parseSession(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageCorrupt, err)
	}
	s.Address = common.NormalizeAddress(s.Address)
	if s.Connected && s.Address == "" {
		s.Connected = false
	}
	return &s, nil
}
