// Package session — repository.go хранит сессии в KV-хранилище
// под ключами session:<userID>.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/daily-login-bot/internal/common"
	"serotonyl.ru/daily-login-bot/internal/storage"
)

// Repository — типизированное хранилище сессий.
type Repository struct {
	kv storage.KV
}

// NewRepository создаёт репозиторий сессий.
func NewRepository(kv storage.KV) *Repository {
	return &Repository{kv: kv}
}

func sessionKey(userID int64) string {
	return storage.Key(storage.PrefixSession, strconv.FormatInt(userID, 10))
}

// GetByUserID возвращает сессию пользователя или nil, если её нет.
// Повреждённая запись считается отсутствующей.
func (r *Repository) GetByUserID(ctx context.Context, userID int64) (*Session, error) {
	data, ok, err := r.kv.Get(ctx, sessionKey(userID))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сессии %d: %w", userID, err)
	}
	if !ok {
		return nil, nil
	}

	s, err := parseSession(data)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Повреждённая сессия сброшена")
		return nil, nil
	}
	s.UserID = userID
	return s, nil
}

// Save создаёт или перезаписывает сессию.
func (r *Repository) Save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("ошибка сериализации сессии: %w", err)
	}
	if err := r.kv.Put(ctx, sessionKey(s.UserID), data); err != nil {
		return fmt.Errorf("ошибка записи сессии %d: %w", s.UserID, err)
	}
	return nil
}

// All возвращает все сессии.
func (r *Repository) All(ctx context.Context) ([]*Session, error) {
	rows, err := r.kv.Scan(ctx, storage.PrefixSession)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сессий: %w", err)
	}

	out := make([]*Session, 0, len(rows))
	for key, data := range rows {
		userID, err := strconv.ParseInt(storage.TrimKey(storage.PrefixSession, key), 10, 64)
		if err != nil {
			log.WithField("key", key).Warn("Ключ сессии без user ID пропущен")
			continue
		}
		s, err := parseSession(data)
		if err != nil {
			if errors.Is(err, common.ErrStorageCorrupt) {
				log.WithError(err).WithField("user_id", userID).Warn("Повреждённая сессия пропущена")
				continue
			}
			return nil, err
		}
		s.UserID = userID
		out = append(out, s)
	}
	return out, nil
}
