// Package leaderboard — repository.go хранит историю клеймов в KV-хранилище
// под ключами leaderboard:<адрес>.
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/daily-login-bot/internal/common"
	"serotonyl.ru/daily-login-bot/internal/storage"
)

// Repository — типизированное хранилище истории клеймов.
type Repository struct {
	kv storage.KV
}

// NewRepository создаёт новый репозиторий истории.
func NewRepository(kv storage.KV) *Repository {
	return &Repository{kv: kv}
}

// Get возвращает историю адреса. Семантика как у стриков:
// нет записи — пустая запись; повреждена — пустая запись и ErrStorageCorrupt;
// хранилище недоступно — nil и ошибка.
func (r *Repository) Get(ctx context.Context, address string) (*Record, error) {
	address = common.NormalizeAddress(address)
	data, ok, err := r.kv.Get(ctx, storage.Key(storage.PrefixLeaderboard, address))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения истории %s: %w", address, err)
	}
	if !ok {
		return &Record{Address: address}, nil
	}

	rec, err := ParseRecord(data)
	if err != nil {
		return &Record{Address: address}, err
	}
	rec.Address = address
	return rec, nil
}

// Put сохраняет историю адреса.
func (r *Repository) Put(ctx context.Context, rec *Record) error {
	rec.Address = common.NormalizeAddress(rec.Address)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ошибка сериализации истории: %w", err)
	}
	if err := r.kv.Put(ctx, storage.Key(storage.PrefixLeaderboard, rec.Address), data); err != nil {
		return fmt.Errorf("ошибка записи истории %s: %w", rec.Address, err)
	}
	return nil
}

// Delete удаляет историю адреса.
func (r *Repository) Delete(ctx context.Context, address string) error {
	return r.kv.Delete(ctx, storage.Key(storage.PrefixLeaderboard, common.NormalizeAddress(address)))
}

// All возвращает всю историю по адресам, пропуская повреждённые записи.
func (r *Repository) All(ctx context.Context) (map[string]*Record, error) {
	rows, err := r.kv.Scan(ctx, storage.PrefixLeaderboard)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории: %w", err)
	}

	out := make(map[string]*Record, len(rows))
	for key, data := range rows {
		address := storage.TrimKey(storage.PrefixLeaderboard, key)
		rec, err := ParseRecord(data)
		if err != nil {
			if errors.Is(err, common.ErrStorageCorrupt) {
				log.WithError(err).WithField("address", address).Warn("Повреждённая запись истории пропущена")
				continue
			}
			return nil, err
		}
		rec.Address = address
		out[address] = rec
	}
	return out, nil
}
