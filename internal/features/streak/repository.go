// Package streak — repository.go хранит записи стриков в KV-хранилище
// под ключами streak:<адрес>.
package streak

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/daily-login-bot/internal/common"
	"serotonyl.ru/daily-login-bot/internal/storage"
)

// Repository — типизированное хранилище стриков.
type Repository struct {
	kv storage.KV
}

// NewRepository создаёт новый репозиторий стриков.
func NewRepository(kv storage.KV) *Repository {
	return &Repository{kv: kv}
}

// Get возвращает стрик адреса.
//   - записи нет: пустая запись, nil
//   - запись повреждена: пустая запись и ошибка с common.ErrStorageCorrupt
//   - хранилище недоступно: nil и ошибка
func (r *Repository) Get(ctx context.Context, address string) (*Record, error) {
	address = common.NormalizeAddress(address)
	data, ok, err := r.kv.Get(ctx, storage.Key(storage.PrefixStreak, address))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения стрика %s: %w", address, err)
	}
	if !ok {
		return &Record{}, nil
	}

	rec, err := ParseRecord(data)
	if err != nil {
		return &Record{}, err
	}
	return rec, nil
}

// Put сохраняет стрик адреса.
func (r *Repository) Put(ctx context.Context, address string, rec *Record) error {
	address = common.NormalizeAddress(address)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ошибка сериализации стрика: %w", err)
	}
	if err := r.kv.Put(ctx, storage.Key(storage.PrefixStreak, address), data); err != nil {
		return fmt.Errorf("ошибка записи стрика %s: %w", address, err)
	}
	return nil
}

// Delete удаляет стрик адреса (внешняя очистка).
func (r *Repository) Delete(ctx context.Context, address string) error {
	return r.kv.Delete(ctx, storage.Key(storage.PrefixStreak, common.NormalizeAddress(address)))
}

// All возвращает все стрики по адресам. Повреждённые записи пропускаются
// с предупреждением в логе.
func (r *Repository) All(ctx context.Context) (map[string]*Record, error) {
	rows, err := r.kv.Scan(ctx, storage.PrefixStreak)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения стриков: %w", err)
	}

	out := make(map[string]*Record, len(rows))
	for key, data := range rows {
		address := storage.TrimKey(storage.PrefixStreak, key)
		rec, err := ParseRecord(data)
		if err != nil {
			if errors.Is(err, common.ErrStorageCorrupt) {
				log.WithError(err).WithField("address", address).Warn("Повреждённая запись стрика пропущена")
				continue
			}
			return nil, err
		}
		out[address] = rec
	}
	return out, nil
}
