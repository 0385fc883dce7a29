// Package storage — постоянное key-value хранилище записей по адресам.
// Это замена localStorage браузера: стрики, история клеймов и сессии
// хранятся как JSON под ключами с префиксом (streak:, leaderboard:, session:).
//
// Реализации: Memory (тесты, STORAGE_BACKEND=memory), Postgres (pgxpool)
// и Redis (go-redis). Запись Put синхронна: следующий Get/Scan в этом же
// процессе уже видит новое значение.
package storage

import (
	"context"
	"strings"
)

// KV — минимальный интерфейс хранилища, который нужен сервисам.
type KV interface {
	// Get возвращает значение и признак наличия ключа.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put создаёт или перезаписывает значение.
	Put(ctx context.Context, key string, value []byte) error
	// Delete удаляет ключ. Отсутствующий ключ — не ошибка.
	Delete(ctx context.Context, key string) error
	// Scan возвращает все пары с ключами, начинающимися на prefix.
	Scan(ctx context.Context, prefix string) (map[string][]byte, error)
}

// Префиксы пространства ключей.
const (
	PrefixStreak      = "streak:"
	PrefixLeaderboard = "leaderboard:"
	PrefixSession     = "session:"
)

// Key склеивает префикс и идентификатор.
func Key(prefix, id string) string {
	return prefix + id
}

// TrimKey отрезает префикс и возвращает идентификатор.
func TrimKey(prefix, key string) string {
	return strings.TrimPrefix(key, prefix)
}
