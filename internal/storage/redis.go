package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis хранит каждую запись отдельным строковым ключом без TTL.
type Redis struct {
	rdb *redis.Client
}

// NewRedis создаёт хранилище поверх клиента go-redis.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Scan обходит ключи через SCAN (не KEYS), затем читает значения пачкой MGET.
func (r *Redis) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s*: %w", prefix, err)
	}

	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to mget %s*: %w", prefix, err)
	}
	for i, v := range values {
		// ключ мог исчезнуть между SCAN и MGET
		s, ok := v.(string)
		if !ok {
			continue
		}
		out[keys[i]] = []byte(s)
	}
	return out, nil
}
