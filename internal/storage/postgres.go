package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres хранит записи в таблице kv_records (см. db/postgres/migrations.go).
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres создаёт хранилище поверх пула соединений.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := p.db.QueryRow(ctx, `SELECT value FROM kv_records WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения %s: %w", key, err)
	}
	return []byte(value), true, nil
}

func (p *Postgres) Put(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_records (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := p.db.Exec(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("ошибка записи %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM kv_records WHERE key = $1`, key); err != nil {
		return fmt.Errorf("ошибка удаления %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	// starts_with не интерпретирует % и _ в префиксе
	rows, err := p.db.Query(ctx, `SELECT key, value FROM kv_records WHERE starts_with(key, $1)`, prefix)
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования %s*: %w", prefix, err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("ошибка сканирования: %w", err)
		}
		out[key] = []byte(value)
	}
	return out, rows.Err()
}
