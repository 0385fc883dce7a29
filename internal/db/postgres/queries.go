// Package postgres — queries.go выполняет одну миграцию в транзакции
// и отмечает её версию в schema_migrations.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// ExecMigrationSQL применяет миграцию version, если она ещё не применена.
// Если SQL упадёт — транзакция откатится, версия не запишется.
func ExecMigrationSQL(ctx context.Context, pool *pgxpool.Pool, version int, sql string) error {
	applied := false
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		// Блокировка на время транзакции: два процесса не применят миграцию дважды
		if _, err := tx.Exec(ctx, `LOCK TABLE schema_migrations IN EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("ошибка блокировки schema_migrations: %w", err)
		}

		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version,
		).Scan(&exists); err != nil {
			return fmt.Errorf("ошибка проверки миграции %d: %w", version, err)
		}
		if exists {
			return nil
		}

		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("ошибка выполнения миграции %d: %w", version, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1)`, version,
		); err != nil {
			return fmt.Errorf("ошибка записи версии миграции %d: %w", version, err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return err
	}

	if applied {
		log.WithField("version", version).Info("Миграция применена")
	}
	return nil
}
