// Package postgres управляет подключением к базе данных PostgreSQL
// и схемой для STORAGE_BACKEND=postgres.
// Используется пул соединений pgxpool для эффективной работы
// с несколькими горутинами одновременно.
//
// Пул автоматически управляет открытием/закрытием соединений,
// переподключается при обрыве и ограничивает максимальное число соединений.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/daily-login-bot/internal/config"
)

// NewPool создаёт пул соединений к PostgreSQL. Через него работают
// storage.Postgres (таблица kv_records со стриками, историей клеймов
// и сессиями) и admin.Repository. Размер пула задают DB_MAX_CONNS и DB_MIN_CONNS.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	// Парсим строку подключения и настраиваем пул
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	// Клейм, cron и HTTP API пишут и читают kv_records параллельно
	poolConfig.MaxConns = cfg.DBMaxConns           // Максимум соединений
	poolConfig.MinConns = cfg.DBMinConns           // Минимум (держать открытыми)
	poolConfig.MaxConnLifetime = 1 * time.Hour     // Время жизни одного соединения
	poolConfig.MaxConnIdleTime = 30 * time.Minute  // Время простоя до закрытия
	poolConfig.HealthCheckPeriod = 1 * time.Minute // Проверка здоровья соединений

	// Создаём пул с заданной конфигурацией
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула: %w", err)
	}

	// Проверяем, что база доступна
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("база данных недоступна: %w", err)
	}

	log.Info("Подключение к PostgreSQL установлено")
	return pool, nil
}

// RunMigrations применяет миграции из migrations.go по порядку номеров.
// Уже применённые версии пропускаются (см. ExecMigrationSQL).
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("не удалось получить соединение: %w", err)
	}

	// Создаём таблицу для отслеживания миграций, если её нет
	_, err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT NOW()
		)
	`)
	conn.Release()
	if err != nil {
		return fmt.Errorf("ошибка создания таблицы миграций: %w", err)
	}

	for _, m := range migrations {
		if err := ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return err
		}
	}

	log.WithField("count", len(migrations)).Info("Миграции применены")
	return nil
}
