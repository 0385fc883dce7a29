// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Бэкенды хранилища
const (
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
	StorageMemory   = "memory"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	AdminIDsRaw      string  `envconfig:"ADMIN_IDS" required:"true"`
	AdminIDs         []int64 `envconfig:"-"` // заполним вручную
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	// Групповой чат, в котором бот отвечает. 0 — только личные сообщения.
	BotChatID int64 `envconfig:"BOT_CHAT_ID" default:"0"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Storage ---
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"postgres"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"daily_login"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Redis ---
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"redis:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// --- Chain ---
	ChainRPCURL          string        `envconfig:"CHAIN_RPC_URL" required:"true"`
	ChainID              int64         `envconfig:"CHAIN_ID" default:"1270"`
	ContractAddress      string        `envconfig:"CONTRACT_ADDRESS" default:"0xE6466700214a9cc8b76653af4a1D99ECE009645d"`
	ChainTodayLookback   uint64        `envconfig:"CHAIN_TODAY_LOOKBACK_BLOCKS" default:"10000"`
	ChainSyncLookback    uint64        `envconfig:"CHAIN_SYNC_LOOKBACK_BLOCKS" default:"100000"`
	ChainReceiptPoll     time.Duration `envconfig:"CHAIN_RECEIPT_POLL" default:"2s"`
	ChainClaimTimeout    time.Duration `envconfig:"CHAIN_CLAIM_TIMEOUT" default:"3m"`
	WalletPrivateKeysRaw string        `envconfig:"WALLET_PRIVATE_KEYS"`
	// Пусто — режим только просмотра
	WalletPrivateKeys []string `envconfig:"-"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Leaderboard ---
	LeaderboardTopN int `envconfig:"LEADERBOARD_TOP_N" default:"100"`

	// --- Jobs ---
	JobsRefreshSpec    string `envconfig:"JOBS_REFRESH_SPEC" default:"@every 1m"`
	JobsResyncSpec     string `envconfig:"JOBS_RESYNC_SPEC" default:"@every 30m"`
	JobsDecaySpec      string `envconfig:"JOBS_DECAY_SPEC" default:"5 0 * * *"`
	JobsReminderSpec   string `envconfig:"JOBS_REMINDER_SPEC" default:"0 * * * *"`
	StreakReminderHour int    `envconfig:"STREAK_REMINDER_HOUR" default:"18"`

	// --- HTTP API ---
	HTTPEnabled bool   `envconfig:"HTTP_ENABLED" default:"true"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// IsAdmin проверяет, входит ли пользователь в ADMIN_IDS.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}

	switch c.StorageBackend {
	case StoragePostgres:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD обязателен для STORAGE_BACKEND=postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case StorageRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR не задан")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("неизвестный STORAGE_BACKEND %q (postgres, redis, memory)", c.StorageBackend)
	}

	if c.ChainTodayLookback == 0 || c.ChainSyncLookback == 0 {
		return fmt.Errorf("CHAIN_*_LOOKBACK_BLOCKS должны быть > 0")
	}
	if c.ChainReceiptPoll <= 0 || c.ChainClaimTimeout <= 0 {
		return fmt.Errorf("CHAIN_RECEIPT_POLL и CHAIN_CLAIM_TIMEOUT должны быть > 0")
	}
	if c.LeaderboardTopN <= 0 {
		return fmt.Errorf("LEADERBOARD_TOP_N должен быть > 0")
	}
	if c.StreakReminderHour < 0 || c.StreakReminderHour > 23 {
		return fmt.Errorf("STREAK_REMINDER_HOUR должен быть от 0 до 23")
	}
	if _, err := time.LoadLocation(c.AppTimezone); err != nil {
		return fmt.Errorf("неизвестный APP_TIMEZONE %q: %w", c.AppTimezone, err)
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids
	cfg.WalletPrivateKeys = parseCSV(cfg.WalletPrivateKeysRaw)
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	parts := parseCSV(s)
	if len(parts) == 0 {
		return nil, nil
	}
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseCSV режет строку по запятым, убирая пробелы и пустые элементы.
func parseCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
