// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: хранилище, клиент контракта, сервисы, обработчики,
// бот, планировщик и HTTP API.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mymmrac/telego"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/daily-login-bot/internal/api"
	"serotonyl.ru/daily-login-bot/internal/bot"
	"serotonyl.ru/daily-login-bot/internal/chain"
	"serotonyl.ru/daily-login-bot/internal/common"
	"serotonyl.ru/daily-login-bot/internal/config"
	"serotonyl.ru/daily-login-bot/internal/db/postgres"
	"serotonyl.ru/daily-login-bot/internal/features/admin"
	"serotonyl.ru/daily-login-bot/internal/features/claim"
	"serotonyl.ru/daily-login-bot/internal/features/leaderboard"
	"serotonyl.ru/daily-login-bot/internal/features/session"
	"serotonyl.ru/daily-login-bot/internal/features/streak"
	"serotonyl.ru/daily-login-bot/internal/jobs"
	"serotonyl.ru/daily-login-bot/internal/storage"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	HTTP      *http.Server // nil, если HTTP_ENABLED=false
	Chain     *chain.Client

	closers []func()
}

// Close освобождает соединения в обратном порядке открытия.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// === 1. Хранилище ===
	kv, adminStore, err := a.openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// === 2. Клиент контракта ===
	wallet, err := chain.ParseWallet(cfg.WalletPrivateKeys)
	if err != nil {
		return nil, fmt.Errorf("WALLET_PRIVATE_KEYS: %w", err)
	}
	chainClient, err := chain.Dial(ctx, cfg.ChainRPCURL, chain.Options{
		ContractAddress: cfg.ContractAddress,
		ChainID:         cfg.ChainID,
		ReceiptPoll:     cfg.ChainReceiptPoll,
		ClaimTimeout:    cfg.ChainClaimTimeout,
	}, wallet)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к RPC: %w", err)
	}
	a.Chain = chainClient
	a.closers = append(a.closers, chainClient.Close)
	if wallet.Empty() {
		log.Warn("WALLET_PRIVATE_KEYS пуст: режим только просмотра, /claim недоступен")
	} else {
		log.WithField("addresses", wallet.Addresses()).Info("Ключи подписи загружены")
	}

	// === 3. Telegram Bot API ===
	botOpts := []telego.BotOption{telego.WithDiscardLogger()}
	if cfg.AppEnv == "development" {
		botOpts = []telego.BotOption{telego.WithLogger(log.StandardLogger())}
	}
	botAPI, err := telego.NewBot(cfg.TelegramBotToken, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	me, err := botAPI.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка авторизации в Telegram: %w", err)
	}
	log.Infof("Авторизован как @%s", me.Username)
	sender := bot.NewSender(botAPI)

	// === 4. Сервисы ===
	cal := common.NewCalendar(common.LoadLocation(cfg.AppTimezone), nil)
	streakService := streak.NewService(streak.NewRepository(kv), cal)
	boardService := leaderboard.NewService(leaderboard.NewRepository(kv), streakService, chainClient, cal, leaderboard.Options{
		TopN:          cfg.LeaderboardTopN,
		TodayLookback: cfg.ChainTodayLookback,
		SyncLookback:  cfg.ChainSyncLookback,
	})
	claimService := claim.NewService(chainClient, streakService, boardService, cal)
	sessionService := session.NewService(session.NewRepository(kv), streakService, cal)
	adminService := admin.NewService(adminStore, cfg)

	// === 5. Обработчики ===
	handlers := bot.Handlers{
		Session:     session.NewHandler(sessionService, boardService, sender),
		Streak:      streak.NewHandler(streakService, sender),
		Claim:       claim.NewHandler(claimService, sender),
		Leaderboard: leaderboard.NewHandler(boardService, sender),
		Admin:       admin.NewHandler(adminService, streakService, boardService, sender),
	}

	// === 6. Собираем бота ===
	a.Bot = bot.New(botAPI, cfg, sender, me.Username, handlers, sessionService, adminService)

	// === 7. Планировщик задач ===
	a.Scheduler = jobs.NewScheduler(cal.Location(), jobs.Schedule{
		Refresh:      cfg.JobsRefreshSpec,
		Resync:       cfg.JobsResyncSpec,
		Decay:        cfg.JobsDecaySpec,
		Reminder:     cfg.JobsReminderSpec,
		ReminderHour: cfg.StreakReminderHour,
	}, boardService, streakService, sessionService, sender)

	// === 8. HTTP API ===
	if cfg.HTTPEnabled {
		router := api.NewRouter(api.NewHandler(boardService, streakService, claimService), cfg.AppEnv == "production")
		a.HTTP = api.NewServer(cfg.HTTPAddr, router)
	}

	ok = true
	return a, nil
}

// openStorage подключает выбранный бэкенд и возвращает KV и хранилище
// админ-сессий. Сессии живут в PostgreSQL, если он выбран, иначе в памяти.
func (a *App) openStorage(ctx context.Context, cfg *config.Config) (storage.KV, admin.Store, error) {
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("ошибка подключения к БД: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, nil, fmt.Errorf("ошибка миграций: %w", err)
		}
		return storage.NewPostgres(pool), admin.NewRepository(pool), nil

	case config.StorageRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, func() {
			if err := rdb.Close(); err != nil {
				log.WithError(err).Warn("Ошибка закрытия Redis")
			}
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("Redis недоступен: %w", err)
		}
		log.WithField("addr", cfg.RedisAddr).Info("Подключение к Redis установлено")
		return storage.NewRedis(rdb), admin.NewMemoryStore(nil), nil

	case config.StorageMemory:
		log.Warn("STORAGE_BACKEND=memory: данные пропадут при перезапуске")
		return storage.NewMemory(), admin.NewMemoryStore(nil), nil
	}
	return nil, nil, fmt.Errorf("неизвестный STORAGE_BACKEND %q", cfg.StorageBackend)
}
