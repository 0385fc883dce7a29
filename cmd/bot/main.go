// Package main — точка входа бота.
// Загружает конфигурацию, инициализирует приложение и запускает.
// Поддерживает graceful shutdown по SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/daily-login-bot/internal/app"
	"serotonyl.ru/daily-login-bot/internal/config"
)

func main() {
	// Настраиваем логирование
	setupLogging()

	log.Info("=== Бот запускается ===")

	// Локальный .env для запуска без docker. Переменные окружения важнее файла.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("Не удалось прочитать .env")
	}

	// Загружаем конфигурацию из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Не удалось загрузить конфигурацию")
	}

	// Устанавливаем уровень логирования из конфига
	level, err := log.ParseLevel(cfg.AppLogLevel)
	if err == nil {
		log.SetLevel(level)
	}
	if cfg.AppEnv == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	}

	// Контекст отменяется по Ctrl+C или docker stop
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализируем приложение (хранилище, RPC, бот, сервисы, обработчики)
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Не удалось инициализировать приложение")
	}
	defer application.Close()

	// Запускаем планировщик задач (cron)
	if err := application.Scheduler.Start(ctx); err != nil {
		log.WithError(err).Fatal("Не удалось запустить планировщик")
	}
	defer application.Scheduler.Stop()

	var wg sync.WaitGroup

	// HTTP API
	if application.HTTP != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.WithField("addr", application.HTTP.Addr).Info("HTTP API запущен")
			if err := application.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("HTTP API остановлен с ошибкой")
				stop()
			}
		}()
	}

	// Бот
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := application.Bot.Start(ctx); err != nil {
			log.WithError(err).Error("Polling остановлен с ошибкой")
			stop()
		}
	}()

	log.Info("=== Бот готов к работе ===")

	<-ctx.Done()
	log.Info("Получен сигнал остановки, останавливаемся...")

	if application.HTTP != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := application.HTTP.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("HTTP API не остановился вовремя")
		}
		cancel()
	}

	wg.Wait()
	log.Info("=== Бот остановлен ===")
}

// setupLogging настраивает формат логов.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
