// Package bot содержит главный модуль бота — запуск polling, маршрутизацию
// команд и остановку.
package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/daily-login-bot/internal/bot/filters"
	"serotonyl.ru/daily-login-bot/internal/bot/middleware"
	"serotonyl.ru/daily-login-bot/internal/common"
	"serotonyl.ru/daily-login-bot/internal/config"
	"serotonyl.ru/daily-login-bot/internal/features/admin"
	"serotonyl.ru/daily-login-bot/internal/features/claim"
	"serotonyl.ru/daily-login-bot/internal/features/leaderboard"
	"serotonyl.ru/daily-login-bot/internal/features/session"
	"serotonyl.ru/daily-login-bot/internal/features/streak"
)

// Handlers — обработчики фич, которые бот вызывает по командам.
type Handlers struct {
	Session     *session.Handler
	Streak      *streak.Handler
	Claim       *claim.Handler
	Leaderboard *leaderboard.Handler
	Admin       *admin.Handler
}

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api    *telego.Bot
	cfg    *config.Config
	sender common.Sender

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	handlers     Handlers
	sessions     *session.Service
	adminService *admin.Service

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
// username — имя бота без @, нужно для команд вида /top@my_bot в группах.
func New(
	api *telego.Bot,
	cfg *config.Config,
	sender common.Sender,
	username string,
	handlers Handlers,
	sessions *session.Service,
	adminService *admin.Service,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:          api,
		cfg:          cfg,
		sender:       sender,
		chatFilter:   filters.NewChatFilter(cfg.BotChatID),
		rateLimiter:  middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		handlers:     handlers,
		sessions:     sessions,
		adminService: adminService,
		parser:       NewCommandParser(username),
		inflight:     make(chan struct{}, maxInFlight),
	}
}

// Start запускает long polling и блокируется до отмены ctx.
func (b *Bot) Start(ctx context.Context) error {
	updates, err := b.api.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        b.cfg.BotUpdateTimeoutSeconds,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return err
	}
	defer b.rateLimiter.Close()

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
		"chat_id":      b.cfg.BotChatID,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.drain()
			return nil

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				b.drain()
				return nil
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd telego.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// drain ждёт завершения запущенных обработчиков: заполняет семафор целиком.
// После выхода из Start ресурсы приложения можно закрывать.
func (b *Bot) drain() {
	for i := 0; i < cap(b.inflight); i++ {
		b.inflight <- struct{}{}
	}
	for i := 0; i < cap(b.inflight); i++ {
		<-b.inflight
	}
	log.Info("Обработчики апдейтов завершены")
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update telego.Update) {
	defer middleware.RecoverFromPanic(update.UpdateID)

	message := update.Message
	if message == nil || message.Text == "" {
		return
	}

	middleware.LogMessage(message)

	if !b.chatFilter.CheckAccess(message) {
		return
	}

	if !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	chatID := message.Chat.ID
	userID := message.From.ID
	private := message.Chat.Type == telego.ChatTypePrivate

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		// В личке обычный текст может быть паролем для /login
		if private {
			b.handlers.Admin.HandleMessage(ctx, chatID, userID, message.Text)
		}
		return
	}

	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": len(args),
	}).Debug("routing command")

	switch cmd {
	case "start", "help", "помощь":
		b.sender.Send(ctx, chatID, helpText)

	case "connect", "подключить":
		b.handlers.Session.HandleConnect(ctx, chatID, userID, message.From.Username, message.From.FirstName, args)

	case "disconnect", "отключить":
		b.handlers.Session.HandleDisconnect(ctx, chatID, userID)

	case "me", "я":
		b.handlers.Session.HandleMe(ctx, chatID, userID)

	case "streak", "стрик", "огонек":
		if address, ok := b.resolveAddress(ctx, chatID, userID, args); ok {
			b.handlers.Streak.HandleStreak(ctx, chatID, address)
		}

	case "last", "последний":
		if address, ok := b.resolveAddress(ctx, chatID, userID, args); ok {
			b.handlers.Claim.HandleLast(ctx, chatID, address)
		}

	case "claim", "клейм":
		// Клейм подписывается ключом бота, поэтому только для админов
		if err := b.adminService.Authorize(ctx, userID); err != nil {
			b.sender.Send(ctx, chatID, "❌ "+err.Error())
			return
		}
		if address, ok := b.resolveAddress(ctx, chatID, userID, args); ok {
			b.handlers.Claim.HandleClaim(ctx, chatID, address)
		}

	case "today", "сегодня":
		b.handlers.Leaderboard.HandleToday(ctx, chatID)

	case "top", "топ":
		b.handlers.Leaderboard.HandleTop(ctx, chatID, args)

	case "login":
		b.handlers.Admin.HandleLogin(ctx, chatID, userID, private, args)

	case "logout":
		b.handlers.Admin.HandleLogout(ctx, chatID, userID)

	case "resync":
		b.handlers.Admin.HandleResync(ctx, chatID, userID)

	case "decay":
		b.handlers.Admin.HandleDecay(ctx, chatID, userID)

	case "forget":
		b.handlers.Admin.HandleForget(ctx, chatID, userID, args)
	}
}

// resolveAddress берёт адрес из аргумента или из подключённого кошелька
// и сам объясняет пользователю, если адреса нет.
func (b *Bot) resolveAddress(ctx context.Context, chatID, userID int64, args []string) (string, bool) {
	address, err := b.sessions.ResolveAddress(ctx, userID, args)
	switch {
	case err == nil:
		return address, true
	case errors.Is(err, common.ErrInvalidAddress):
		b.sender.Send(ctx, chatID, "❌ Некорректный адрес. Нужен адрес вида 0x и 40 hex-символов")
	case errors.Is(err, common.ErrNotConnected):
		b.sender.Send(ctx, chatID, "🔌 Кошелёк не подключён. Подключи: /connect 0x... или укажи адрес после команды")
	default:
		log.WithError(err).WithField("user_id", userID).Error("Ошибка чтения сессии")
		b.sender.Send(ctx, chatID, "❌ Хранилище недоступно, попробуй позже")
	}
	return "", false
}

const helpText = `🔥 Ежедневный логин

/connect 0x... — подключить кошелёк
/disconnect — отключить кошелёк
/me — моя сводка
/streak [0x...] — серия клеймов
/last [0x...] — последний клейм по данным контракта
/today — кто клеймил сегодня
/top [N] — общий рейтинг
/login — вход для администратора`

// CommandParser разбирает команды с префиксами /, ! и .
type CommandParser struct {
	validPrefixes []string
	username      string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser(username string) *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"/", "!", "."},
		username:      strings.ToLower(strings.TrimPrefix(username, "@")),
	}
}

// ParseCommand разбирает текст на команду и аргументы.
// Команда, адресованная другому боту (/top@other_bot), не считается командой.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}
	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	cmd := strings.ToLower(parts[0])
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		target := cmd[at+1:]
		cmd = cmd[:at]
		if p.username != "" && target != p.username {
			return "", nil, false
		}
	}
	if cmd == "" {
		return "", nil, false
	}

	return cmd, parts[1:], true
}
