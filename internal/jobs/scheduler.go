// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: обновление списка «сегодня»,
// пересинхронизацию истории, проверку простоя стриков и напоминания.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/daily-login-bot/internal/common"
)

// Board — часть агрегатора рейтингов, которую дёргают задачи.
type Board interface {
	RefreshToday(ctx context.Context) error
	RefreshLabels()
	Resync(ctx context.Context) (int, error)
}

// Streaks — проверка простоя.
type Streaks interface {
	DecayAll(ctx context.Context) (int, error)
}

// Reminders — рассылка напоминаний подключённым пользователям.
type Reminders interface {
	SendReminders(ctx context.Context, sender common.Sender, reminderHour int) (int, error)
}

// Schedule — cron-выражения задач. Пустое выражение отключает задачу.
type Schedule struct {
	Refresh      string
	Resync       string
	Decay        string
	Reminder     string
	ReminderHour int
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron      *cron.Cron
	schedule  Schedule
	board     Board
	streaks   Streaks
	reminders Reminders
	sender    common.Sender

	// running не даёт одной задаче наложиться на свой же прошлый запуск
	mu      sync.Mutex
	running map[string]bool

	// первоначальное заполнение, запущенное из Start
	initial sync.WaitGroup
}

// NewScheduler создаёт планировщик задач в часовом поясе календаря.
func NewScheduler(loc *time.Location, schedule Schedule, board Board, streaks Streaks, reminders Reminders, sender common.Sender) *Scheduler {
	if loc == nil {
		loc = common.LoadLocation("")
	}
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		schedule:  schedule,
		board:     board,
		streaks:   streaks,
		reminders: reminders,
		sender:    sender,
		running:   make(map[string]bool),
	}
}

// Start регистрирует задачи и запускает cron. Перед стартом список
// «сегодня» и история заполняются сразу, не дожидаясь первого тика.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		spec string
		fn   func(context.Context)
	}{
		{"refresh", s.schedule.Refresh, s.refresh},
		{"resync", s.schedule.Resync, s.resync},
		{"decay", s.schedule.Decay, s.decay},
		{"reminders", s.schedule.Reminder, s.remind},
	}

	for _, j := range jobs {
		if j.spec == "" {
			log.WithField("job", j.name).Info("[CRON] Задача отключена")
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, func() { s.run(ctx, j.name, j.fn) }); err != nil {
			return fmt.Errorf("некорректное расписание %s (%q): %w", j.name, j.spec, err)
		}
	}

	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		s.run(ctx, "resync", s.resync)
		s.run(ctx, "refresh", s.refresh)
	}()

	s.cron.Start()
	log.WithField("location", s.cron.Location().String()).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения текущих задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.initial.Wait()
	log.Info("Планировщик задач остановлен")
}

// run выполняет задачу, если она ещё не выполняется.
func (s *Scheduler) run(ctx context.Context, name string, fn func(context.Context)) {
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		log.WithField("job", name).Debug("[CRON] Прошлый запуск ещё идёт, пропускаем")
		return
	}
	s.running[name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}()

	fn(ctx)
}

func (s *Scheduler) refresh(ctx context.Context) {
	s.board.RefreshLabels()
	if err := s.board.RefreshToday(ctx); err != nil {
		log.WithError(err).Warn("[CRON] Список «сегодня» не обновлён")
	}
}

func (s *Scheduler) resync(ctx context.Context) {
	if _, err := s.board.Resync(ctx); err != nil {
		log.WithError(err).Warn("[CRON] Пересинхронизация не удалась")
	}
}

func (s *Scheduler) decay(ctx context.Context) {
	log.Info("[CRON] Проверка простоя стриков")
	if _, err := s.streaks.DecayAll(ctx); err != nil {
		log.WithError(err).Error("[CRON] Ошибка проверки простоя")
	}
	// После полуночи подписи и список «сегодня» тоже устарели
	s.board.RefreshLabels()
}

func (s *Scheduler) remind(ctx context.Context) {
	log.Debug("[CRON] Проверка напоминаний")
	if _, err := s.reminders.SendReminders(ctx, s.sender, s.schedule.ReminderHour); err != nil {
		log.WithError(err).Error("[CRON] Ошибка напоминаний")
	}
}
