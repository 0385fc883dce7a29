// Package streak — service.go содержит логику сверки стриков:
// продолжение серии, сброс после пропуска и ежедневную проверку простоя.
package streak

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/daily-login-bot/internal/common"
)

// Service управляет стриками. Все изменения одного адреса проходят через
// его мьютекс, поэтому клейм и фоновая проверка не теряют обновления друг друга.
type Service struct {
	repo *Repository      // Репозиторий стриков
	cal  *common.Calendar // Календарь в часовом поясе пользователя

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService создаёт новый сервис стриков.
func NewService(repo *Repository, cal *common.Calendar) *Service {
	return &Service{
		repo:  repo,
		cal:   cal,
		locks: make(map[string]*sync.Mutex),
	}
}

// lock захватывает мьютекс адреса и возвращает функцию освобождения.
func (s *Service) lock(address string) func() {
	s.mu.Lock()
	l, ok := s.locks[address]
	if !ok {
		l = &sync.Mutex{}
		s.locks[address] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// IsStreakValid — проверка продолжения серии: последний клейм был сегодня или вчера.
// Сравниваются только календарные даты.
func IsStreakValid(lastLoginDate, today string) bool {
	if lastLoginDate == "" {
		return false
	}
	days, err := common.DaysBetween(lastLoginDate, today)
	if err != nil {
		return false
	}
	return days == 0 || days == 1
}

// HasLoggedInToday сообщает, что последний клейм был сегодня.
func HasLoggedInToday(lastLoginDate, today string) bool {
	if lastLoginDate == "" {
		return false
	}
	days, err := common.DaysBetween(lastLoginDate, today)
	return err == nil && days == 0
}

// LoadStreak возвращает сохранённый стрик адреса.
// Отсутствие записи, повреждение и ошибка чтения дают пустую запись:
// для пользователя это выглядит как «новый пользователь», а не как ошибка.
func (s *Service) LoadStreak(ctx context.Context, address string) *Record {
	address = common.NormalizeAddress(address)
	rec, err := s.repo.Get(ctx, address)
	if err != nil {
		log.WithError(err).WithField("address", address).Warn("Стрик не прочитан, считаем пустым")
		return &Record{}
	}
	return rec
}

// load читает запись для изменения. Повреждённая запись восстанавливается
// как пустая, а недоступное хранилище — ошибка: иначе мы бы затёрли
// настоящие данные нулями.
func (s *Service) load(ctx context.Context, address string) (*Record, error) {
	rec, err := s.repo.Get(ctx, address)
	if err != nil {
		if errors.Is(err, common.ErrStorageCorrupt) {
			log.WithError(err).WithField("address", address).Warn("Повреждённый стрик восстановлен как пустой")
			return &Record{}, nil
		}
		return nil, err
	}
	return rec, nil
}

// UpdateStreak засчитывает успешный клейм и возвращает новое значение серии.
//
// Алгоритм:
//  1. Если сегодня клейм уже был — ничего не меняем (идемпотентно)
//  2. Если последний клейм был вчера — серия +1
//  3. Иначе (пропуск 2+ дней или первый клейм) — серия = 1
//  4. Рекорд = max(серия, рекорд), сохраняем {серия, рекорд, сегодня}
//
// storedLastLoginDate — дата, которую видел вызывающий. Берётся более поздняя
// из неё и сохранённой, так что устаревшее представление не даст двойного +1.
func (s *Service) UpdateStreak(ctx context.Context, address, storedLastLoginDate string) (int, error) {
	address = common.NormalizeAddress(address)
	unlock := s.lock(address)
	defer unlock()

	rec, err := s.load(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("ошибка обновления стрика: %w", err)
	}

	today := s.cal.Today()
	last := laterDate(storedLastLoginDate, rec.LastLoginDate)

	logger := log.WithFields(log.Fields{
		"address": address,
		"last":    last,
		"today":   today,
	})

	// Шаг 1: уже засчитано сегодня
	if HasLoggedInToday(last, today) {
		logger.Debug("Клейм сегодня уже засчитан, стрик не меняем")
		return rec.CurrentStreak, nil
	}
	// Дата из будущего (часы или пояс сдвинулись назад) — тоже не трогаем
	if last != "" {
		if days, err := common.DaysBetween(last, today); err == nil && days < 0 {
			logger.Warn("Дата последнего клейма в будущем, стрик не меняем")
			return rec.CurrentStreak, nil
		}
	}

	// Шаги 2-3
	newStreak := 1
	if IsStreakValid(last, today) {
		newStreak = rec.CurrentStreak + 1
	}

	// Шаг 4
	best := rec.BestStreak
	if newStreak > best {
		best = newStreak
	}
	updated := &Record{CurrentStreak: newStreak, BestStreak: best, LastLoginDate: today}
	if err := s.repo.Put(ctx, address, updated); err != nil {
		return 0, err
	}

	logger.WithFields(log.Fields{
		"streak": newStreak,
		"best":   best,
	}).Info("Стрик обновлён")
	return newStreak, nil
}

// CheckStreakStatus — проверка простоя: если с последнего клейма прошло
// больше одного дня, текущая серия обнуляется, рекорд сохраняется.
// Вызывается при подключении кошелька и кроном.
func (s *Service) CheckStreakStatus(ctx context.Context, address, storedLastLoginDate string) (*Record, error) {
	address = common.NormalizeAddress(address)
	unlock := s.lock(address)
	defer unlock()

	rec, err := s.load(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки стрика: %w", err)
	}

	last := laterDate(storedLastLoginDate, rec.LastLoginDate)
	if last == "" || rec.CurrentStreak == 0 {
		return rec, nil
	}

	days, err := s.cal.DaysSince(last)
	if err != nil {
		return rec, nil
	}
	if days <= 1 {
		return rec, nil
	}

	broken := &Record{CurrentStreak: 0, BestStreak: rec.BestStreak, LastLoginDate: last}
	if err := s.repo.Put(ctx, address, broken); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"address": address,
		"days":    days,
		"was":     rec.CurrentStreak,
	}).Info("Стрик прерван")
	return broken, nil
}

// DecayAll прогоняет CheckStreakStatus по всем сохранённым стрикам.
// Возвращает количество прерванных серий. Запускается кроном после полуночи.
func (s *Service) DecayAll(ctx context.Context) (int, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return 0, err
	}

	broken := 0
	for address, rec := range all {
		if rec.CurrentStreak == 0 {
			continue
		}
		updated, err := s.CheckStreakStatus(ctx, address, "")
		if err != nil {
			log.WithError(err).WithField("address", address).Error("Ошибка проверки стрика")
			continue
		}
		if updated.CurrentStreak == 0 {
			broken++
		}
	}

	log.WithFields(log.Fields{
		"total":  len(all),
		"broken": broken,
	}).Info("Проверка простоя завершена")
	return broken, nil
}

// Forget удаляет стрик адреса.
func (s *Service) Forget(ctx context.Context, address string) error {
	address = common.NormalizeAddress(address)
	unlock := s.lock(address)
	defer unlock()
	return s.repo.Delete(ctx, address)
}

// All возвращает все сохранённые стрики (для общего рейтинга).
func (s *Service) All(ctx context.Context) (map[string]*Record, error) {
	return s.repo.All(ctx)
}

// Today возвращает сегодняшнюю дату календаря сервиса.
func (s *Service) Today() string {
	return s.cal.Today()
}

// laterDate возвращает более позднюю из двух корректных дат.
// Формат 2006-01-02 сравнивается как строка.
func laterDate(a, b string) string {
	if _, err := common.ParseDate(a); err != nil {
		a = ""
	}
	if _, err := common.ParseDate(b); err != nil {
		b = ""
	}
	if a > b {
		return a
	}
	return b
}
