// Package session — service.go содержит логику подключения кошельков
// и ежедневных напоминаний о стрике.
package session

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/daily-login-bot/internal/common"
	"serotonyl.ru/daily-login-bot/internal/features/streak"
)

// Service управляет подключениями пользователей.
type Service struct {
	repo    *Repository     // Репозиторий сессий
	streaks *streak.Service // Проверка простоя при подключении
	cal     *common.Calendar
}

// NewService создаёт новый сервис сессий.
func NewService(repo *Repository, streaks *streak.Service, cal *common.Calendar) *Service {
	return &Service{repo: repo, streaks: streaks, cal: cal}
}

// Connect подключает адрес к пользователю и сразу проверяет простой стрика:
// пока кошелёк был отключён, пропущенный день никто не заметил.
//
// Параметры:
//   - userID: Telegram user ID
//   - username, firstName: для отображения в напоминаниях и логах
//   - rawAddress: адрес 0x..., регистр не важен
func (s *Service) Connect(ctx context.Context, userID int64, username, firstName, rawAddress string) (*streak.Record, error) {
	address, err := common.ParseAddress(rawAddress)
	if err != nil {
		return nil, err
	}

	sess, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		sess = &Session{UserID: userID}
	}
	if sess.Address != address {
		sess.RemindedOn = ""
	}
	sess.Username = username
	sess.FirstName = firstName
	sess.Connected = true
	sess.Address = address
	sess.ConnectedAt = s.cal.Now().Unix()

	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("ошибка подключения кошелька: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"address": address,
	}).Info("Кошелёк подключён")

	rec, err := s.streaks.CheckStreakStatus(ctx, address, "")
	if err != nil {
		log.WithError(err).WithField("address", address).Warn("Проверка стрика при подключении не удалась")
		return s.streaks.LoadStreak(ctx, address), nil
	}
	return rec, nil
}

// Disconnect отключает кошелёк. Адрес остаётся как последний подключённый.
func (s *Service) Disconnect(ctx context.Context, userID int64) error {
	sess, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if sess == nil || !sess.Connected {
		return common.ErrNotConnected
	}
	sess.Connected = false
	if err := s.repo.Save(ctx, sess); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"address": sess.Address,
	}).Info("Кошелёк отключён")
	return nil
}

// Current возвращает активную сессию пользователя или common.ErrNotConnected.
func (s *Service) Current(ctx context.Context, userID int64) (*Session, error) {
	sess, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.Connected {
		return nil, common.ErrNotConnected
	}
	return sess, nil
}

// ResolveAddress выбирает адрес для команды: явный аргумент или подключённый кошелёк.
func (s *Service) ResolveAddress(ctx context.Context, userID int64, args []string) (string, error) {
	if len(args) > 0 {
		return common.ParseAddress(args[0])
	}
	sess, err := s.Current(ctx, userID)
	if err != nil {
		return "", err
	}
	return sess.Address, nil
}

// All возвращает все сессии, отсортированные по user ID.
func (s *Service) All(ctx context.Context) ([]*Session, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })
	return all, nil
}

// SendReminders напоминает о клейме тем, у кого серия под угрозой.
// Условия: уже reminderHour или позже, кошелёк подключён, серия > 0,
// сегодня клейма не было и напоминания ещё не было.
// Возвращает количество отправленных напоминаний.
func (s *Service) SendReminders(ctx context.Context, sender common.Sender, reminderHour int) (int, error) {
	now := s.cal.Now()
	if now.Hour() < reminderHour {
		return 0, nil
	}
	today := s.cal.Today()

	all, err := s.All(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, sess := range all {
		if !sess.Connected || sess.RemindedOn == today {
			continue
		}
		rec := s.streaks.LoadStreak(ctx, sess.Address)
		if rec.CurrentStreak == 0 || streak.HasLoggedInToday(rec.LastLoginDate, today) {
			continue
		}
		if !streak.IsStreakValid(rec.LastLoginDate, today) {
			continue
		}

		sender.Send(ctx, sess.UserID, fmt.Sprintf(
			"🔥 Не забудь про клейм!\n\n"+
				"Серия %s: %d %s. Если не заклеймить до полуночи, она сгорит.\n"+
				"Команда: /claim",
			common.ShortAddress(sess.Address), rec.CurrentStreak, common.PluralizeDays(rec.CurrentStreak),
		))

		sess.RemindedOn = today
		if err := s.repo.Save(ctx, sess); err != nil {
			log.WithError(err).WithField("user_id", sess.UserID).Warn("Отметка напоминания не сохранена")
		}
		sent++
	}

	if sent > 0 {
		log.WithField("sent", sent).Info("Напоминания о стрике отправлены")
	}
	return sent, nil
}
