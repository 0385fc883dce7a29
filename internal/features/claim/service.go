// Package claim — service.go содержит сам поток клейма.
package claim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/daily-login-bot/internal/chain"
	"serotonyl.ru/daily-login-bot/internal/common"
	"serotonyl.ru/daily-login-bot/internal/features/leaderboard"
	"serotonyl.ru/daily-login-bot/internal/features/streak"
)

// ErrClaimInProgress — по адресу уже идёт клейм.
var ErrClaimInProgress = errors.New("клейм уже выполняется, дождитесь результата")

// persistTimeout ограничивает запись стрика и истории после подтверждённой транзакции.
const persistTimeout = 10 * time.Second

// Chain — операции контракта, нужные клейму. *chain.Client подходит.
type Chain interface {
	CanSign(address string) bool
	GetLastClaimTimestamp(ctx context.Context, address string) (int64, error)
	SubmitDailyClaim(ctx context.Context, address string) (string, error)
}

// Service выполняет клеймы.
type Service struct {
	chain   Chain
	streaks *streak.Service
	board   *leaderboard.Service
	cal     *common.Calendar

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewService создаёт сервис клейма.
func NewService(ch Chain, streaks *streak.Service, board *leaderboard.Service, cal *common.Calendar) *Service {
	return &Service{
		chain:    ch,
		streaks:  streaks,
		board:    board,
		cal:      cal,
		inflight: make(map[string]struct{}),
	}
}

// CanClaim сообщает, есть ли у процесса ключ для адреса.
func (s *Service) CanClaim(address string) bool {
	return s.chain.CanSign(common.NormalizeAddress(address))
}

// Claim выполняет ежедневный клейм адреса.
//
// Шаги:
//  1. Нет ключа — common.ErrWalletUnavailable
//  2. По lastLoginTs проверяем 24-часовой интервал, чтобы не тратить газ
//  3. Отправляем транзакцию и ждём квитанцию
//  4. Обновляем стрик
//  5. Оптимистично добавляем клейм в рейтинги
//
// Ошибки сети после успешной транзакции только логируются: клейм уже в цепочке.
func (s *Service) Claim(ctx context.Context, address string) (*Result, error) {
	address = common.NormalizeAddress(address)
	if !s.chain.CanSign(address) {
		return nil, common.ErrWalletUnavailable
	}

	if !s.begin(address) {
		return nil, ErrClaimInProgress
	}
	defer s.end(address)

	logger := log.WithField("address", address)

	// Шаг 2: предварительная проверка интервала
	last, err := s.chain.GetLastClaimTimestamp(ctx, address)
	if err != nil {
		logger.WithError(err).Warn("lastLoginTs не прочитан, решение за контрактом")
	} else if next := chain.NextClaimTime(last); !next.IsZero() && s.cal.Now().Before(next) {
		return nil, common.NewClaimError(common.ClaimAlreadyClaimedToday,
			fmt.Errorf("next claim at %s", s.cal.FormatDateTime(next)))
	}

	stored := s.streaks.LoadStreak(ctx, address)

	// Шаг 3
	txHash, err := s.chain.SubmitDailyClaim(ctx, address)
	if err != nil {
		if errors.Is(err, common.ErrWalletUnavailable) {
			return nil, err
		}
		ce := chain.ClassifyClaimError(err)
		logger.WithError(err).WithField("kind", ce.Kind.String()).Warn("Клейм не прошёл")
		return nil, ce
	}
	claimedAt := s.cal.Now()

	// Транзакция уже в цепочке: сохраняем результат даже при остановке процесса
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	// Шаг 4
	current, err := s.streaks.UpdateStreak(persistCtx, address, stored.LastLoginDate)
	if err != nil {
		logger.WithError(err).Error("Клейм прошёл, но стрик не сохранён")
		current = stored.CurrentStreak
	}

	// Шаг 5
	if err := s.board.AddLocalClaim(persistCtx, address, leaderboard.ClaimInfo{
		Timestamp: claimedAt.Unix(),
		TxHash:    txHash,
	}); err != nil {
		logger.WithError(err).Error("Клейм прошёл, но история не сохранена")
	}

	rec := s.streaks.LoadStreak(persistCtx, address)
	best := rec.BestStreak
	if best < current {
		best = current
	}

	logger.WithFields(log.Fields{
		"tx":     txHash,
		"streak": current,
	}).Info("Ежедневный клейм выполнен")

	return &Result{
		TxHash:        txHash,
		CurrentStreak: current,
		BestStreak:    best,
		ClaimedAt:     claimedAt,
	}, nil
}

// LastClaim возвращает время последнего клейма адреса и когда можно следующий.
func (s *Service) LastClaim(ctx context.Context, address string) (*LastClaimInfo, error) {
	address = common.NormalizeAddress(address)
	last, err := s.chain.GetLastClaimTimestamp(ctx, address)
	if err != nil {
		return nil, err
	}

	now := s.cal.Now()
	info := &LastClaimInfo{Address: address, CanClaim: true}
	if last <= 0 {
		return info, nil
	}

	info.LastClaimAt = time.Unix(last, 0).In(s.cal.Location())
	info.TimeAgo = common.FormatTimeAgo(now, info.LastClaimAt)
	info.NextClaimAt = chain.NextClaimTime(last).In(s.cal.Location())
	if now.Before(info.NextClaimAt) {
		info.CanClaim = false
		info.Wait = info.NextClaimAt.Sub(now)
	}
	return info, nil
}

func (s *Service) begin(address string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[address]; busy {
		return false
	}
	s.inflight[address] = struct{}{}
	return true
}

func (s *Service) end(address string) {
	s.mu.Lock()
	delete(s.inflight, address)
	s.mu.Unlock()
}
