// Package leaderboard — service.go содержит агрегатор рейтингов.
//
// Два представления:
//   - «сегодня»: первый клейм каждого адреса с полуночи, по событиям контракта
//     плюс оптимистичные локальные клеймы, ещё не попавшие в скан
//   - общий рейтинг: объединение стриков и истории клеймов
//
// Чтение из сети best-effort: при ошибке прошлые представления остаются,
// снимок помечается как устаревший.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/daily-login-bot/internal/chain"
	"serotonyl.ru/daily-login-bot/internal/common"
	"serotonyl.ru/daily-login-bot/internal/features/streak"
)

// DefaultTopN — размер общего рейтинга по умолчанию.
const DefaultTopN = 100

// EventSource — источник событий Login (клиент контракта).
type EventSource interface {
	QueryLoginEvents(ctx context.Context, lookbackBlocks uint64) ([]chain.LoginEvent, error)
}

// StreakReader — чтение стриков для рейтингов.
type StreakReader interface {
	LoadStreak(ctx context.Context, address string) *streak.Record
	All(ctx context.Context) (map[string]*streak.Record, error)
}

// Options — параметры агрегатора из конфига.
type Options struct {
	TopN          int    // Сколько строк в общем рейтинге
	TodayLookback uint64 // Окно скана для списка «сегодня», в блоках
	SyncLookback  uint64 // Окно полной пересинхронизации, в блоках
}

// Service — агрегатор рейтингов.
type Service struct {
	repo    *Repository
	streaks StreakReader
	events  EventSource
	cal     *common.Calendar
	opts    Options

	// recordMu сериализует read-modify-write истории
	recordMu sync.Mutex

	mu        sync.RWMutex
	todayDate string
	today     []ClaimerView
	leaders   []LeaderRow
	stale     bool
	updatedAt time.Time
}

// NewService создаёт агрегатор.
func NewService(repo *Repository, streaks StreakReader, events EventSource, cal *common.Calendar, opts Options) *Service {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	return &Service{
		repo:    repo,
		streaks: streaks,
		events:  events,
		cal:     cal,
		opts:    opts,
	}
}

// RecordClaim вливает клейм в историю адреса и сразу сохраняет.
// Повторная дата не увеличивает TotalClaims. Возвращает true, если дата новая.
func (s *Service) RecordClaim(ctx context.Context, address, date string, ts int64) (bool, error) {
	address = common.NormalizeAddress(address)
	if _, err := common.ParseDate(date); err != nil {
		return false, err
	}

	s.recordMu.Lock()
	defer s.recordMu.Unlock()

	rec, err := s.repo.Get(ctx, address)
	if err != nil {
		if !errors.Is(err, common.ErrStorageCorrupt) {
			return false, err
		}
		log.WithError(err).WithField("address", address).Warn("Повреждённая история восстановлена как пустая")
	}

	added := rec.AddClaim(date, ts)
	if !added && ts >= rec.FirstClaimDate && ts <= rec.LastClaimDate {
		return false, nil
	}
	rec.LastUpdated = s.cal.Now().Unix()

	if err := s.repo.Put(ctx, rec); err != nil {
		return false, err
	}
	return added, nil
}

// ComputeTodaysClaimers строит список «сегодня» из событий:
// окно [полночь, сейчас), первое событие адреса, стрик из хранилища
// (нет или 0 — показываем 1), сортировка по времени от новых к старым.
func (s *Service) ComputeTodaysClaimers(ctx context.Context, events []chain.LoginEvent) []ClaimerView {
	start := s.cal.StartOfToday().Unix()
	now := s.cal.Now()
	nowUnix := now.Unix()

	ordered := make([]chain.LoginEvent, 0, len(events))
	for _, ev := range events {
		if ev.Timestamp >= start && ev.Timestamp < nowUnix {
			ordered = append(ordered, ev)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Timestamp != ordered[j].Timestamp {
			return ordered[i].Timestamp < ordered[j].Timestamp
		}
		if ordered[i].Block != ordered[j].Block {
			return ordered[i].Block < ordered[j].Block
		}
		return ordered[i].LogIndex < ordered[j].LogIndex
	})

	seen := make(map[string]struct{}, len(ordered))
	views := make([]ClaimerView, 0, len(ordered))
	for _, ev := range ordered {
		address := common.NormalizeAddress(ev.Address)
		if _, ok := seen[address]; ok {
			continue
		}
		seen[address] = struct{}{}

		views = append(views, ClaimerView{
			Address:   address,
			Timestamp: ev.Timestamp,
			TimeAgo:   common.FormatTimeAgo(now, time.Unix(ev.Timestamp, 0)),
			Streak:    s.displayStreak(ctx, address),
			TxHash:    ev.TxHash,
			Block:     ev.Block,
		})
	}

	sortClaimers(views)
	return views
}

// displayStreak — стрик для списка «сегодня»: адрес сегодня клеймил, значит
// серия не меньше 1.
func (s *Service) displayStreak(ctx context.Context, address string) int {
	n := s.streaks.LoadStreak(ctx, address).CurrentStreak
	if n < 1 {
		return 1
	}
	return n
}

// ComputeAllTimeLeaders объединяет стрики и историю в общий рейтинг.
//
// Правила:
//   - адрес только со стриком попадает в рейтинг, если BestStreak > 0;
//     TotalClaims = max(CurrentStreak, 1)
//   - строки с BestStreak == 0 и TotalClaims == 0 отбрасываются
//   - сортировка: рекорд, текущая серия, число клеймов (всё по убыванию), адрес
//   - обрезка до TopN
func (s *Service) ComputeAllTimeLeaders(ctx context.Context) ([]LeaderRow, error) {
	streaks, err := s.streaks.All(ctx)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]LeaderRow, 0, len(history)+len(streaks))
	for address, hist := range history {
		row := LeaderRow{
			Address:       address,
			TotalClaims:   hist.TotalClaims,
			LastClaimDate: hist.LastClaimDate,
		}
		if st, ok := streaks[address]; ok {
			row.BestStreak = st.BestStreak
			row.CurrentStreak = st.CurrentStreak
		}
		rows = append(rows, row)
	}
	for address, st := range streaks {
		if _, ok := history[address]; ok {
			continue
		}
		if st.BestStreak <= 0 {
			continue
		}
		total := st.CurrentStreak
		if total < 1 {
			total = 1
		}
		rows = append(rows, LeaderRow{
			Address:       address,
			BestStreak:    st.BestStreak,
			CurrentStreak: st.CurrentStreak,
			TotalClaims:   total,
		})
	}

	filtered := rows[:0]
	for _, row := range rows {
		if row.BestStreak == 0 && row.TotalClaims == 0 {
			continue
		}
		row.IsActive = row.CurrentStreak > 0
		filtered = append(filtered, row)
	}

	SortLeaders(filtered)
	if len(filtered) > s.opts.TopN {
		filtered = filtered[:s.opts.TopN]
	}
	for i := range filtered {
		filtered[i].Rank = i + 1
	}
	return filtered, nil
}

// SortLeaders сортирует строки рейтинга: рекорд, текущая серия, клеймы по
// убыванию, при полном равенстве — адрес по возрастанию.
func SortLeaders(rows []LeaderRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.BestStreak != b.BestStreak {
			return a.BestStreak > b.BestStreak
		}
		if a.CurrentStreak != b.CurrentStreak {
			return a.CurrentStreak > b.CurrentStreak
		}
		if a.TotalClaims != b.TotalClaims {
			return a.TotalClaims > b.TotalClaims
		}
		return a.Address < b.Address
	})
}

func sortClaimers(views []ClaimerView) {
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].Timestamp != views[j].Timestamp {
			return views[i].Timestamp > views[j].Timestamp
		}
		return views[i].Address < views[j].Address
	})
}

// AddLocalClaim — оптимистичная вставка сразу после успешного клейма, до того
// как скан событий его увидит. Адрес не дублируется в списке «сегодня»:
// сохраняется первое время, стрик обновляется. История и общий рейтинг
// пересчитываются до возврата.
func (s *Service) AddLocalClaim(ctx context.Context, address string, info ClaimInfo) error {
	address = common.NormalizeAddress(address)
	if info.Timestamp <= 0 {
		info.Timestamp = s.cal.Now().Unix()
	}
	claimedAt := time.Unix(info.Timestamp, 0)

	_, recordErr := s.RecordClaim(ctx, address, s.cal.DateOf(claimedAt), info.Timestamp)
	if recordErr != nil {
		log.WithError(recordErr).WithField("address", address).Error("Локальный клейм не записан в историю")
	}

	view := ClaimerView{
		Address:   address,
		Timestamp: info.Timestamp,
		TimeAgo:   common.FormatTimeAgo(s.cal.Now(), claimedAt),
		Streak:    s.displayStreak(ctx, address),
		TxHash:    info.TxHash,
		Block:     info.Block,
	}

	s.mu.Lock()
	s.rollDayLocked()
	if s.cal.DateOf(claimedAt) == s.todayDate {
		s.today = mergeClaimers(s.today, []ClaimerView{view})
	}
	s.mu.Unlock()

	s.recomputeLeaders(ctx)
	return recordErr
}

// mergeClaimers объединяет списки «сегодня» по адресу: остаётся более раннее
// время, стрик берётся из incoming.
func mergeClaimers(current, incoming []ClaimerView) []ClaimerView {
	byAddress := make(map[string]int, len(current)+len(incoming))
	out := make([]ClaimerView, 0, len(current)+len(incoming))
	for _, v := range current {
		byAddress[v.Address] = len(out)
		out = append(out, v)
	}
	for _, v := range incoming {
		i, ok := byAddress[v.Address]
		if !ok {
			byAddress[v.Address] = len(out)
			out = append(out, v)
			continue
		}
		existing := out[i]
		if v.Timestamp < existing.Timestamp {
			existing.Timestamp = v.Timestamp
			existing.TimeAgo = v.TimeAgo
			existing.Block = v.Block
			existing.TxHash = v.TxHash
		}
		if existing.TxHash == "" {
			existing.TxHash = v.TxHash
		}
		existing.Streak = v.Streak
		out[i] = existing
	}
	sortClaimers(out)
	return out
}

// rollDayLocked сбрасывает список «сегодня» после полуночи. Вызывать под s.mu.
func (s *Service) rollDayLocked() {
	today := s.cal.Today()
	if s.todayDate != today {
		s.todayDate = today
		s.today = nil
	}
}

// RefreshToday сканирует события за TodayLookback блоков, записывает
// сегодняшние клеймы в историю и пересчитывает оба представления.
// При ошибке чтения прошлые представления не трогаются.
func (s *Service) RefreshToday(ctx context.Context) error {
	events, err := s.events.QueryLoginEvents(ctx, s.opts.TodayLookback)
	if err != nil {
		s.markStale()
		log.WithError(err).Warn("Список «сегодня» не обновлён, показываем прошлые данные")
		return fmt.Errorf("ошибка обновления списка за сегодня: %w", err)
	}

	views := s.ComputeTodaysClaimers(ctx, events)
	for _, v := range views {
		date := s.cal.DateOf(time.Unix(v.Timestamp, 0))
		if _, err := s.RecordClaim(ctx, v.Address, date, v.Timestamp); err != nil {
			log.WithError(err).WithField("address", v.Address).Warn("Клейм из события не записан в историю")
		}
	}

	s.mu.Lock()
	s.rollDayLocked()
	// Локальные клеймы, которых ещё нет в скане, остаются
	s.today = mergeClaimers(s.today, views)
	s.mu.Unlock()

	if s.recomputeLeaders(ctx) {
		s.markFresh()
	}

	log.WithFields(log.Fields{
		"events":   len(events),
		"today":    len(views),
		"lookback": s.opts.TodayLookback,
	}).Debug("Список «сегодня» обновлён")
	return nil
}

// Resync сканирует события за SyncLookback блоков и вливает каждый
// (адрес, дата) в историю. Только слияние: адрес, которого нет в окне скана,
// не теряет свои даты. Возвращает число новых дат.
func (s *Service) Resync(ctx context.Context) (int, error) {
	events, err := s.events.QueryLoginEvents(ctx, s.opts.SyncLookback)
	if err != nil {
		s.markStale()
		log.WithError(err).Warn("Пересинхронизация истории не удалась")
		return 0, fmt.Errorf("ошибка пересинхронизации: %w", err)
	}

	added := 0
	for _, ev := range events {
		date := s.cal.DateOf(time.Unix(ev.Timestamp, 0))
		isNew, err := s.RecordClaim(ctx, ev.Address, date, ev.Timestamp)
		if err != nil {
			log.WithError(err).WithField("address", ev.Address).Warn("Клейм из события не записан в историю")
			continue
		}
		if isNew {
			added++
		}
	}

	if s.recomputeLeaders(ctx) {
		s.markFresh()
	}

	log.WithFields(log.Fields{
		"events": len(events),
		"added":  added,
	}).Info("История клеймов пересинхронизирована")
	return added, nil
}

// RefreshLabels пересчитывает подписи «N минут назад» и сбрасывает список
// после полуночи.
func (s *Service) RefreshLabels() {
	now := s.cal.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollDayLocked()
	for i := range s.today {
		s.today[i].TimeAgo = common.FormatTimeAgo(now, time.Unix(s.today[i].Timestamp, 0))
	}
}

// Forget удаляет историю адреса и убирает его из представлений.
func (s *Service) Forget(ctx context.Context, address string) error {
	address = common.NormalizeAddress(address)

	s.recordMu.Lock()
	err := s.repo.Delete(ctx, address)
	s.recordMu.Unlock()
	if err != nil {
		return err
	}

	s.mu.Lock()
	kept := s.today[:0]
	for _, v := range s.today {
		if v.Address != address {
			kept = append(kept, v)
		}
	}
	s.today = kept
	s.mu.Unlock()

	s.recomputeLeaders(ctx)
	return nil
}

// recomputeLeaders пересчитывает общий рейтинг. При ошибке чтения
// хранилища прошлый рейтинг остаётся, снимок помечается устаревшим.
func (s *Service) recomputeLeaders(ctx context.Context) bool {
	leaders, err := s.ComputeAllTimeLeaders(ctx)
	if err != nil {
		log.WithError(err).Warn("Общий рейтинг не пересчитан, показываем прошлые данные")
		s.markStale()
		return false
	}

	s.mu.Lock()
	s.leaders = leaders
	s.mu.Unlock()
	return true
}

func (s *Service) markStale() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

func (s *Service) markFresh() {
	s.mu.Lock()
	s.stale = false
	s.updatedAt = s.cal.Now()
	s.mu.Unlock()
}

// TodaysClaimers возвращает копию списка «сегодня».
func (s *Service) TodaysClaimers() []ClaimerView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollDayLocked()
	out := make([]ClaimerView, len(s.today))
	copy(out, s.today)
	return out
}

// Leaders возвращает копию первых limit строк рейтинга (limit <= 0 — все).
func (s *Service) Leaders(limit int) []LeaderRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.leaders
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]LeaderRow, len(rows))
	copy(out, rows)
	return out
}

// Snapshot возвращает снимок для слоя представления. address может быть
// пустым: тогда поля стрика нулевые.
func (s *Service) Snapshot(ctx context.Context, address string) View {
	view := View{
		TodaysClaimers: s.TodaysClaimers(),
		AllTimeLeaders: s.Leaders(0),
	}

	s.mu.RLock()
	view.Stale = s.stale
	view.UpdatedAt = s.updatedAt
	s.mu.RUnlock()

	if address != "" {
		rec := s.streaks.LoadStreak(ctx, address)
		view.CurrentStreak = rec.CurrentStreak
		view.BestStreak = rec.BestStreak
	}
	return view
}
