// Package leaderboard собирает рейтинги клеймеров: «сегодня» по событиям
// контракта и общий рейтинг по стрикам и истории клеймов.
// models.go описывает запись истории и производные представления.
package leaderboard

import (
	"encoding/json"
	"fmt"
	"time"

	"serotonyl.ru/daily-login-bot/internal/common"
)

// msThreshold — значения больше этого считаются миллисекундами.
// Ранние записи истории хранили время в миллисекундах.
const msThreshold = 1_000_000_000_000

// Record — история клеймов одного адреса.
// Инвариант: TotalClaims == len(ClaimDates), даты уникальны.
type Record struct {
	Address        string   `json:"address"`
	ClaimDates     []string `json:"claimDates"`     // Уникальные даты клеймов в порядке добавления
	TotalClaims    int      `json:"totalClaims"`    // Всегда пересчитывается как len(ClaimDates)
	FirstClaimDate int64    `json:"firstClaimDate"` // Unix-время самого раннего клейма
	LastClaimDate  int64    `json:"lastClaimDate"`  // Unix-время самого позднего клейма
	LastUpdated    int64    `json:"lastUpdated"`
}

// HasDate сообщает, есть ли дата в истории.
func (r *Record) HasDate(date string) bool {
	for _, d := range r.ClaimDates {
		if d == date {
			return true
		}
	}
	return false
}

// AddClaim вливает клейм в историю. Повторная дата не увеличивает счётчик.
// Возвращает true, если дата новая.
func (r *Record) AddClaim(date string, ts int64) bool {
	added := false
	if !r.HasDate(date) {
		r.ClaimDates = append(r.ClaimDates, date)
		added = true
	}
	r.TotalClaims = len(r.ClaimDates)

	if ts > 0 {
		if r.FirstClaimDate == 0 || ts < r.FirstClaimDate {
			r.FirstClaimDate = ts
		}
		if ts > r.LastClaimDate {
			r.LastClaimDate = ts
		}
	}
	return added
}

// ParseRecord разбирает запись истории. Дубликаты и некорректные даты
// отбрасываются, TotalClaims пересчитывается. Неразборчивый JSON или
// отрицательное время — common.ErrStorageCorrupt.
func ParseRecord(data []byte) (*Record, error) {
	var raw Record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageCorrupt, err)
	}
	if raw.FirstClaimDate < 0 || raw.LastClaimDate < 0 || raw.LastUpdated < 0 {
		return nil, fmt.Errorf("%w: отрицательное время", common.ErrStorageCorrupt)
	}

	rec := &Record{
		Address:        common.NormalizeAddress(raw.Address),
		ClaimDates:     make([]string, 0, len(raw.ClaimDates)),
		FirstClaimDate: toUnixSeconds(raw.FirstClaimDate),
		LastClaimDate:  toUnixSeconds(raw.LastClaimDate),
		LastUpdated:    toUnixSeconds(raw.LastUpdated),
	}
	seen := make(map[string]struct{}, len(raw.ClaimDates))
	for _, d := range raw.ClaimDates {
		if _, err := common.ParseDate(d); err != nil {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		rec.ClaimDates = append(rec.ClaimDates, d)
	}
	rec.TotalClaims = len(rec.ClaimDates)

	if rec.FirstClaimDate > rec.LastClaimDate && rec.LastClaimDate != 0 {
		rec.FirstClaimDate, rec.LastClaimDate = rec.LastClaimDate, rec.FirstClaimDate
	}
	return rec, nil
}

func toUnixSeconds(v int64) int64 {
	if v > msThreshold {
		return v / 1000
	}
	return v
}

// ClaimInfo — данные только что прошедшего клейма для оптимистичной вставки.
type ClaimInfo struct {
	Timestamp int64  // Unix-время клейма
	TxHash    string // Хэш транзакции, если известен
	Block     uint64
}

// ClaimerView — строка списка «сегодня». Не сохраняется.
type ClaimerView struct {
	Address   string `json:"address"`
	Timestamp int64  `json:"timestamp"`
	TimeAgo   string `json:"timeAgo"`
	Streak    int    `json:"streak"`
	TxHash    string `json:"txHash,omitempty"`
	Block     uint64 `json:"block,omitempty"`
}

// LeaderRow — строка общего рейтинга. Не сохраняется.
type LeaderRow struct {
	Rank          int    `json:"rank"`
	Address       string `json:"address"`
	BestStreak    int    `json:"bestStreak"`
	CurrentStreak int    `json:"currentStreak"`
	TotalClaims   int    `json:"totalClaims"`
	IsActive      bool   `json:"isActive"`
	LastClaimDate int64  `json:"lastClaimDate,omitempty"`
}

// View — снимок для слоя представления (бот и HTTP API). Только чтение.
type View struct {
	TodaysClaimers []ClaimerView `json:"todaysClaimers"`
	AllTimeLeaders []LeaderRow   `json:"allTimeLeaders"`
	CurrentStreak  int           `json:"currentStreak"`
	BestStreak     int           `json:"bestStreak"`
	Stale          bool          `json:"stale"`     // Последнее чтение из сети не удалось
	UpdatedAt      time.Time     `json:"updatedAt"` // Время последнего успешного обновления
}
