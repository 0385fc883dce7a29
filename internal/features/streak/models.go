// Package streak управляет ежедневными сериями клеймов по адресам кошельков.
// models.go описывает запись стрика и её разбор из хранилища.
package streak

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"serotonyl.ru/daily-login-bot/internal/common"
)

// Record — запись стрика одного адреса.
// Инвариант после любого обновления: BestStreak >= CurrentStreak.
type Record struct {
	CurrentStreak int    `json:"currentStreak"` // Текущая серия (дней подряд)
	BestStreak    int    `json:"bestStreak"`    // Личный рекорд
	LastLoginDate string `json:"lastLoginDate"` // Дата последнего засчитанного клейма, 2006-01-02
}

// IsZero сообщает, что у адреса ещё не было ни одного клейма.
func (r *Record) IsZero() bool {
	return r.CurrentStreak == 0 && r.BestStreak == 0 && r.LastLoginDate == ""
}

// rawRecord принимает и числа, и строки с числами: старые записи
// сохранялись без строгой схемы.
type rawRecord struct {
	CurrentStreak json.RawMessage `json:"currentStreak"`
	BestStreak    json.RawMessage `json:"bestStreak"`
	LastLoginDate *string         `json:"lastLoginDate"`
}

// ParseRecord разбирает запись стрика. Любая ошибка оборачивает
// common.ErrStorageCorrupt; вызывающий код восстанавливает пустую запись.
func ParseRecord(data []byte) (*Record, error) {
	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageCorrupt, err)
	}

	current, err := parseCount(raw.CurrentStreak)
	if err != nil {
		return nil, fmt.Errorf("%w: currentStreak: %v", common.ErrStorageCorrupt, err)
	}
	best, err := parseCount(raw.BestStreak)
	if err != nil {
		return nil, fmt.Errorf("%w: bestStreak: %v", common.ErrStorageCorrupt, err)
	}

	rec := &Record{CurrentStreak: current, BestStreak: best}
	if raw.LastLoginDate != nil && *raw.LastLoginDate != "" {
		if _, err := common.ParseDate(*raw.LastLoginDate); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrStorageCorrupt, err)
		}
		rec.LastLoginDate = *raw.LastLoginDate
	}

	if rec.BestStreak < rec.CurrentStreak {
		rec.BestStreak = rec.CurrentStreak
	}
	return rec, nil
}

// parseCount читает неотрицательное целое из числа или строки.
func parseCount(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}

	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("не число: %s", raw)
		}
		n, err = strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("не число: %q", s)
		}
	}
	if n < 0 {
		return 0, fmt.Errorf("отрицательное значение %d", n)
	}
	return n, nil
}
