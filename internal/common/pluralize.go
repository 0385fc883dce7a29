// Package common — pluralize.go содержит склонение русских числительных
// и человекочитаемые подписи вида «5 минут назад».
package common

import (
	"fmt"
	"strings"
	"time"
)

// pluralize выбирает форму слова для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → one (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 4, 22, 23, ...)
//   - Остальные случаи → many (0, 5-20, 25-30, 100, ...)
func pluralize(n int64, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizeDays возвращает правильную форму слова «день» для числа n.
func PluralizeDays(n int) string {
	return pluralize(int64(n), "день", "дня", "дней")
}

// PluralizeClaims возвращает правильную форму слова «клейм».
func PluralizeClaims(n int) string {
	return pluralize(int64(n), "клейм", "клейма", "клеймов")
}

// FormatTimeAgo возвращает относительную подпись времени t на момент now.
//
// Примеры:
//
//	3 секунды        → "только что"
//	42 секунды       → "42 секунды назад"
//	5 минут          → "5 минут назад"
//	2 часа           → "2 часа назад"
//	40 дней          → "1 месяц назад"
func FormatTimeAgo(now, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	seconds := int64(now.Sub(t) / time.Second)
	if seconds < 5 {
		return "только что"
	}
	if seconds < 60 {
		return fmt.Sprintf("%d %s назад", seconds, pluralize(seconds, "секунду", "секунды", "секунд"))
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%d %s назад", minutes, pluralize(minutes, "минуту", "минуты", "минут"))
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%d %s назад", hours, pluralize(hours, "час", "часа", "часов"))
	}

	days := hours / 24
	if days < 30 {
		return fmt.Sprintf("%d %s назад", days, pluralize(days, "день", "дня", "дней"))
	}

	months := days / 30
	if months < 12 {
		return fmt.Sprintf("%d %s назад", months, pluralize(months, "месяц", "месяца", "месяцев"))
	}

	years := months / 12
	return fmt.Sprintf("%d %s назад", years, pluralize(years, "год", "года", "лет"))
}

// FormatDuration форматирует оставшееся время как "5 ч 03 мин".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0 мин"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%d мин", m)
	}
	return fmt.Sprintf("%d ч %02d мин", h, m)
}

// ShortAddress сокращает адрес до вида 0x1234...abcd.
func ShortAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// NormalizeAddress приводит адрес к нижнему регистру без пробелов.
// Ключи в хранилище всегда строятся по нормализованному адресу.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
