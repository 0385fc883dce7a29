// Package common содержит общие утилиты, используемые во всём проекте.
// helpers.go отвечает за календарную арифметику: все сравнения дней идут
// по календарной дате в одном часовом поясе (APP_TIMEZONE).
package common

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout — формат календарной даты в хранилище.
const DateLayout = "2006-01-02"

// LoadLocation загружает часовой пояс по имени.
// Если не удалось — используем UTC+3 вручную, как и раньше для Москвы.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = "Europe/Moscow"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// Calendar знает текущее время и часовой пояс пользователя.
// Часы подменяются в тестах через now.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendar создаёт календарь. nil-параметры заменяются на Europe/Moscow и time.Now.
func NewCalendar(loc *time.Location, now func() time.Time) *Calendar {
	if loc == nil {
		loc = LoadLocation("")
	}
	if now == nil {
		now = time.Now
	}
	return &Calendar{loc: loc, now: now}
}

// Location возвращает часовой пояс календаря.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Now возвращает текущее время в часовом поясе календаря.
func (c *Calendar) Now() time.Time {
	return c.now().In(c.loc)
}

// Today возвращает сегодняшнюю дату в формате 2006-01-02.
func (c *Calendar) Today() string {
	return c.DateOf(c.now())
}

// DateOf возвращает календарную дату момента t (время суток отбрасывается).
func (c *Calendar) DateOf(t time.Time) string {
	return t.In(c.loc).Format(DateLayout)
}

// StartOfDay возвращает полночь того дня, в который попадает t.
func (c *Calendar) StartOfDay(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

// StartOfToday возвращает полночь сегодняшнего дня.
func (c *Calendar) StartOfToday() time.Time {
	return c.StartOfDay(c.now())
}

// DaysSince возвращает, сколько календарных дней прошло с даты date до сегодня.
func (c *Calendar) DaysSince(date string) (int, error) {
	return DaysBetween(date, c.Today())
}

// ParseDate разбирает календарную дату. Пустая строка — ошибка.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("пустая дата")
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("некорректная дата %q: %w", s, err)
	}
	return t, nil
}

// DaysBetween возвращает разницу to - from в календарных днях.
// Обе даты разбираются в UTC, поэтому переходы на летнее время не влияют.
func DaysBetween(from, to string) (int, error) {
	f, err := ParseDate(from)
	if err != nil {
		return 0, err
	}
	t, err := ParseDate(to)
	if err != nil {
		return 0, err
	}
	return int(t.Sub(f).Hours() / 24), nil
}

// AddDays сдвигает календарную дату на n дней.
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(DateLayout), nil
}

// FormatDateTime форматирует время как "02.01.2006 15:04" в поясе календаря.
func (c *Calendar) FormatDateTime(t time.Time) string {
	return t.In(c.loc).Format("02.01.2006 15:04")
}
