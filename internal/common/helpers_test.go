package common

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedCalendar(t *testing.T, value string) *Calendar {
	t.Helper()
	loc := LoadLocation("Europe/Moscow")
	now, err := time.ParseInLocation("2006-01-02 15:04:05", value, loc)
	require.NoError(t, err)
	return NewCalendar(loc, func() time.Time { return now })
}

func TestCalendarToday(t *testing.T) {
	t.Run("late evening stays on the same local day", func(t *testing.T) {
		cal := fixedCalendar(t, "2024-01-01 23:59:00")
		assert.Equal(t, "2024-01-01", cal.Today())
	})

	t.Run("utc midnight is already next local day in moscow", func(t *testing.T) {
		loc := LoadLocation("Europe/Moscow")
		utc := time.Date(2024, 1, 1, 22, 30, 0, 0, time.UTC)
		cal := NewCalendar(loc, func() time.Time { return utc })
		assert.Equal(t, "2024-01-02", cal.Today())
	})

	t.Run("start of today is local midnight", func(t *testing.T) {
		cal := fixedCalendar(t, "2024-03-10 14:00:00")
		start := cal.StartOfToday()
		assert.Equal(t, 0, start.Hour())
		assert.Equal(t, "2024-03-10", cal.DateOf(start))
	})
}

func TestDaysBetween(t *testing.T) {
	days, err := DaysBetween("2024-02-28", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, 2, days)

	days, err = DaysBetween("2024-01-05", "2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, 0, days)

	_, err = DaysBetween("not-a-date", "2024-01-05")
	assert.Error(t, err)

	_, err = DaysBetween("", "2024-01-05")
	assert.Error(t, err)
}

func TestAddDays(t *testing.T) {
	d, err := AddDays("2024-12-31", 1)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01", d)

	d, err = AddDays("2024-03-01", -1)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d)
}

func TestFormatTimeAgo(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		ago  time.Duration
		want string
	}{
		{2 * time.Second, "только что"},
		{42 * time.Second, "42 секунды назад"},
		{1 * time.Minute, "1 минуту назад"},
		{5 * time.Minute, "5 минут назад"},
		{2 * time.Hour, "2 часа назад"},
		{21 * time.Hour, "21 час назад"},
		{3 * 24 * time.Hour, "3 дня назад"},
		{40 * 24 * time.Hour, "1 месяц назад"},
		{800 * 24 * time.Hour, "2 года назад"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatTimeAgo(now, now.Add(-tc.ago)))
	}
	assert.Equal(t, "", FormatTimeAgo(now, time.Time{}))
}

func TestPluralizeDays(t *testing.T) {
	assert.Equal(t, "день", PluralizeDays(1))
	assert.Equal(t, "дня", PluralizeDays(3))
	assert.Equal(t, "дней", PluralizeDays(11))
	assert.Equal(t, "день", PluralizeDays(21))
	assert.Equal(t, "дней", PluralizeDays(0))
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("  0xE6466700214a9cc8b76653af4a1D99ECE009645d ")
	require.NoError(t, err)
	assert.Equal(t, "0xe6466700214a9cc8b76653af4a1d99ece009645d", addr)

	_, err = ParseAddress("E6466700214a9cc8b76653af4a1D99ECE009645d")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = ParseAddress("0x1234")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestClaimError(t *testing.T) {
	inner := errors.New("execution reverted: already logged in")
	err := NewClaimError(ClaimAlreadyClaimedToday, inner)

	ce, ok := AsClaimError(err)
	require.True(t, ok)
	assert.Equal(t, ClaimAlreadyClaimedToday, ce.Kind)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "already_claimed_today")

	messages := map[string]bool{}
	for _, kind := range []ClaimErrorKind{
		ClaimUnknown, ClaimAlreadyClaimedToday, ClaimUserRejected,
		ClaimInsufficientFunds, ClaimNetworkMismatch,
	} {
		messages[NewClaimError(kind, nil).UserMessage()] = true
	}
	assert.Len(t, messages, 5)
}
