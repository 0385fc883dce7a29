package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Minute, func() time.Time { return now })

	assert.True(t, rl.Allow(1))
	assert.True(t, rl.Allow(1))
	assert.False(t, rl.Allow(1))
	// Другой пользователь считается отдельно
	assert.True(t, rl.Allow(2))

	now = now.Add(time.Minute + time.Second)
	assert.True(t, rl.Allow(1))
}

func TestRateLimiterSweep(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter(5, time.Minute, func() time.Time { return now })

	rl.Allow(1)
	now = now.Add(2 * time.Minute)
	rl.Allow(2)
	rl.sweep()

	assert.NotContains(t, rl.requests, int64(1))
	assert.Contains(t, rl.requests, int64(2))
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := newRateLimiter(0, time.Minute, time.Now)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow(1))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "абв", truncate("абв", 5))
	assert.Equal(t, "аб...", truncate("абвгд", 2))
}
