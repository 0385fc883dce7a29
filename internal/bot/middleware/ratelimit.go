package middleware

import (
	"sync"
	"time"
)

// RateLimiter ограничивает количество команд на пользователя
// скользящим окном: не больше limit отметок за window.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[int64][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter создаёт лимитер и запускает фоновую очистку.
// limit <= 0 отключает ограничение.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := newRateLimiter(limit, window, time.Now)
	go rl.cleanup()
	return rl
}

func newRateLimiter(limit int, window time.Duration, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		requests: make(map[int64][]time.Time),
		limit:    limit,
		window:   window,
		now:      now,
		stopCh:   make(chan struct{}),
	}
}

// Close останавливает фоновую горутину очистки.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow отмечает запрос пользователя и сообщает, укладывается ли он в лимит.
// Отклонённый запрос не продлевает окно.
func (rl *RateLimiter) Allow(userID int64) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := prune(rl.requests[userID], now.Add(-rl.window))
	if len(recent) >= rl.limit {
		rl.requests[userID] = recent
		return false
	}
	rl.requests[userID] = append(recent, now)
	return true
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// sweep удаляет пользователей без запросов в текущем окне.
func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for userID, times := range rl.requests {
		recent := prune(times, cutoff)
		if len(recent) == 0 {
			delete(rl.requests, userID)
		} else {
			rl.requests[userID] = recent
		}
	}
}

// prune оставляет отметки позже cutoff. Отметки идут по возрастанию.
func prune(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}
