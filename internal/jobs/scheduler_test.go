package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/daily-login-bot/internal/common"
)

type fakeBoard struct {
	mu       sync.Mutex
	refresh  int
	labels   int
	resync   int
	resyncCh chan struct{}
	block    chan struct{}
}

func (b *fakeBoard) RefreshToday(context.Context) error {
	b.mu.Lock()
	b.refresh++
	b.mu.Unlock()
	return errors.New("rpc down")
}

func (b *fakeBoard) RefreshLabels() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.labels++
}

func (b *fakeBoard) Resync(context.Context) (int, error) {
	b.mu.Lock()
	b.resync++
	b.mu.Unlock()
	if b.resyncCh != nil {
		b.resyncCh <- struct{}{}
	}
	if b.block != nil {
		<-b.block
	}
	return 0, nil
}

type fakeStreaks struct{ calls int }

func (f *fakeStreaks) DecayAll(context.Context) (int, error) {
	f.calls++
	return 1, nil
}

type fakeReminders struct{ hour int }

func (f *fakeReminders) SendReminders(_ context.Context, _ common.Sender, hour int) (int, error) {
	f.hour = hour
	return 0, nil
}

type nopSender struct{}

func (nopSender) Send(context.Context, int64, string) {}

func TestStartRejectsBadSpec(t *testing.T) {
	s := NewScheduler(time.UTC, Schedule{Refresh: "not a spec"}, &fakeBoard{}, &fakeStreaks{}, &fakeReminders{}, nopSender{})
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh")
}

func TestJobsCallServices(t *testing.T) {
	ctx := context.Background()
	board := &fakeBoard{}
	streaks := &fakeStreaks{}
	reminders := &fakeReminders{}
	s := NewScheduler(time.UTC, Schedule{ReminderHour: 18}, board, streaks, reminders, nopSender{})

	// Ошибка обновления только логируется
	s.refresh(ctx)
	s.decay(ctx)
	s.remind(ctx)

	assert.Equal(t, 1, board.refresh)
	assert.Equal(t, 2, board.labels)
	assert.Equal(t, 1, streaks.calls)
	assert.Equal(t, 18, reminders.hour)
}

func TestRunSkipsOverlap(t *testing.T) {
	ctx := context.Background()
	board := &fakeBoard{resyncCh: make(chan struct{}), block: make(chan struct{})}
	s := NewScheduler(time.UTC, Schedule{}, board, &fakeStreaks{}, &fakeReminders{}, nopSender{})

	done := make(chan struct{})
	go func() {
		s.run(ctx, "resync", s.resync)
		close(done)
	}()
	<-board.resyncCh

	// Второй запуск, пока первый висит, пропускается
	s.run(ctx, "resync", s.resync)
	close(board.block)
	<-done

	assert.Equal(t, 1, board.resync)
}

func TestRunSkipsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	board := &fakeBoard{}
	s := NewScheduler(time.UTC, Schedule{}, board, &fakeStreaks{}, &fakeReminders{}, nopSender{})

	s.run(ctx, "resync", s.resync)
	assert.Equal(t, 0, board.resync)
}

func TestStopWaitsForInitialSync(t *testing.T) {
	board := &fakeBoard{resyncCh: make(chan struct{}), block: make(chan struct{})}
	s := NewScheduler(time.UTC, Schedule{}, board, &fakeStreaks{}, &fakeReminders{}, nopSender{})
	require.NoError(t, s.Start(context.Background()))
	<-board.resyncCh

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop вернулся до окончания начальной синхронизации")
	case <-time.After(50 * time.Millisecond):
	}

	close(board.block)
	<-stopped

	board.mu.Lock()
	defer board.mu.Unlock()
	assert.Equal(t, 1, board.resync)
	assert.Equal(t, 1, board.refresh)
}
