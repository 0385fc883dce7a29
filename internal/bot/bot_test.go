package bot

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	p := NewCommandParser("@Daily_Login_Bot")

	cases := []struct {
		text  string
		cmd   string
		args  []string
		isCmd bool
	}{
		{"/streak", "streak", []string{}, true},
		{"  /Streak 0xabc  ", "streak", []string{"0xabc"}, true},
		{"!топ 20", "топ", []string{"20"}, true},
		{".today", "today", []string{}, true},
		{"/top@daily_login_bot 5", "top", []string{"5"}, true},
		{"/top@other_bot 5", "", nil, false},
		{"/", "", nil, false},
		{"/@daily_login_bot", "", nil, false},
		{"привет", "", nil, false},
		{"", "", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			cmd, args, ok := p.ParseCommand(tc.text)
			assert.Equal(t, tc.isCmd, ok)
			assert.Equal(t, tc.cmd, cmd)
			assert.Equal(t, tc.args, args)
		})
	}
}

func TestParseCommandWithoutUsername(t *testing.T) {
	p := NewCommandParser("")
	cmd, _, ok := p.ParseCommand("/top@any_bot")
	assert.True(t, ok)
	assert.Equal(t, "top", cmd)
}

func TestDrainWaitsForHandlers(t *testing.T) {
	b := &Bot{inflight: make(chan struct{}, 3)}

	var finished atomic.Int32
	for i := 0; i < 2; i++ {
		b.inflight <- struct{}{}
		go func() {
			defer func() { <-b.inflight }()
			time.Sleep(20 * time.Millisecond)
			finished.Add(1)
		}()
	}

	b.drain()
	assert.Equal(t, int32(2), finished.Load())
	assert.Len(t, b.inflight, 0)
}
