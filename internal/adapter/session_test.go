package adapter

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeSession records sends and scheduled timers. Timers run only when the
// test calls fire.
type fakeSession struct {
	symbol string
	now    time.Time
	sent   []json.RawMessage
	timers map[string]scheduled
}

type scheduled struct {
	d time.Duration
	f func()
}

func newFakeSession(symbol string) *fakeSession {
	return &fakeSession{
		symbol: symbol,
		now:    time.UnixMilli(1700000000000),
		timers: make(map[string]scheduled),
	}
}

func (s *fakeSession) Symbol() string { return s.symbol }

func (s *fakeSession) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.sent = append(s.sent, data)
	return nil
}

func (s *fakeSession) Schedule(name string, d time.Duration, f func()) {
	s.timers[name] = scheduled{d: d, f: f}
}

func (s *fakeSession) Now() time.Time { return s.now }

func (s *fakeSession) Logger() *slog.Logger { return slog.Default() }

// fire runs the named timer and removes it.
func (s *fakeSession) fire(t *testing.T, name string) {
	t.Helper()
	timer, ok := s.timers[name]
	require.True(t, ok, "timer %q not scheduled", name)
	delete(s.timers, name)
	timer.f()
}

// lastSent decodes the most recent message into a generic map.
func (s *fakeSession) lastSent(t *testing.T) map[string]any {
	t.Helper()
	require.NotEmpty(t, s.sent, "nothing sent")
	var m map[string]any
	require.NoError(t, json.Unmarshal(s.sent[len(s.sent)-1], &m))
	return m
}
