package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	kit "pollbot/internal/transport"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{" Debug ", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in, zerolog.InfoLevel); got != tc.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestJSONLoggerFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewJSON(&buf, "info").With(String("comp", "test"))
	log.Info("hello", Int("n", 2), Err(errors.New("bad")), Err(nil))
	log.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	require.Equal(t, "hello", rec["message"])
	require.Equal(t, "test", rec["comp"])
	require.Equal(t, float64(2), rec["n"])
	require.Equal(t, "bad", rec["err"])
	require.True(t, strings.HasPrefix(rec["caller"].(string), "logx_test.go:"), rec["caller"])
	require.False(t, log.Enabled(LevelDebug))
}

func TestNopAndZero(t *testing.T) {
	t.Parallel()
	var zero Logger
	require.True(t, zero.IsZero())
	require.False(t, Nop().IsZero())
	zero.Info("dropped")
	Nop().Error("dropped")
}

func TestFormatRecord(t *testing.T) {
	t.Parallel()
	got := formatRecord([]byte(`{"level":"warn","time":"x","caller":"a.go:1","message":"send <poll>","z":"2","a":1}`))
	require.Equal(t, "⚠️ <b>send &lt;poll&gt;</b>\n<code>a</code>: 1\n<code>z</code>: 2\n<i>a.go:1</i>", got)

	require.Equal(t, "plain &amp; text", formatRecord([]byte("  plain & text  ")))
	require.True(t, strings.HasPrefix(formatRecord([]byte(`{"level":"error","message":"x"}`)), "❌"))
}

func TestClip(t *testing.T) {
	t.Parallel()
	require.Equal(t, "abc", clip("abc", 5))
	require.Equal(t, "ab…", clip("abcdef", 2))
	// "пт" is two 2-byte runes; a 3-byte cut keeps only the first.
	require.Equal(t, "п…", clip("пт", 3))
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	to   []kit.ChatTarget
	opts []*kit.SendOptions
}

func (f *fakeSender) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	f.to = append(f.to, to)
	f.opts = append(f.opts, opt)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestTelegramSinkForwardsAboveMinLevel(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	cfg := Config{
		Level:    "debug",
		Telegram: TelegramConfig{MinLevel: "warn", RatePerSec: 100},
	}
	svc, log := New(cfg, sender)
	defer func() { _ = svc.Close() }()

	svc.SetTelegramTarget(-100, 5)
	cfg.Telegram.Enabled = true
	svc.Apply(cfg)

	log.Info("quiet")
	log.Warn("poll failed", String("record", "fri_суббота"))

	require.Eventually(t, func() bool { return sender.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.True(t, strings.HasPrefix(sender.sent[0], "⚠️ <b>poll failed</b>"), sender.sent[0])
	require.Contains(t, sender.sent[0], "<code>record</code>: fri_суббота")
	require.Equal(t, kit.ChatTarget{ChatID: -100, ThreadID: 5}, sender.to[0])
	require.Equal(t, "HTML", sender.opts[0].ParseMode)
}

func TestTelegramSinkWithoutTargetDrops(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	svc, log := New(Config{Telegram: TelegramConfig{Enabled: true}}, sender)
	log.Error("nowhere to go")
	require.NoError(t, svc.Close())
	require.Zero(t, sender.count())
}
