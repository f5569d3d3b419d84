package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	kit "pollbot/internal/transport"
)

const (
	tgMessageLimit = 3500
	tgValueLimit   = 300
)

type tgItem struct {
	to   kit.ChatTarget
	text string
}

// telegramSink is a zerolog.LevelWriter that queues formatted records for a
// background sender. Records are dropped when the queue is full or the rate
// limit is exceeded; logging never blocks on Telegram.
type telegramSink struct {
	sender TextSender
	queue  chan tgItem

	mu       sync.Mutex
	chatID   int64
	threadID int
	minLevel zerolog.Level
	limiter  *rate.Limiter
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func newTelegramSink(sender TextSender) *telegramSink {
	return &telegramSink{
		sender:   sender,
		queue:    make(chan tgItem, 256),
		minLevel: zerolog.WarnLevel,
	}
}

func (t *telegramSink) configure(minLevel zerolog.Level, lim *rate.Limiter, threadID int) {
	t.mu.Lock()
	t.minLevel = minLevel
	t.limiter = lim
	if threadID != 0 {
		t.threadID = threadID
	}
	t.mu.Unlock()
}

func (t *telegramSink) setTarget(chatID int64, threadID int) {
	t.mu.Lock()
	t.chatID = chatID
	if threadID != 0 {
		t.threadID = threadID
	}
	t.mu.Unlock()
}

func (t *telegramSink) hasTarget() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chatID != 0
}

// start launches the sender once.
func (t *telegramSink) start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil || t.sender == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case it := <-t.queue:
				_, _ = t.sender.SendText(ctx, it.to, it.text, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
			}
		}
	}()
}

func (t *telegramSink) stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()
	if cancel != nil {
		cancel()
		t.wg.Wait()
	}
}

func (t *telegramSink) Write(p []byte) (int, error) {
	return t.WriteLevel(zerolog.NoLevel, p)
}

func (t *telegramSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	t.mu.Lock()
	to := kit.ChatTarget{ChatID: t.chatID, ThreadID: t.threadID}
	lim := t.limiter
	skip := to.ChatID == 0 || t.sender == nil || level < t.minLevel
	t.mu.Unlock()

	if skip || (lim != nil && !lim.Allow()) {
		return len(p), nil
	}
	if text := formatRecord(p); text != "" {
		select {
		case t.queue <- tgItem{to: to, text: text}:
		default:
		}
	}
	return len(p), nil
}

// formatRecord renders one zerolog JSON line as a Telegram HTML message:
// a level icon, the message in bold, then the fields sorted by key.
func formatRecord(p []byte) string {
	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(p), &m); err != nil {
		return html.EscapeString(clip(strings.TrimSpace(string(p)), tgMessageLimit))
	}

	lvl, _ := m[zerolog.LevelFieldName].(string)
	msg, _ := m[zerolog.MessageFieldName].(string)
	caller, _ := m[zerolog.CallerFieldName].(string)

	var b strings.Builder
	b.WriteString(levelIcon(lvl))
	b.WriteString(" <b>")
	b.WriteString(html.EscapeString(clip(msg, tgValueLimit)))
	b.WriteString("</b>")

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case zerolog.LevelFieldName, zerolog.MessageFieldName, zerolog.CallerFieldName, zerolog.TimestampFieldName:
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		line := fmt.Sprintf("\n<code>%s</code>: %s", html.EscapeString(k), html.EscapeString(clip(fmt.Sprint(m[k]), tgValueLimit)))
		if b.Len()+len(line) > tgMessageLimit {
			b.WriteString("\n…")
			break
		}
		b.WriteString(line)
	}
	if caller != "" {
		b.WriteString("\n<i>")
		b.WriteString(html.EscapeString(caller))
		b.WriteString("</i>")
	}
	return b.String()
}

func levelIcon(lvl string) string {
	switch lvl {
	case "error", "fatal", "panic":
		return "❌"
	case "warn":
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// clip cuts s to at most n bytes on a rune boundary.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s + "…"
}
