package dispatch

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"pollbot/internal/eventbus"
	"pollbot/internal/schedule"
	kit "pollbot/internal/transport"
	"pollbot/internal/transport/transporttest"
	logx "pollbot/pkg/logx"
)

var group = kit.ChatTarget{ChatID: -100123, ThreadID: 7}

func record(title string, opts ...string) schedule.Record {
	return schedule.Record{
		ID:        "fri_суббота",
		SendDay:   schedule.Fri,
		PollDay:   "суббота",
		Hour:      18,
		PollTitle: title,
		Options:   opts,
	}
}

func TestSendPoll(t *testing.T) {
	t.Parallel()
	ad := transporttest.New()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	d := New(Config{Target: group}, ad, logx.Nop(), bus)
	require.NoError(t, d.SendPoll(context.Background(), record("Сквош в субботу?", "Да", "Нет")))

	require.Len(t, ad.Polls, 1)
	got := ad.Polls[0]
	require.Equal(t, group.ChatID, got.Ref.ChatID)
	require.Equal(t, group.ThreadID, got.Ref.ThreadID)
	require.Equal(t, "Сквош в субботу?", got.Poll.Question)
	require.Equal(t, []string{"Да", "Нет"}, got.Poll.Options)
	require.False(t, got.Poll.Anonymous)

	ev := <-events
	require.Equal(t, eventbus.PollSent, ev.Type)
}

func TestSendPollDefaultQuestion(t *testing.T) {
	t.Parallel()
	ad := transporttest.New()
	d := New(Config{Target: group}, ad, logx.Nop(), nil)
	require.NoError(t, d.SendPoll(context.Background(), record("", "Да", "Нет")))
	require.Equal(t, "Poll for суббота?", ad.Polls[0].Poll.Question)
}

func TestSendPollTooFewOptions(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	ad := transporttest.New()
	d := New(Config{Target: group}, ad, logx.NewJSON(&buf, "debug"), nil)

	require.NoError(t, d.SendPoll(context.Background(), record("x", "Да")))
	require.Empty(t, ad.Polls)
	require.Contains(t, buf.String(), "not enough options")
	require.Contains(t, buf.String(), `"level":"warn"`)
}

func TestSendReminder(t *testing.T) {
	t.Parallel()
	ad := transporttest.New()
	d := New(Config{Target: group}, ad, logx.Nop(), nil)
	require.NoError(t, d.SendReminder(context.Background(), record("", "Да", "Нет")))

	sent, ok := ad.LastText()
	require.True(t, ok)
	require.Equal(t, DefaultReminderText, sent.Text)
	require.Equal(t, group.ChatID, sent.Ref.ChatID)

	d.Apply(Config{Target: group, ReminderText: "скоро опрос"})
	require.NoError(t, d.SendReminder(context.Background(), record("", "Да", "Нет")))
	sent, _ = ad.LastText()
	require.Equal(t, "скоро опрос", sent.Text)
}

func TestSendFailureIsReported(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	ad := transporttest.New()
	ad.Fail = true
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	d := New(Config{Target: group}, ad, logx.NewJSON(&buf, "debug"), bus)
	err := d.SendPoll(context.Background(), record("", "Да", "Нет"))
	require.ErrorIs(t, err, transporttest.ErrInjected)
	require.True(t, strings.Contains(buf.String(), "poll send failed"))

	ev := <-events
	require.Equal(t, eventbus.DispatchFailed, ev.Type)
	info, ok := ev.Data.(eventbus.DispatchInfo)
	require.True(t, ok)
	require.Equal(t, "poll", info.Action)
}
