package dialog

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"pollbot/internal/eventbus"
	"pollbot/internal/schedule"
	kit "pollbot/internal/transport"
	"pollbot/internal/transport/transporttest"
	logx "pollbot/pkg/logx"
	"pollbot/pkg/tgui"
)

type memBackend struct {
	mu     sync.Mutex
	recs   []schedule.Record
	writes int
}

func (b *memBackend) ReadSchedules(context.Context) ([]schedule.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]schedule.Record(nil), b.recs...), nil
}

func (b *memBackend) WriteSchedules(_ context.Context, recs []schedule.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recs = append([]schedule.Record(nil), recs...)
	b.writes++
	return nil
}

type harness struct {
	t       *testing.T
	ad      *transporttest.Adapter
	backend *memBackend
	store   *schedule.Store
	m       *Manager
	chat    kit.ChatTarget
	user    int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ad := transporttest.New()
	backend := &memBackend{}
	store := schedule.NewStore(backend, logx.Nop())
	return &harness{
		t:       t,
		ad:      ad,
		backend: backend,
		store:   store,
		m:       NewManager(Config{}, store, ad, logx.Nop(), eventbus.New()),
		chat:    kit.ChatTarget{ChatID: -100500, ThreadID: 3},
		user:    42,
	}
}

// screen returns the text and keyboard currently shown on the prompt.
func (h *harness) screen() (string, *tele.ReplyMarkup) {
	h.t.Helper()
	last, ok := h.ad.Last()
	if !ok {
		h.t.Fatal("nothing rendered")
	}
	text, opt := last.Text, last.Opt
	if opt == nil {
		return text, nil
	}
	rm, _ := opt.ReplyMarkupAdapter.(*tele.ReplyMarkup)
	return text, rm
}

// token finds the button whose label starts with label.
func (h *harness) token(label string) string {
	h.t.Helper()
	_, rm := h.screen()
	require.NotNil(h.t, rm, "no keyboard on screen")
	for _, row := range rm.InlineKeyboard {
		for _, b := range row {
			if strings.HasPrefix(b.Text, label) {
				p, a, tok, ok := tgui.ParseData(b.Data)
				require.True(h.t, ok)
				require.Equal(h.t, CallbackPrefix, p)
				require.Equal(h.t, CallbackAction, a)
				require.True(h.t, tgui.Fits(b.Data), "callback data too long: %q", b.Data)
				return tok
			}
		}
	}
	h.t.Fatalf("button %q not found", label)
	return ""
}

func (h *harness) press(label string) string {
	h.t.Helper()
	toast, err := h.m.HandleCallback(context.Background(), h.chat, h.user, h.token(label))
	require.NoError(h.t, err)
	return toast
}

func (h *harness) send(text string) bool {
	h.t.Helper()
	handled, err := h.m.HandleText(context.Background(), h.chat, h.user, text)
	require.NoError(h.t, err)
	return handled
}

func (h *harness) state() State {
	s, ok := h.m.Sessions().Get(Key{ChatID: h.chat.ChatID, UserID: h.user})
	require.True(h.t, ok, "no session")
	return s.State()
}

func (h *harness) runToOptions(title string) {
	h.t.Helper()
	require.NoError(h.t, h.m.Start(context.Background(), h.chat, h.user))
	require.Empty(h.t, h.press("Пт"))
	require.Empty(h.t, h.press("суббота"))
	require.Empty(h.t, h.press("18"))
	require.Empty(h.t, h.press("18:00"))
	require.True(h.t, h.send(title))
	require.Equal(h.t, StateOptions, h.state())
}

func TestDialogCommit(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.runToOptions("Сквош в субботу?")

	// A single option loops back with an error and writes nothing.
	require.True(t, h.send("Да"))
	require.Equal(t, StateOptions, h.state())
	require.Zero(t, h.backend.writes)
	text, _ := h.screen()
	require.Contains(t, text, "минимум два варианта")

	require.True(t, h.send("Да; Нет"))
	require.False(t, h.m.Active(h.chat.ChatID, h.user))
	require.Equal(t, 1, h.backend.writes)

	recs := h.store.Load(context.Background())
	require.Len(t, recs, 1)
	require.Equal(t, schedule.Record{
		ID:        "fri_суббота",
		SendDay:   schedule.Fri,
		PollDay:   "суббота",
		Hour:      18,
		Minute:    0,
		PollTitle: "Сквош в субботу?",
		Options:   []string{"Да", "Нет"},
	}, recs[0])

	text, _ = h.screen()
	require.Contains(t, text, "Расписание сохранено")
	require.Contains(t, text, "17:55")

	// Every prompt after the first was an edit of the same message.
	first := h.ad.Texts[0].Ref
	for _, e := range h.ad.Edits {
		require.Equal(t, first, e.Ref)
	}
	require.Len(t, h.ad.Texts, 1)
}

func TestDialogOverwrite(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.runToOptions("Первый")
	require.True(t, h.send("Да; Нет"))
	h.runToOptions("Второй")
	require.True(t, h.send("Иду; Не иду"))

	recs := h.store.Load(context.Background())
	require.Len(t, recs, 1)
	require.Equal(t, "Второй", recs[0].PollTitle)
	require.Equal(t, []string{"Иду", "Не иду"}, recs[0].Options)
}

func TestDialogNavigation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.NoError(t, h.m.Start(context.Background(), h.chat, h.user))
	h.press("Пт")
	h.press("суббота")
	h.press("18")
	require.Equal(t, StateMinute, h.state())

	h.press("🕐")
	require.Equal(t, StateHour, h.state())
	h.press("19")
	h.press("19:30")
	require.Equal(t, StateTitle, h.state())

	h.press("⬅️")
	require.Equal(t, StateMinute, h.state())
	h.press("19:45")
	h.press("Без заголовка")
	require.Equal(t, StateOptions, h.state())

	require.True(t, h.send("Да;Нет;Резерв"))
	recs := h.store.Load(context.Background())
	require.Len(t, recs, 1)
	require.Equal(t, 19, recs[0].Hour)
	require.Equal(t, 45, recs[0].Minute)
	require.Equal(t, "Poll for суббота?", recs[0].PollTitle)
}

func TestDialogZeroConfigOffersDefaultHours(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.NoError(t, h.m.Start(context.Background(), h.chat, h.user))
	h.press("Пт")
	h.press("суббота")
	require.Equal(t, StateHour, h.state())

	_, rm := h.screen()
	var hours []string
	for _, row := range rm.InlineKeyboard {
		for _, b := range row {
			if len(b.Text) == 2 {
				hours = append(hours, b.Text)
			}
		}
	}
	require.Len(t, hours, 12)
	require.Equal(t, "10", hours[0])
	require.Equal(t, "21", hours[11])
}

func TestDialogDefaultOptions(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.runToOptions("Сквош в субботу?")
	require.Empty(t, h.press("Стандартные"))
	require.False(t, h.m.Active(h.chat.ChatID, h.user))

	recs := h.store.Load(context.Background())
	require.Len(t, recs, 1)
	require.Equal(t, schedule.DefaultOptions(), recs[0].Options)
	require.Equal(t, "Сквош в субботу?", recs[0].PollTitle)
}

func TestDialogStaleAndForeignButtons(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.NoError(t, h.m.Start(context.Background(), h.chat, h.user))
	old := h.token("Пт")

	// Restart replaces the session; old buttons stop working.
	h.press("Пт")
	h.press("🔄")
	require.Equal(t, StateSendDay, h.state())
	toast, err := h.m.HandleCallback(context.Background(), h.chat, h.user, old)
	require.NoError(t, err)
	require.Equal(t, ToastExpired, toast)
	require.Equal(t, StateSendDay, h.state())

	// Another user cannot drive this session.
	toast, err = h.m.HandleCallback(context.Background(), h.chat, 777, h.token("Пн"))
	require.NoError(t, err)
	require.Equal(t, ToastExpired, toast)
	require.Equal(t, StateSendDay, h.state())

	toast, err = h.m.HandleCallback(context.Background(), h.chat, h.user, "~unknown")
	require.NoError(t, err)
	require.Equal(t, ToastExpired, toast)
}

func TestDialogCancel(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.runToOptions("Сквош")
	h.press("✖️")
	require.False(t, h.m.Active(h.chat.ChatID, h.user))
	text, rm := h.screen()
	require.Contains(t, text, "отменена")
	require.Nil(t, rm)
	require.Zero(t, h.backend.writes)

	require.False(t, h.send("Да; Нет"))
}

func TestDialogTextOutsideTextSteps(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.False(t, h.send("просто сообщение"))

	require.NoError(t, h.m.Start(context.Background(), h.chat, h.user))
	require.False(t, h.m.WantsText(h.chat.ChatID, h.user))
	require.False(t, h.send("просто сообщение"))
	require.Equal(t, StateSendDay, h.state())
}
