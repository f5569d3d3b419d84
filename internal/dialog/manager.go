package dialog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"pollbot/internal/eventbus"
	"pollbot/internal/schedule"
	kit "pollbot/internal/transport"
	logx "pollbot/pkg/logx"
	"pollbot/pkg/tgui"
)

// CallbackPrefix and CallbackAction address dialog buttons in the router.
const (
	CallbackPrefix = "dlg"
	CallbackAction = "t"
)

// Toast texts shown on callback answers.
const (
	ToastExpired = "Кнопка устарела. Начните заново: /set_days"
)

// Store is where committed records go.
type Store interface {
	ReplaceAll(ctx context.Context, id string, rec *schedule.Record) error
}

type Config struct {
	Policy     Policy
	SessionTTL time.Duration // idle sessions older than this are dropped
	TokenTTL   time.Duration
}

const (
	DefaultSessionTTL = time.Hour
	DefaultTokenTTL   = 30 * time.Minute
)

type Manager struct {
	mu  sync.RWMutex
	cfg Config

	store    Store
	adapter  kit.Adapter
	sessions *Sessions
	tokens   *tgui.TokenStore
	log      logx.Logger
	bus      eventbus.Bus

	newID func() string
}

func NewManager(cfg Config, store Store, adapter kit.Adapter, log logx.Logger, bus eventbus.Bus) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = withDefaults(cfg)
	return &Manager{
		cfg:      cfg,
		store:    store,
		adapter:  adapter,
		sessions: NewSessions(),
		tokens:   tgui.NewTokenStore().WithTTL(cfg.TokenTTL),
		log:      log,
		bus:      bus,
		newID:    uuid.NewString,
	}
}

func withDefaults(cfg Config) Config {
	cfg.Policy = cfg.Policy.normalized()
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	return cfg
}

// Apply swaps the policy for sessions started afterwards.
func (m *Manager) Apply(cfg Config) {
	cfg = withDefaults(cfg)
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	m.tokens.WithTTL(cfg.TokenTTL)
}

func (m *Manager) config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Sessions exposes the live table.
func (m *Manager) Sessions() *Sessions { return m.sessions }

// Active reports whether userID has a running session in chatID.
func (m *Manager) Active(chatID, userID int64) bool {
	_, ok := m.sessions.Get(Key{ChatID: chatID, UserID: userID})
	return ok
}

// Start opens a new session for userID, replacing any previous one, and
// sends the first prompt.
func (m *Manager) Start(ctx context.Context, chat kit.ChatTarget, userID int64) error {
	cfg := m.config()
	if n := m.sessions.Prune(time.Now().Add(-cfg.SessionTTL)); n > 0 {
		m.log.Debug("idle dialog sessions dropped", logx.Int("count", n))
	}

	s := NewSession(m.newID(), chat.ChatID, userID, cfg.Policy)
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, err := renderPrompt(s, nil, m.button).Send(ctx, m.adapter, chat)
	if err != nil {
		return err
	}
	s.Prompt = ref
	m.sessions.Put(s)
	m.log.Debug("dialog started", logx.String("session", s.ID), logx.Int64("user_id", userID))
	return nil
}

// HandleCallback applies the transition behind token. The returned text is
// the callback toast; it is empty on success.
func (m *Manager) HandleCallback(ctx context.Context, chat kit.ChatTarget, userID int64, token string) (string, error) {
	var tr Transition
	if err := m.tokens.GetJSON(token, &tr); err != nil {
		return ToastExpired, nil
	}
	s, ok := m.sessions.Get(Key{ChatID: chat.ChatID, UserID: userID})
	if !ok {
		return ToastExpired, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.Apply(ctx, tr)
	if errors.Is(err, ErrStale) || errors.Is(err, ErrUnexpected) {
		m.log.Debug("dialog transition rejected", logx.String("session", s.ID), logx.Err(err))
		return ToastExpired, nil
	}
	if err != nil {
		return "", err
	}
	return "", m.settle(ctx, s, out)
}

// HandleText feeds free text to the user's session. It reports false when
// there is no session or the current step expects a button.
func (m *Manager) HandleText(ctx context.Context, chat kit.ChatTarget, userID int64, text string) (bool, error) {
	s, ok := m.sessions.Get(Key{ChatID: chat.ChatID, UserID: userID})
	if !ok {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.Apply(ctx, Transition{Session: s.ID, Kind: KindText, Text: text})
	if err != nil {
		if errors.Is(err, ErrStale) {
			return false, nil
		}
		return true, err
	}
	if out.Ignored {
		return false, nil
	}
	return true, m.settle(ctx, s, out)
}

// WantsText reports whether the user's session is on a text step.
func (m *Manager) WantsText(chatID, userID int64) bool {
	s, ok := m.sessions.Get(Key{ChatID: chatID, UserID: userID})
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.State()
	return st == StateTitle || st == StateOptions
}

// settle performs the I/O for out. Call with s.mu held.
func (m *Manager) settle(ctx context.Context, s *Session, out Outcome) error {
	key := Key{ChatID: s.ChatID, UserID: s.UserID}

	switch {
	case out.Cancelled:
		m.sessions.Delete(key, s.ID)
		m.log.Debug("dialog cancelled", logx.String("session", s.ID))
		return m.edit(ctx, s.Prompt, renderCancelled())

	case out.Restart:
		m.sessions.Delete(key, s.ID)
		fresh := NewSession(m.newID(), s.ChatID, s.UserID, m.config().Policy)
		fresh.Prompt = s.Prompt
		m.sessions.Put(fresh)
		return m.edit(ctx, fresh.Prompt, renderPrompt(fresh, nil, m.button))

	case out.Record != nil:
		m.sessions.Delete(key, s.ID)
		rec := *out.Record
		if err := m.store.ReplaceAll(ctx, rec.ID, &rec); err != nil {
			m.log.Error("schedule commit failed", logx.String("id", rec.ID), logx.Err(err))
			_ = m.edit(ctx, s.Prompt, renderFailed(err))
			return err
		}
		m.log.Info("schedule committed",
			logx.String("id", rec.ID),
			logx.Int64("user_id", s.UserID),
			logx.String("time", rec.TimeLabel()),
		)
		eventbus.Publish(m.bus, eventbus.DialogCommitted, eventbus.ScheduleInfo{RecordID: rec.ID, UserID: s.UserID})
		return m.edit(ctx, s.Prompt, renderCommitted(rec))
	}

	return m.edit(ctx, s.Prompt, renderPrompt(s, out.Problem, m.button))
}

func (m *Manager) edit(ctx context.Context, ref kit.MessageRef, msg tgui.Message) error {
	if err := msg.Edit(ctx, m.adapter, ref); err != nil {
		m.log.Warn("dialog prompt edit failed", logx.Int("message_id", ref.MessageID), logx.Err(err))
		return err
	}
	return nil
}

func (m *Manager) button(label string, tr Transition) tele.Btn {
	tok, err := m.tokens.PutJSON(tr)
	if err != nil {
		// Transition is plain data; marshaling cannot fail in practice.
		m.log.Error("dialog token encode failed", logx.Err(err))
	}
	return tgui.Btn(tgui.TruncRunes(label, 60), tgui.Data(CallbackPrefix, CallbackAction, tok))
}
