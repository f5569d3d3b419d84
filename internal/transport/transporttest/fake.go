// Package transporttest provides an in-memory transport adapter for tests.
package transporttest

import (
	"context"
	"errors"
	"sync"

	kit "pollbot/internal/transport"
)

var ErrInjected = errors.New("transporttest: injected failure")

type Sent struct {
	Ref  kit.MessageRef
	Text string
	Opt  *kit.SendOptions
}

type SentPoll struct {
	Ref  kit.MessageRef
	Poll kit.Poll
}

type Edit struct {
	Ref  kit.MessageRef
	Text string
	Opt  *kit.SendOptions
}

type Answer struct {
	CallbackID string
	Text       string
}

// Adapter records every outgoing call. Set Fail to make sends return
// ErrInjected.
type Adapter struct {
	mu sync.Mutex

	Fail bool

	nextID  int
	Texts   []Sent
	Polls   []SentPoll
	Edits   []Edit
	Answers []Answer
	Menu    []kit.BotCommand

	// History holds sent and edited texts in call order.
	History []Sent
}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	<-ctx.Done()
	return nil
}

func (a *Adapter) Stop(context.Context) error { return nil }

func (a *Adapter) ref(to kit.ChatTarget) kit.MessageRef {
	a.nextID++
	return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: a.nextID}
}

func (a *Adapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Fail {
		return kit.MessageRef{}, ErrInjected
	}
	r := a.ref(to)
	a.Texts = append(a.Texts, Sent{Ref: r, Text: text, Opt: opt})
	a.History = append(a.History, Sent{Ref: r, Text: text, Opt: opt})
	return r, nil
}

func (a *Adapter) SendPoll(_ context.Context, to kit.ChatTarget, p kit.Poll) (kit.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Fail {
		return kit.MessageRef{}, ErrInjected
	}
	r := a.ref(to)
	a.Polls = append(a.Polls, SentPoll{Ref: r, Poll: p})
	return r, nil
}

func (a *Adapter) EditText(_ context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Fail {
		return ErrInjected
	}
	a.Edits = append(a.Edits, Edit{Ref: ref, Text: text, Opt: opt})
	a.History = append(a.History, Sent{Ref: ref, Text: text, Opt: opt})
	return nil
}

func (a *Adapter) AnswerCallback(_ context.Context, id, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Answers = append(a.Answers, Answer{CallbackID: id, Text: text})
	return nil
}

func (a *Adapter) UpdateMenuCommands(_ context.Context, cmds []kit.BotCommand) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Menu = append([]kit.BotCommand(nil), cmds...)
	return nil
}

// LastText returns the most recent SendText payload.
func (a *Adapter) LastText() (Sent, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.Texts) == 0 {
		return Sent{}, false
	}
	return a.Texts[len(a.Texts)-1], true
}

// LastEdit returns the most recent EditText payload.
func (a *Adapter) LastEdit() (Edit, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.Edits) == 0 {
		return Edit{}, false
	}
	return a.Edits[len(a.Edits)-1], true
}

// Last returns the most recent text, sent or edited.
func (a *Adapter) Last() (Sent, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.History) == 0 {
		return Sent{}, false
	}
	return a.History[len(a.History)-1], true
}

var _ kit.Adapter = (*Adapter)(nil)
var _ kit.CommandMenuUpdater = (*Adapter)(nil)
