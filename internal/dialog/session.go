package dialog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"pollbot/internal/schedule"
	kit "pollbot/internal/transport"
)

// Policy bounds the times offered on the hour and minute steps.
type Policy struct {
	HourFrom   int
	HourTo     int
	MinuteStep int
}

func DefaultPolicy() Policy { return Policy{HourFrom: 10, HourTo: 21, MinuteStep: 5} }

// normalized replaces out-of-range fields with defaults. The zero Policy
// means unset and yields DefaultPolicy.
func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p == (Policy{}) {
		return d
	}
	if p.HourFrom < 0 || p.HourFrom > 23 || p.HourTo < p.HourFrom || p.HourTo > 23 {
		p.HourFrom, p.HourTo = d.HourFrom, d.HourTo
	}
	if p.MinuteStep <= 0 || p.MinuteStep > 30 || 60%p.MinuteStep != 0 {
		p.MinuteStep = d.MinuteStep
	}
	return p
}

// Hours lists the offered hours.
func (p Policy) Hours() []int {
	p = p.normalized()
	out := make([]int, 0, p.HourTo-p.HourFrom+1)
	for h := p.HourFrom; h <= p.HourTo; h++ {
		out = append(out, h)
	}
	return out
}

// Minutes lists the offered minutes, 0 through 55 on a 5-minute step.
func (p Policy) Minutes() []int {
	p = p.normalized()
	out := make([]int, 0, 60/p.MinuteStep)
	for m := 0; m < 60; m += p.MinuteStep {
		out = append(out, m)
	}
	return out
}

func (p Policy) hasHour(h int) bool {
	p = p.normalized()
	return h >= p.HourFrom && h <= p.HourTo
}

func (p Policy) hasMinute(m int) bool {
	p = p.normalized()
	return m >= 0 && m < 60 && m%p.MinuteStep == 0
}

// Outcome tells the caller what Apply did.
type Outcome struct {
	State State

	// Problem is a validation error on text input. The step did not change.
	Problem error

	// Record is set once the options step commits.
	Record *schedule.Record

	Restart   bool
	Cancelled bool
	// Ignored is set for text that arrives while a button step is shown.
	Ignored bool
}

// Session is one user's dialog run.
type Session struct {
	mu sync.Mutex

	ID     string
	ChatID int64
	UserID int64
	// Prompt is the message edited in place on every step.
	Prompt  kit.MessageRef
	Touched time.Time

	SendDay schedule.Weekday
	PollDay string
	Hour    int
	Minute  int
	Title   string

	policy  Policy
	machine *fsm.FSM
}

func NewSession(id string, chatID, userID int64, p Policy) *Session {
	return &Session{
		ID:      id,
		ChatID:  chatID,
		UserID:  userID,
		policy:  p.normalized(),
		machine: newMachine(),
		Touched: time.Now(),
	}
}

func (s *Session) State() State { return State(s.machine.Current()) }

func (s *Session) Policy() Policy { return s.policy }

// Apply validates tr against the current step and advances the session.
// It performs no I/O.
func (s *Session) Apply(ctx context.Context, tr Transition) (Outcome, error) {
	if tr.Session != s.ID {
		return Outcome{State: s.State()}, ErrStale
	}
	if s.State() == StateCommitted {
		return Outcome{State: s.State()}, ErrStale
	}

	switch tr.Kind {
	case KindCancel:
		return Outcome{State: s.State(), Cancelled: true}, nil
	case KindRestart:
		return Outcome{State: s.State(), Restart: true}, nil
	case KindBack:
		return s.fire(ctx, evBack, nil)
	case KindChangeHour:
		return s.fire(ctx, evChangeHour, nil)

	case KindSendDay:
		if !tr.SendDay.Valid() {
			return s.unexpected(tr)
		}
		return s.fire(ctx, evSendDay, func() { s.SendDay = tr.SendDay })

	case KindPollDay:
		label := strings.TrimSpace(tr.PollDay)
		if label == "" {
			return s.unexpected(tr)
		}
		return s.fire(ctx, evPollDay, func() { s.PollDay = label })

	case KindHour:
		if !s.policy.hasHour(tr.Hour) {
			return s.unexpected(tr)
		}
		return s.fire(ctx, evHour, func() { s.Hour = tr.Hour })

	case KindMinute:
		if !s.policy.hasMinute(tr.Minute) {
			return s.unexpected(tr)
		}
		return s.fire(ctx, evMinute, func() { s.Minute = tr.Minute })

	case KindDefaultTitle:
		return s.fire(ctx, evTitle, func() { s.Title = schedule.DefaultQuestion(s.PollDay) })

	case KindDefaultOpts:
		if s.State() != StateOptions {
			return s.unexpected(tr)
		}
		return s.commit(ctx, schedule.DefaultOptions())

	case KindText:
		return s.applyText(ctx, tr.Text)
	}
	return s.unexpected(tr)
}

func (s *Session) applyText(ctx context.Context, text string) (Outcome, error) {
	switch s.State() {
	case StateTitle:
		title, err := schedule.ParseTitle(text)
		if err != nil {
			return Outcome{State: s.State(), Problem: err}, nil
		}
		return s.fire(ctx, evTitle, func() { s.Title = title })

	case StateOptions:
		opts, err := schedule.ParseOptions(text)
		if err != nil {
			return Outcome{State: s.State(), Problem: err}, nil
		}
		return s.commit(ctx, opts)
	}
	return Outcome{State: s.State(), Ignored: true}, nil
}

// commit finishes the options step and returns the assembled record.
func (s *Session) commit(ctx context.Context, opts []string) (Outcome, error) {
	rec := schedule.Record{
		ID:        schedule.DeriveID(s.SendDay, s.PollDay),
		SendDay:   s.SendDay,
		PollDay:   s.PollDay,
		Hour:      s.Hour,
		Minute:    s.Minute,
		PollTitle: s.Title,
		Options:   opts,
	}
	out, err := s.fire(ctx, evOptions, nil)
	if err != nil {
		return out, err
	}
	out.Record = &rec
	return out, nil
}

// fire moves the machine and runs set only when the move succeeded.
func (s *Session) fire(ctx context.Context, event string, set func()) (Outcome, error) {
	from := s.State()
	if err := s.machine.Event(ctx, event); err != nil {
		return Outcome{State: from}, fmt.Errorf("%w: %s in %s: %v", ErrUnexpected, event, from, err)
	}
	if set != nil {
		set()
	}
	s.Touched = time.Now()
	return Outcome{State: s.State()}, nil
}

func (s *Session) unexpected(tr Transition) (Outcome, error) {
	return Outcome{State: s.State()}, fmt.Errorf("%w: %s in %s", ErrUnexpected, tr.Kind, s.State())
}
