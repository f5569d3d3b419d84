package dialog

import (
	"context"
	"errors"
	"testing"

	"pollbot/internal/schedule"
)

func walkToOptions(t *testing.T, s *Session) {
	t.Helper()
	ctx := context.Background()
	steps := []Transition{
		{Kind: KindSendDay, SendDay: schedule.Fri},
		{Kind: KindPollDay, PollDay: "суббота"},
		{Kind: KindHour, Hour: 18},
		{Kind: KindMinute, Minute: 0},
		{Kind: KindText, Text: "  Сквош в субботу?  "},
	}
	for _, tr := range steps {
		tr.Session = s.ID
		if _, err := s.Apply(ctx, tr); err != nil {
			t.Fatalf("Apply(%s) error: %v", tr.Kind, err)
		}
	}
	if s.State() != StateOptions {
		t.Fatalf("state = %s, want %s", s.State(), StateOptions)
	}
}

func TestSessionHappyPath(t *testing.T) {
	t.Parallel()
	s := NewSession("s1", -100, 42, DefaultPolicy())
	walkToOptions(t, s)

	out, err := s.Apply(context.Background(), Transition{Session: "s1", Kind: KindText, Text: "Да; Нет; ; Резерв "})
	if err != nil {
		t.Fatalf("Apply options: %v", err)
	}
	if out.State != StateCommitted || out.Record == nil {
		t.Fatalf("outcome = %+v, want committed record", out)
	}
	r := out.Record
	if r.ID != "fri_суббота" || r.Hour != 18 || r.Minute != 0 || r.PollTitle != "Сквош в субботу?" {
		t.Fatalf("record = %+v", r)
	}
	if len(r.Options) != 3 || r.Options[2] != "Резерв" {
		t.Fatalf("options = %q", r.Options)
	}

	if _, err := s.Apply(context.Background(), Transition{Session: "s1", Kind: KindBack}); !errors.Is(err, ErrStale) {
		t.Fatalf("Apply after commit err = %v, want ErrStale", err)
	}
}

func TestSessionDefaultOptions(t *testing.T) {
	t.Parallel()
	s := NewSession("s1", -100, 42, DefaultPolicy())
	if _, err := s.Apply(context.Background(), Transition{Session: "s1", Kind: KindDefaultOpts}); !errors.Is(err, ErrUnexpected) {
		t.Fatalf("default options on send day err = %v, want ErrUnexpected", err)
	}
	walkToOptions(t, s)

	out, err := s.Apply(context.Background(), Transition{Session: "s1", Kind: KindDefaultOpts})
	if err != nil {
		t.Fatalf("Apply default options: %v", err)
	}
	if out.State != StateCommitted || out.Record == nil {
		t.Fatalf("outcome = %+v, want committed record", out)
	}
	if got := out.Record.Options; len(got) != 4 || got[0] != "Да" || got[3] != "Тренер" {
		t.Fatalf("options = %q", got)
	}
}

func TestSessionValidationSelfLoops(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewSession("s1", -100, 42, DefaultPolicy())
	for _, tr := range []Transition{
		{Session: "s1", Kind: KindSendDay, SendDay: schedule.Tue},
		{Session: "s1", Kind: KindPollDay, PollDay: "четверг"},
		{Session: "s1", Kind: KindHour, Hour: 18},
		{Session: "s1", Kind: KindMinute, Minute: 0},
	} {
		if _, err := s.Apply(ctx, tr); err != nil {
			t.Fatalf("Apply(%s): %v", tr.Kind, err)
		}
	}

	for _, text := range []string{"", "   ", "-", " - "} {
		out, err := s.Apply(ctx, Transition{Session: "s1", Kind: KindText, Text: text})
		if err != nil || !errors.Is(out.Problem, schedule.ErrEmptyTitle) {
			t.Fatalf("title %q: out=%+v err=%v, want ErrEmptyTitle problem", text, out, err)
		}
		if s.State() != StateTitle || s.Title != "" {
			t.Fatalf("title %q: state=%s title=%q", text, s.State(), s.Title)
		}
	}

	if _, err := s.Apply(ctx, Transition{Session: "s1", Kind: KindText, Text: "Сквош"}); err != nil {
		t.Fatalf("Apply title: %v", err)
	}
	for _, text := range []string{"Да", "Да;", " ; ; ", ""} {
		out, err := s.Apply(ctx, Transition{Session: "s1", Kind: KindText, Text: text})
		if err != nil || !errors.Is(out.Problem, schedule.ErrTooFewOptions) || out.Record != nil {
			t.Fatalf("options %q: out=%+v err=%v", text, out, err)
		}
		if s.State() != StateOptions {
			t.Fatalf("options %q: state = %s", text, s.State())
		}
	}
}

func TestSessionBackAndChangeHour(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewSession("s1", -100, 42, DefaultPolicy())

	cases := []struct {
		tr   Transition
		want State
	}{
		{Transition{Kind: KindSendDay, SendDay: schedule.Mon}, StatePollDay},
		{Transition{Kind: KindBack}, StateSendDay},
		{Transition{Kind: KindSendDay, SendDay: schedule.Wed}, StatePollDay},
		{Transition{Kind: KindPollDay, PollDay: "четверг"}, StateHour},
		{Transition{Kind: KindHour, Hour: 10}, StateMinute},
		{Transition{Kind: KindChangeHour}, StateHour},
		{Transition{Kind: KindHour, Hour: 21}, StateMinute},
		{Transition{Kind: KindMinute, Minute: 55}, StateTitle},
		{Transition{Kind: KindBack}, StateMinute},
		{Transition{Kind: KindMinute, Minute: 30}, StateTitle},
		{Transition{Kind: KindDefaultTitle}, StateOptions},
		{Transition{Kind: KindBack}, StateTitle},
	}
	for i, tc := range cases {
		tc.tr.Session = "s1"
		out, err := s.Apply(ctx, tc.tr)
		if err != nil {
			t.Fatalf("step %d (%s): %v", i, tc.tr.Kind, err)
		}
		if out.State != tc.want || s.State() != tc.want {
			t.Fatalf("step %d (%s): state = %s, want %s", i, tc.tr.Kind, s.State(), tc.want)
		}
	}
	if s.SendDay != schedule.Wed || s.PollDay != "четверг" || s.Hour != 21 || s.Minute != 30 {
		t.Fatalf("fields = %s %s %d:%d", s.SendDay, s.PollDay, s.Hour, s.Minute)
	}
	if s.Title != "Poll for четверг?" {
		t.Fatalf("default title = %q", s.Title)
	}
}

func TestSessionRejects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewSession("s1", -100, 42, DefaultPolicy())

	cases := []struct {
		name string
		tr   Transition
		want error
	}{
		{"other session", Transition{Session: "old", Kind: KindSendDay, SendDay: schedule.Fri}, ErrStale},
		{"bad weekday", Transition{Session: "s1", Kind: KindSendDay, SendDay: "xyz"}, ErrUnexpected},
		{"hour on day step", Transition{Session: "s1", Kind: KindHour, Hour: 18}, ErrUnexpected},
		{"back on first step", Transition{Session: "s1", Kind: KindBack}, ErrUnexpected},
		{"change hour on day step", Transition{Session: "s1", Kind: KindChangeHour}, ErrUnexpected},
	}
	for _, tc := range cases {
		if _, err := s.Apply(ctx, tc.tr); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
		if s.State() != StateSendDay {
			t.Fatalf("%s: state moved to %s", tc.name, s.State())
		}
	}

	// Out-of-policy values are refused too.
	mustApply(t, s, Transition{Session: "s1", Kind: KindSendDay, SendDay: schedule.Fri})
	mustApply(t, s, Transition{Session: "s1", Kind: KindPollDay, PollDay: "суббота"})
	if _, err := s.Apply(ctx, Transition{Session: "s1", Kind: KindHour, Hour: 3}); !errors.Is(err, ErrUnexpected) {
		t.Fatalf("hour 3 err = %v, want ErrUnexpected", err)
	}
	mustApply(t, s, Transition{Session: "s1", Kind: KindHour, Hour: 12})
	if _, err := s.Apply(ctx, Transition{Session: "s1", Kind: KindMinute, Minute: 7}); !errors.Is(err, ErrUnexpected) {
		t.Fatalf("minute 7 err = %v, want ErrUnexpected", err)
	}

	out, err := s.Apply(ctx, Transition{Session: "s1", Kind: KindText, Text: "hello"})
	if err != nil || !out.Ignored {
		t.Fatalf("text on button step: out=%+v err=%v, want ignored", out, err)
	}
}

func mustApply(t *testing.T, s *Session, tr Transition) {
	t.Helper()
	if _, err := s.Apply(context.Background(), tr); err != nil {
		t.Fatalf("Apply(%s): %v", tr.Kind, err)
	}
}

func TestPolicy(t *testing.T) {
	t.Parallel()
	p := DefaultPolicy()
	hours := p.Hours()
	if len(hours) != 12 || hours[0] != 10 || hours[11] != 21 {
		t.Fatalf("Hours = %v", hours)
	}
	mins := p.Minutes()
	if len(mins) != 12 || mins[0] != 0 || mins[11] != 55 {
		t.Fatalf("Minutes = %v", mins)
	}
	var zero Policy
	if got := zero.Hours(); len(got) != 12 || got[0] != 10 {
		t.Fatalf("zero policy Hours = %v, want 10..21", got)
	}
	if got := zero.Minutes(); len(got) != 12 {
		t.Fatalf("zero policy Minutes = %v, want 5-minute step", got)
	}
	if got := withDefaults(Config{}).Policy; got != DefaultPolicy() {
		t.Fatalf("withDefaults(Config{}).Policy = %+v, want %+v", got, DefaultPolicy())
	}
	// A midnight-only window is still honored once the step is set.
	if got := (Policy{MinuteStep: 30}).Hours(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("0..0 policy Hours = %v, want [0]", got)
	}
	bad := Policy{HourFrom: 20, HourTo: 5, MinuteStep: 7}
	if got := bad.Hours(); len(got) != 12 {
		t.Fatalf("invalid policy Hours = %v, want defaults", got)
	}
	if got := bad.Minutes(); len(got) != 12 {
		t.Fatalf("invalid policy Minutes = %v, want defaults", got)
	}
}
