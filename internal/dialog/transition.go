package dialog

import (
	"errors"

	"pollbot/internal/schedule"
)

var (
	// ErrStale reports a transition issued for another or an ended session.
	ErrStale = errors.New("dialog: stale transition")
	// ErrUnexpected reports a transition the current step does not accept.
	ErrUnexpected = errors.New("dialog: unexpected transition")
)

// Kind tags a Transition.
type Kind string

const (
	KindSendDay      Kind = "send_day"
	KindPollDay      Kind = "poll_day"
	KindHour         Kind = "hour"
	KindMinute       Kind = "minute"
	KindChangeHour   Kind = "change_hour"
	KindDefaultTitle Kind = "default_title"
	KindDefaultOpts  Kind = "default_options"
	KindText         Kind = "text"
	KindBack         Kind = "back"
	KindRestart      Kind = "restart"
	KindCancel       Kind = "cancel"
)

// Transition is one user action. Button transitions are stored behind a
// token; text transitions are built from the incoming message.
type Transition struct {
	Session string           `json:"s"`
	Kind    Kind             `json:"k"`
	SendDay schedule.Weekday `json:"d,omitempty"`
	PollDay string           `json:"p,omitempty"`
	Hour    int              `json:"h"`
	Minute  int              `json:"m"`
	Text    string           `json:"t,omitempty"`
}
