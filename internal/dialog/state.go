package dialog

import (
	"github.com/looplab/fsm"
)

// State is a dialog step.
type State string

const (
	StateSendDay   State = "send_day"
	StatePollDay   State = "poll_day"
	StateHour      State = "hour"
	StateMinute    State = "minute"
	StateTitle     State = "title"
	StateOptions   State = "options"
	StateCommitted State = "committed"
)

// order is the forward path; index also drives the summary shown on prompts.
var order = []State{StateSendDay, StatePollDay, StateHour, StateMinute, StateTitle, StateOptions, StateCommitted}

func (s State) index() int {
	for i, st := range order {
		if st == s {
			return i
		}
	}
	return -1
}

const (
	evSendDay    = "pick_send_day"
	evPollDay    = "pick_poll_day"
	evHour       = "pick_hour"
	evMinute     = "pick_minute"
	evChangeHour = "change_hour"
	evTitle      = "title"
	evOptions    = "options"
	evBack       = "back"
)

func newMachine() *fsm.FSM {
	return fsm.NewFSM(
		string(StateSendDay),
		fsm.Events{
			{Name: evSendDay, Src: []string{string(StateSendDay)}, Dst: string(StatePollDay)},
			{Name: evPollDay, Src: []string{string(StatePollDay)}, Dst: string(StateHour)},
			{Name: evHour, Src: []string{string(StateHour)}, Dst: string(StateMinute)},
			{Name: evMinute, Src: []string{string(StateMinute)}, Dst: string(StateTitle)},
			{Name: evChangeHour, Src: []string{string(StateMinute)}, Dst: string(StateHour)},
			{Name: evTitle, Src: []string{string(StateTitle)}, Dst: string(StateOptions)},
			{Name: evOptions, Src: []string{string(StateOptions)}, Dst: string(StateCommitted)},

			// back returns to the predecessor of each step.
			{Name: evBack, Src: []string{string(StatePollDay)}, Dst: string(StateSendDay)},
			{Name: evBack, Src: []string{string(StateHour)}, Dst: string(StatePollDay)},
			{Name: evBack, Src: []string{string(StateMinute)}, Dst: string(StateHour)},
			{Name: evBack, Src: []string{string(StateTitle)}, Dst: string(StateMinute)},
			{Name: evBack, Src: []string{string(StateOptions)}, Dst: string(StateTitle)},
		},
		fsm.Callbacks{},
	)
}
