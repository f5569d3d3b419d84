package eventbus

// Event types published by the bot.
const (
	SchedulerRebuilt = "scheduler.rebuilt"
	PollSent         = "dispatch.poll_sent"
	ReminderSent     = "dispatch.reminder_sent"
	DispatchFailed   = "dispatch.failed"
	DialogCommitted  = "dialog.committed"
	ScheduleRemoved  = "schedule.removed"
)

// RebuildInfo is the Data of SchedulerRebuilt.
type RebuildInfo struct {
	Records int
	Jobs    int
}

// DispatchInfo is the Data of PollSent, ReminderSent and DispatchFailed.
type DispatchInfo struct {
	Action   string // "poll" or "reminder"
	RecordID string
	Err      string
}

// ScheduleInfo is the Data of DialogCommitted and ScheduleRemoved.
type ScheduleInfo struct {
	RecordID string
	UserID   int64
}

// Publish is a nil-safe helper.
func Publish(b Bus, typ string, data any) {
	if b == nil {
		return
	}
	b.Publish(Event{Type: typ, Data: data})
}
