package scheduler

import (
	"fmt"

	"pollbot/internal/schedule"
)

// ReminderTime returns the wall-clock time five minutes before hour:minute.
// Only hour and minute move; 00:02 becomes 23:57 of the same weekday.
func ReminderTime(hour, minute int) (int, int) {
	if minute < 5 {
		return (hour + 23) % 24, (minute + 55) % 60
	}
	return hour, minute - 5
}

// PollSpec is the 5-field cron spec of the poll job.
func PollSpec(rec schedule.Record) string {
	return weekly(rec.SendDay, rec.Hour, rec.Minute)
}

// ReminderSpec is the 5-field cron spec of the reminder job.
func ReminderSpec(rec schedule.Record) string {
	h, m := ReminderTime(rec.Hour, rec.Minute)
	return weekly(rec.SendDay, h, m)
}

func weekly(day schedule.Weekday, hour, minute int) string {
	return fmt.Sprintf("%d %d * * %s", minute, hour, day)
}

// PollJobName and ReminderJobName are the job identifiers of a record.
func PollJobName(id string) string     { return "poll_" + id }
func ReminderJobName(id string) string { return "rem_" + id }
