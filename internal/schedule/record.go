package schedule

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidRecord = errors.New("invalid schedule record")

// Record is one recurring poll and its reminder.
type Record struct {
	ID        string   `json:"id" yaml:"id"`
	SendDay   Weekday  `json:"send_day" yaml:"send_day"`
	PollDay   string   `json:"poll_day" yaml:"poll_day"`
	Hour      int      `json:"hour" yaml:"hour"`
	Minute    int      `json:"minute" yaml:"minute"`
	PollTitle string   `json:"poll_title" yaml:"poll_title"`
	Options   []string `json:"options" yaml:"options"`
}

// DeriveID builds the record id from the day pair. Recreating a schedule for
// the same pair yields the same id and overwrites the old record.
func DeriveID(sendDay Weekday, pollDay string) string {
	return string(sendDay) + "_" + strings.TrimSpace(pollDay)
}

// DefaultQuestion is the poll question used when a record has no title.
func DefaultQuestion(pollDay string) string {
	return fmt.Sprintf("Poll for %s?", pollDay)
}

// Question returns the title, or the generated default when it is blank.
func (r Record) Question() string {
	if t := strings.TrimSpace(r.PollTitle); t != "" {
		return t
	}
	return DefaultQuestion(r.PollDay)
}

// TimeLabel formats the send time as HH:MM.
func (r Record) TimeLabel() string {
	return fmt.Sprintf("%02d:%02d", r.Hour, r.Minute)
}

func (r Record) Clone() Record {
	r.Options = append([]string(nil), r.Options...)
	return r
}

// Validate checks the invariants every persisted record must hold.
func (r Record) Validate() error {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return fmt.Errorf("%w: empty id", ErrInvalidRecord)
	case !r.SendDay.Valid():
		return fmt.Errorf("%w: unknown send_day %q", ErrInvalidRecord, r.SendDay)
	case r.Hour < 0 || r.Hour > 23:
		return fmt.Errorf("%w: hour %d out of range", ErrInvalidRecord, r.Hour)
	case r.Minute < 0 || r.Minute > 59:
		return fmt.Errorf("%w: minute %d out of range", ErrInvalidRecord, r.Minute)
	case len(r.Options) < MinOptions:
		return fmt.Errorf("%w: %d options, need at least %d", ErrInvalidRecord, len(r.Options), MinOptions)
	}
	return nil
}
