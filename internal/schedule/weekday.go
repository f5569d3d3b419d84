package schedule

import (
	"strings"
	"time"
)

// Weekday is a lower-case three letter day code, the form cron accepts.
type Weekday string

const (
	Mon Weekday = "mon"
	Tue Weekday = "tue"
	Wed Weekday = "wed"
	Thu Weekday = "thu"
	Fri Weekday = "fri"
	Sat Weekday = "sat"
	Sun Weekday = "sun"
)

var weekdays = []Weekday{Mon, Tue, Wed, Thu, Fri, Sat, Sun}

var weekdayLabels = map[Weekday]struct {
	short string
	name  string
	std   time.Weekday
}{
	Mon: {"Пн", "понедельник", time.Monday},
	Tue: {"Вт", "вторник", time.Tuesday},
	Wed: {"Ср", "среда", time.Wednesday},
	Thu: {"Чт", "четверг", time.Thursday},
	Fri: {"Пт", "пятница", time.Friday},
	Sat: {"Сб", "суббота", time.Saturday},
	Sun: {"Вс", "воскресенье", time.Sunday},
}

// Weekdays returns the seven codes in Monday-first order.
func Weekdays() []Weekday {
	return append([]Weekday(nil), weekdays...)
}

// ParseWeekday accepts a code in any case ("Fri", "fri").
func ParseWeekday(s string) (Weekday, bool) {
	d := Weekday(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", false
	}
	return d, true
}

func (d Weekday) Valid() bool {
	_, ok := weekdayLabels[d]
	return ok
}

// Short is the two-letter Russian abbreviation used on buttons.
func (d Weekday) Short() string { return weekdayLabels[d].short }

// Name is the full Russian day name. Poll-day buttons store it verbatim.
func (d Weekday) Name() string { return weekdayLabels[d].name }

func (d Weekday) Std() time.Weekday { return weekdayLabels[d].std }

func (d Weekday) String() string { return string(d) }
