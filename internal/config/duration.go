package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a Go duration string. Blank is zero; negative
// values are rejected. path names the field in errors.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// durationOr is ParseDurationField for already validated configs: zero and
// unparsable values fall back to def.
func durationOr(raw string, def time.Duration) time.Duration {
	d, err := ParseDurationField("", raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func (t TelegramConfig) PollTimeoutDuration() time.Duration {
	return durationOr(t.PollTimeout, 10*time.Second)
}

func (s SchedulerConfig) JobTimeoutDuration() time.Duration {
	return durationOr(s.JobTimeout, 30*time.Second)
}

func (d DialogConfig) SessionTTLDuration() time.Duration {
	return durationOr(d.SessionTTL, time.Hour)
}

func (s StorageConfig) BusyTimeoutDuration() time.Duration {
	return durationOr(s.BusyTimeout, time.Second)
}
