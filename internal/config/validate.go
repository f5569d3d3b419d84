package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
	_ "time/tzdata"
)

var (
	ErrMissingToken     = errors.New("telegram.token is required (or BOT_TOKEN)")
	ErrMissingGroupID   = errors.New("telegram.group_id is required (or GROUP_ID)")
	ErrMissingAllowList = errors.New("telegram.allowed_user_ids must not be empty (or ALLOWED_USER_IDS)")
)

// Validate rejects configurations the bot cannot start with. It is also run
// on every hot reload before the new config is committed.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	t := cfg.Telegram
	if strings.TrimSpace(t.Token) == "" {
		return ErrMissingToken
	}
	if t.GroupID == 0 {
		return ErrMissingGroupID
	}
	if len(t.AllowedUserIDs) == 0 {
		return ErrMissingAllowList
	}
	for _, id := range t.AllowedUserIDs {
		if id <= 0 {
			return fmt.Errorf("telegram.allowed_user_ids: invalid user id %d", id)
		}
	}
	if t.GroupThreadID < 0 {
		return fmt.Errorf("telegram.group_thread_id must be >= 0")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", t.PollTimeout); err != nil {
		return err
	}

	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	if _, err := ParseDurationField("scheduler.job_timeout", cfg.Scheduler.JobTimeout); err != nil {
		return err
	}

	d := cfg.Dialog
	switch {
	case d.HourFrom < 0 || d.HourFrom > 23:
		return fmt.Errorf("dialog.hour_from must be within 0..23, got %d", d.HourFrom)
	case d.HourTo < d.HourFrom || d.HourTo > 23:
		return fmt.Errorf("dialog.hour_to must be within hour_from..23, got %d", d.HourTo)
	case d.MinuteStep <= 0 || d.MinuteStep > 30 || 60%d.MinuteStep != 0:
		return fmt.Errorf("dialog.minute_step must divide 60 and be <= 30, got %d", d.MinuteStep)
	}
	if _, err := ParseDurationField("dialog.session_ttl", d.SessionTTL); err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "file", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver)
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}

	if cfg.Ops.Enabled {
		if _, _, err := net.SplitHostPort(strings.TrimSpace(cfg.Ops.Addr)); err != nil {
			return fmt.Errorf("ops.addr: %w", err)
		}
	}
	return nil
}
