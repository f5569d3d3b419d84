package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override the file.
const (
	EnvToken          = "BOT_TOKEN"
	EnvGroupID        = "GROUP_ID"
	EnvAllowedUserIDs = "ALLOWED_USER_IDS"
	EnvTimezone       = "TIMEZONE"
	EnvSchedulesPath  = "SCHEDULES_PATH"
	EnvLogLevel       = "LOG_LEVEL"
)

// LoadDotEnv loads KEY=VALUE files into the process environment. Missing
// files are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvToken); ok {
		cfg.Telegram.Token = v
	}
	if v, ok := get(EnvGroupID); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid chat id %q", EnvGroupID, v)
		}
		cfg.Telegram.GroupID = id
	}
	if v, ok := get(EnvAllowedUserIDs); ok {
		ids, err := ParseIDList(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAllowedUserIDs, err)
		}
		cfg.Telegram.AllowedUserIDs = ids
	}
	if v, ok := get(EnvTimezone); ok {
		cfg.Scheduler.Timezone = v
	}
	if v, ok := get(EnvSchedulesPath); ok {
		cfg.Storage.Path = v
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.Logging.Level = v
	}
	return nil
}

// ParseIDList parses "1, 2,3" into user ids.
func ParseIDList(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}
