package config

import (
	"reflect"
	"sort"
	"strings"

	logx "pollbot/pkg/logx"
)

// SummarizeConfigChange lists the changed sections and log-safe attributes
// for them. Secrets such as the bot token are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 16)

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	tokenChanged := strings.TrimSpace(ot.Token) != strings.TrimSpace(nt.Token)
	if tokenChanged ||
		ot.GroupID != nt.GroupID ||
		ot.GroupThreadID != nt.GroupThreadID ||
		!reflect.DeepEqual(ot.AllowedUserIDs, nt.AllowedUserIDs) ||
		strings.TrimSpace(ot.GroupLog) != strings.TrimSpace(nt.GroupLog) ||
		strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Int64("telegram.group_id", nt.GroupID),
			logx.Int("telegram.group_thread_id", nt.GroupThreadID),
			logx.Int("telegram.allowed_count", len(nt.AllowedUserIDs)),
			logx.Bool("telegram.token_changed", tokenChanged),
		)
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
			logx.String("scheduler.job_timeout", newCfg.Scheduler.JobTimeout),
		)
	}

	if oldCfg.Poll != newCfg.Poll {
		changed = append(changed, "poll")
	}

	if oldCfg.Dialog != newCfg.Dialog {
		changed = append(changed, "dialog")
		attrs = append(attrs,
			logx.Int("dialog.hour_from", newCfg.Dialog.HourFrom),
			logx.Int("dialog.hour_to", newCfg.Dialog.HourTo),
			logx.Int("dialog.minute_step", newCfg.Dialog.MinuteStep),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver))
	}

	if oldCfg.Ops != newCfg.Ops {
		changed = append(changed, "ops")
		attrs = append(attrs,
			logx.Bool("ops.enabled", newCfg.Ops.Enabled),
			logx.String("ops.addr", newCfg.Ops.Addr),
			logx.Bool("ops.pprof", newCfg.Ops.Pprof),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired reports sections that only take effect after a restart.
func RestartRequired(sections []string) []string {
	var out []string
	for _, s := range sections {
		switch s {
		case "storage":
			out = append(out, s)
		}
	}
	return out
}
