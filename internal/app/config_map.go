package app

import (
	"strconv"
	"strings"

	"pollbot/internal/config"
	"pollbot/internal/dialog"
	"pollbot/internal/dispatch"
	"pollbot/internal/observability/ops"
	"pollbot/internal/storage"
	"pollbot/internal/task/scheduler"
	kit "pollbot/internal/transport"
	logx "pollbot/pkg/logx"
)

// The map functions expect a config that passed config.Validate.

func mapStorageConfig(cfg *config.Config) storage.Config {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "sqlite", "sqlite3":
		if path == "" {
			path = storage.DefaultSQLitePath
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: sc.BusyTimeoutDuration()}
	default:
		if path == "" {
			path = storage.DefaultFilePath
		}
		return storage.Config{Driver: "file", Path: path}
	}
}

func mapDispatchConfig(cfg *config.Config) dispatch.Config {
	return dispatch.Config{
		Target: kit.ChatTarget{
			ChatID:   cfg.Telegram.GroupID,
			ThreadID: cfg.Telegram.GroupThreadID,
		},
		ReminderText: cfg.Poll.ReminderText,
	}
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Timezone:   strings.TrimSpace(cfg.Scheduler.Timezone),
		JobTimeout: cfg.Scheduler.JobTimeoutDuration(),
	}
}

func mapDialogConfig(cfg *config.Config) dialog.Config {
	return dialog.Config{
		Policy: dialog.Policy{
			HourFrom:   cfg.Dialog.HourFrom,
			HourTo:     cfg.Dialog.HourTo,
			MinuteStep: cfg.Dialog.MinuteStep,
		},
		SessionTTL: cfg.Dialog.SessionTTLDuration(),
	}
}

func mapOpsConfig(cfg *config.Config) ops.Config {
	return ops.Config{
		Enabled: cfg.Ops.Enabled,
		Addr:    strings.TrimSpace(cfg.Ops.Addr),
		Pprof:   cfg.Ops.Pprof,
	}
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// logTarget parses telegram.group_log. Blank or malformed values disable
// the Telegram log sink target.
func logTarget(cfg *config.Config) (int64, bool) {
	raw := strings.TrimSpace(cfg.Telegram.GroupLog)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
