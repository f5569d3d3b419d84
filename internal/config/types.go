package config

// Config is the whole bot configuration. Every section is optional in the
// file; Default fills the gaps and environment variables override the file.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Poll      PollConfig      `json:"poll"`
	Dialog    DialogConfig    `json:"dialog"`
	Storage   StorageConfig   `json:"storage"`
	Ops       OpsConfig       `json:"ops"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// GroupID is the chat polls and reminders go to.
	GroupID int64 `json:"group_id"`
	// GroupThreadID targets a forum topic inside the group. 0 = general.
	GroupThreadID  int     `json:"group_thread_id,omitempty"`
	AllowedUserIDs []int64 `json:"allowed_user_ids"`
	GroupLog       string  `json:"group_log,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type SchedulerConfig struct {
	// Timezone is an IANA name; every job fires in this zone.
	Timezone string `json:"timezone"`
	// JobTimeout bounds one poll or reminder send.
	JobTimeout string `json:"job_timeout,omitempty"`
}

type PollConfig struct {
	ReminderText string `json:"reminder_text,omitempty"`
}

// DialogConfig bounds the times offered by /set_days.
type DialogConfig struct {
	HourFrom   int    `json:"hour_from"`
	HourTo     int    `json:"hour_to"`
	MinuteStep int    `json:"minute_step"`
	SessionTTL string `json:"session_ttl,omitempty"`
}

// StorageConfig selects the schedule backend.
//
//	"storage": { "driver": "sqlite", "path": "./data/pollbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// OpsConfig controls the local HTTP endpoint with /healthz, /metrics and
// optionally /debug/pprof. Bind it to loopback.
type OpsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Pprof   bool   `json:"pprof,omitempty"`
}

const (
	DefaultTimezone = "Europe/Moscow"
	DefaultOpsAddr  = "127.0.0.1:9090"
)

// Default returns the configuration used for omitted fields.
func Default() Config {
	return Config{
		Telegram: TelegramConfig{PollTimeout: "10s"},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Telegram: LoggingTelegram{
				MinLevel:   "warn",
				RatePerSec: 1,
			},
		},
		Scheduler: SchedulerConfig{Timezone: DefaultTimezone, JobTimeout: "30s"},
		Dialog:    DialogConfig{HourFrom: 10, HourTo: 21, MinuteStep: 5, SessionTTL: "1h"},
		Storage:   StorageConfig{Driver: "file", Path: "./data/schedules.json"},
		Ops:       OpsConfig{Addr: DefaultOpsAddr},
	}
}
