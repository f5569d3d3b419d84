package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func valid() *Config {
	c := Default()
	c.Telegram.Token = "123:abc"
	c.Telegram.GroupID = -100123
	c.Telegram.AllowedUserIDs = []int64{42}
	return &c
}

func TestParseMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	m := NewManager(filepath.Join(t.TempDir(), "absent.json"))
	m.SetLookup(envMap(nil))

	cfg, err := m.Parse()
	require.NoError(t, err)
	require.Equal(t, DefaultTimezone, cfg.Scheduler.Timezone)
	require.Equal(t, DialogConfig{HourFrom: 10, HourTo: 21, MinuteStep: 5, SessionTTL: "1h"}, cfg.Dialog)
	require.Equal(t, "file", cfg.Storage.Driver)
}

func TestParseJSONKeepsDefaultsForOmittedFields(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "config.json", `{
		"telegram": {"token": "t", "group_id": -1, "allowed_user_ids": [1, 2]},
		"dialog": {"hour_from": 0}
	}`)
	m := NewManager(p)
	m.SetLookup(envMap(nil))

	cfg, err := m.Parse()
	require.NoError(t, err)
	require.Equal(t, 0, cfg.Dialog.HourFrom)
	require.Equal(t, 21, cfg.Dialog.HourTo)
	require.Equal(t, []int64{1, 2}, cfg.Telegram.AllowedUserIDs)
	require.Equal(t, "10s", cfg.Telegram.PollTimeout)
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "config.yaml", `
telegram:
  token: t
  group_id: -100
  allowed_user_ids: [7]
scheduler:
  timezone: UTC
storage:
  driver: sqlite
  path: ./data/pollbot.db
`)
	m := NewManager(p)
	m.SetLookup(envMap(nil))

	cfg, err := m.Parse()
	require.NoError(t, err)
	require.Equal(t, "UTC", cfg.Scheduler.Timezone)
	require.Equal(t, "sqlite", cfg.Storage.Driver)
	require.NoError(t, Validate(cfg))
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "config.json", `{"telegram": {"tokn": "x"}}`)
	m := NewManager(p)
	m.SetLookup(envMap(nil))
	_, err := m.Parse()
	require.Error(t, err)

	p = writeFile(t, t.TempDir(), "config.json", `{} {}`)
	_, err = NewManager(p).Parse()
	require.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "config.json", `{"telegram": {"token": "file", "group_id": -1, "allowed_user_ids": [1]}}`)
	m := NewManager(p)
	m.SetLookup(envMap(map[string]string{
		EnvToken:          "env",
		EnvGroupID:        "-100500",
		EnvAllowedUserIDs: " 10, 20 ,",
		EnvTimezone:       "UTC",
		EnvSchedulesPath:  "/tmp/s.yaml",
		EnvLogLevel:       "debug",
	}))

	cfg, err := m.Load()
	require.NoError(t, err)
	require.Equal(t, "env", cfg.Telegram.Token)
	require.Equal(t, int64(-100500), cfg.Telegram.GroupID)
	require.Equal(t, []int64{10, 20}, cfg.Telegram.AllowedUserIDs)
	require.Equal(t, "UTC", cfg.Scheduler.Timezone)
	require.Equal(t, "/tmp/s.yaml", cfg.Storage.Path)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Same(t, cfg, m.Get())
}

func TestEnvRejectsMalformedIDs(t *testing.T) {
	t.Parallel()
	for _, env := range []map[string]string{
		{EnvGroupID: "group"},
		{EnvAllowedUserIDs: "1,two"},
	} {
		m := NewManager("")
		m.SetLookup(envMap(env))
		if _, err := m.Parse(); err == nil {
			t.Fatalf("Parse with %v = nil error, want error", env)
		}
	}
}

func TestLoadFailsWithoutRequiredSettings(t *testing.T) {
	t.Parallel()
	m := NewManager("")
	m.SetLookup(envMap(nil))
	_, err := m.Load()
	require.ErrorIs(t, err, ErrMissingToken)
	require.Nil(t, m.Get())
}

func TestValidate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		mutate func(c *Config)
		want   error
		substr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "no token", mutate: func(c *Config) { c.Telegram.Token = " " }, want: ErrMissingToken},
		{name: "no group", mutate: func(c *Config) { c.Telegram.GroupID = 0 }, want: ErrMissingGroupID},
		{name: "no users", mutate: func(c *Config) { c.Telegram.AllowedUserIDs = nil }, want: ErrMissingAllowList},
		{name: "bad user", mutate: func(c *Config) { c.Telegram.AllowedUserIDs = []int64{-5} }, substr: "allowed_user_ids"},
		{name: "bad tz", mutate: func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, substr: "scheduler.timezone"},
		{name: "bad poll timeout", mutate: func(c *Config) { c.Telegram.PollTimeout = "soon" }, substr: "telegram.poll_timeout"},
		{name: "hour range", mutate: func(c *Config) { c.Dialog.HourFrom, c.Dialog.HourTo = 20, 10 }, substr: "dialog.hour_to"},
		{name: "hour from", mutate: func(c *Config) { c.Dialog.HourFrom = 24 }, substr: "dialog.hour_from"},
		{name: "minute step", mutate: func(c *Config) { c.Dialog.MinuteStep = 7 }, substr: "dialog.minute_step"},
		{name: "driver", mutate: func(c *Config) { c.Storage.Driver = "postgres" }, substr: "storage.driver"},
		{name: "ops addr", mutate: func(c *Config) { c.Ops.Enabled, c.Ops.Addr = true, "nope" }, substr: "ops.addr"},
	}
	for _, tc := range cases {
		c := valid()
		tc.mutate(c)
		err := Validate(c)
		switch {
		case tc.want == nil && tc.substr == "":
			if err != nil {
				t.Fatalf("%s: Validate = %v, want nil", tc.name, err)
			}
		case tc.want != nil:
			if !errors.Is(err, tc.want) {
				t.Fatalf("%s: Validate = %v, want %v", tc.name, err, tc.want)
			}
		default:
			if err == nil || !strings.Contains(err.Error(), tc.substr) {
				t.Fatalf("%s: Validate = %v, want error mentioning %q", tc.name, err, tc.substr)
			}
		}
	}
}

func TestDurationAccessors(t *testing.T) {
	t.Parallel()
	c := Default()
	require.Equal(t, 10*time.Second, c.Telegram.PollTimeoutDuration())
	require.Equal(t, 30*time.Second, c.Scheduler.JobTimeoutDuration())
	require.Equal(t, time.Hour, c.Dialog.SessionTTLDuration())
	require.Equal(t, time.Second, c.Storage.BusyTimeoutDuration())

	c.Dialog.SessionTTL = "bogus"
	require.Equal(t, time.Hour, c.Dialog.SessionTTLDuration())
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	a := valid()
	b := valid()
	sections, _ := SummarizeConfigChange(a, b)
	require.Empty(t, sections)

	b.Telegram.Token = "secret-token"
	b.Scheduler.Timezone = "UTC"
	b.Storage.Driver = "sqlite"
	sections, attrs := SummarizeConfigChange(a, b)
	require.Equal(t, []string{"scheduler", "storage", "telegram"}, sections)
	require.NotEmpty(t, attrs)
	require.Equal(t, []string{"storage"}, RestartRequired(sections))
}

func TestWatchPublishesValidChanges(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	body := `{"telegram": {"token": "t", "group_id": -1, "allowed_user_ids": [1]}, "scheduler": {"timezone": "%s"}}`
	p := writeFile(t, dir, "config.json", strings.Replace(body, "%s", "UTC", 1))

	m := NewManager(p)
	m.SetLookup(envMap(nil))
	m.debounce = 20 * time.Millisecond
	_, err := m.Load()
	require.NoError(t, err)

	sub := m.Subscribe(4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	// An invalid timezone is rejected and nothing is published.
	writeFile(t, dir, "config.json", strings.Replace(body, "%s", "Nowhere/City", 1))
	time.Sleep(300 * time.Millisecond)
	require.Len(t, sub, 0)
	require.Equal(t, "UTC", m.Get().Scheduler.Timezone)

	writeFile(t, dir, "config.json", strings.Replace(body, "%s", "Europe/Berlin", 1))
	select {
	case cfg := <-sub:
		require.Equal(t, "Europe/Berlin", cfg.Scheduler.Timezone)
	case <-time.After(5 * time.Second):
		t.Fatal("config change not published")
	}
	require.Equal(t, "Europe/Berlin", m.Get().Scheduler.Timezone)
}

func TestLoadDotEnv(t *testing.T) {
	const key = "POLLBOT_TEST_DOTENV_KEY"
	p := writeFile(t, t.TempDir(), ".env", key+"=from-file\n")
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), p))
	require.Equal(t, "from-file", os.Getenv(key))
}
