package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	kit "pollbot/internal/transport"
)

type Config struct {
	Level    string
	Console  bool
	File     FileConfig
	Telegram TelegramConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// TelegramConfig forwards records at or above MinLevel to the log chat set
// with Service.SetTelegramTarget.
type TelegramConfig struct {
	Enabled    bool
	ThreadID   int
	MinLevel   string
	RatePerSec int
}

const DefaultFilePath = "./pollbot.log"

// TextSender is the part of the transport the Telegram sink needs.
type TextSender interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
}

// Service owns the log outputs and swaps them on Apply.
type Service struct {
	root atomic.Pointer[zerolog.Logger]

	mu   sync.Mutex
	file *os.File
	tg   *telegramSink
}

// New applies cfg and returns the service with a Logger bound to it.
func New(cfg Config, sender TextSender) (*Service, Logger) {
	s := &Service{tg: newTelegramSink(sender)}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// SetTelegramTarget sets the log chat. chatID 0 disables forwarding.
// threadID 0 keeps the thread from the config.
func (s *Service) SetTelegramTarget(chatID int64, threadID int) {
	s.tg.setTarget(chatID, threadID)
}

// Apply rebuilds the writer set. Safe for concurrent use.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, consoleWriter(os.Stdout))
	}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = DefaultFilePath
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logx: open log file %q: %v\n", path, err)
		} else {
			s.file = f
			writers = append(writers, zerolog.SyncWriter(f))
		}
	}

	rps := max(cfg.Telegram.RatePerSec, 1)
	s.tg.configure(parseLevel(cfg.Telegram.MinLevel, zerolog.WarnLevel), rate.NewLimiter(rate.Limit(rps), rps), cfg.Telegram.ThreadID)
	if cfg.Telegram.Enabled {
		s.tg.start()
		writers = append(writers, s.tg)
		if !s.tg.hasTarget() {
			fmt.Fprintln(os.Stderr, "logx: telegram logging enabled but telegram.group_log is not set")
		}
	}

	if len(writers) == 0 {
		writers = append(writers, consoleWriter(os.Stdout))
	}
	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(parseLevel(cfg.Level, zerolog.InfoLevel)).
		With().Timestamp().Logger()
	s.root.Store(&zl)
}

// Close stops the Telegram sink and closes the log file.
func (s *Service) Close() error {
	s.tg.stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
