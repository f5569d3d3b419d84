package storage

import (
	"errors"
	"time"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

// Config configures storage.
//
// Driver values:
//   - "file" (default): JSON, or YAML when Path ends in .yaml/.yml
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

const (
	DefaultFilePath   = "./data/schedules.json"
	DefaultSQLitePath = "./data/pollbot.db"
)
