package storage

import (
	"context"
	"fmt"
	"strings"

	"pollbot/internal/schedule"
	logx "pollbot/pkg/logx"
)

// Store is a schedule backend that owns resources.
type Store interface {
	schedule.Backend
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(context.Background(), cfg, log)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
