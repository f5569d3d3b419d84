package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"pollbot/internal/schedule"
	logx "pollbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = DefaultSQLitePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) ReadSchedules(ctx context.Context) ([]schedule.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, send_day, poll_day, hour, minute, poll_title, options
		 FROM schedules ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Record
	for rows.Next() {
		var (
			r    schedule.Record
			day  string
			opts string
		)
		if err := rows.Scan(&r.ID, &day, &r.PollDay, &r.Hour, &r.Minute, &r.PollTitle, &opts); err != nil {
			return nil, err
		}
		r.SendDay = schedule.Weekday(day)
		if err := json.Unmarshal([]byte(opts), &r.Options); err != nil {
			return nil, fmt.Errorf("%w: schedule %s: options: %v", schedule.ErrCorrupt, r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// WriteSchedules replaces the table contents in one transaction.
func (s *sqliteStore) WriteSchedules(ctx context.Context, recs []schedule.Record) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM schedules`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO schedules(id, send_day, poll_day, hour, minute, poll_title, options, position)
		 VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range recs {
		opts, mErr := json.Marshal(r.Options)
		if mErr != nil {
			err = mErr
			return err
		}
		if _, err = stmt.ExecContext(ctx, r.ID, string(r.SendDay), r.PollDay, r.Hour, r.Minute, r.PollTitle, string(opts), i); err != nil {
			return err
		}
	}
	return tx.Commit()
}
