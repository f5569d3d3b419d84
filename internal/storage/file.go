package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	yaml "go.yaml.in/yaml/v3"

	"pollbot/internal/schedule"
	logx "pollbot/pkg/logx"
)

// fileStore keeps the collection in one document. Writes go to a temp file
// in the same directory and are renamed over the original, so readers see
// either the old or the new collection.
type fileStore struct {
	log  logx.Logger
	path string
	yaml bool

	mu sync.Mutex
}

type fileDoc struct {
	Version   int               `json:"version" yaml:"version"`
	Schedules []schedule.Record `json:"schedules" yaml:"schedules"`
}

const fileVersion = 1

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = DefaultFilePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	return &fileStore{
		log:  log,
		path: path,
		yaml: ext == ".yaml" || ext == ".yml",
	}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) ReadSchedules(ctx context.Context) ([]schedule.Record, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}

	var doc fileDoc
	if s.yaml {
		err = yaml.Unmarshal(b, &doc)
	} else {
		err = json.Unmarshal(b, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", schedule.ErrCorrupt, s.path, err)
	}
	if doc.Version > fileVersion {
		return nil, fmt.Errorf("%w: decode %s: unsupported version %d", schedule.ErrCorrupt, s.path, doc.Version)
	}
	return doc.Schedules, nil
}

func (s *fileStore) WriteSchedules(ctx context.Context, recs []schedule.Record) error {
	_ = ctx
	if recs == nil {
		recs = []schedule.Record{}
	}
	doc := fileDoc{Version: fileVersion, Schedules: recs}

	var (
		b   []byte
		err error
	)
	if s.yaml {
		b, err = yaml.Marshal(doc)
	} else {
		b, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	s.log.Debug("schedules file written", logx.String("path", s.path), logx.Int("count", len(recs)))
	return nil
}
