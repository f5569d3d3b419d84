package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	logx "pollbot/pkg/logx"
)

// ErrCorrupt marks a backend read that found data it could not decode.
var ErrCorrupt = errors.New("schedules corrupt")

// Backend persists the whole record collection. A missing backing file or
// table reads as an empty collection. Decode failures wrap ErrCorrupt.
type Backend interface {
	ReadSchedules(ctx context.Context) ([]Record, error)
	WriteSchedules(ctx context.Context, recs []Record) error
}

// RebuildFunc resynchronizes whatever is derived from the stored records.
type RebuildFunc func(ctx context.Context) error

// Store is the single writer of the record collection.
//
// ReplaceAll holds mu across read, write and the rebuild hook, so two
// mutations never interleave and no caller sees jobs for a collection that
// is only half written.
type Store struct {
	mu      sync.Mutex
	backend Backend
	log     logx.Logger
	rebuild RebuildFunc
}

func NewStore(b Backend, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{backend: b, log: log}
}

// OnChange registers the hook run after every successful write.
func (s *Store) OnChange(fn RebuildFunc) {
	s.mu.Lock()
	s.rebuild = fn
	s.mu.Unlock()
}

// Load returns all valid records sorted by id. Read or decode failures are
// logged and yield an empty collection.
func (s *Store) Load(ctx context.Context) []Record {
	recs, err := s.backend.ReadSchedules(ctx)
	if err != nil {
		s.log.Warn("schedules unreadable; treating as empty", logx.Err(err))
		return []Record{}
	}
	return s.sanitize(recs)
}

// Get returns the record stored under id.
func (s *Store) Get(ctx context.Context, id string) (Record, bool) {
	for _, r := range s.Load(ctx) {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// ReplaceAll drops the record with id, inserts rec when it is non-nil, writes
// the collection and runs the rebuild hook. A nil rec deletes.
func (s *Store) ReplaceAll(ctx context.Context, id string, rec *Record) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRecord)
	}
	var next *Record
	if rec != nil {
		r := rec.Clone()
		if r.ID == "" {
			r.ID = id
		}
		if r.ID != id {
			return fmt.Errorf("%w: id %q does not match %q", ErrInvalidRecord, r.ID, id)
		}
		if err := r.Validate(); err != nil {
			return err
		}
		next = &r
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.current(ctx)
	if err != nil {
		return err
	}
	out := make([]Record, 0, len(cur)+1)
	for _, r := range cur {
		if r.ID != id {
			out = append(out, r)
		}
	}
	if next != nil {
		out = append(out, *next)
	}
	sortRecords(out)

	if err := s.backend.WriteSchedules(ctx, out); err != nil {
		return fmt.Errorf("write schedules: %w", err)
	}
	s.log.Info("schedules saved",
		logx.String("id", id),
		logx.Bool("deleted", next == nil),
		logx.Int("count", len(out)),
	)

	if s.rebuild != nil {
		if err := s.rebuild(ctx); err != nil {
			return fmt.Errorf("rebuild after %s: %w", id, err)
		}
	}
	return nil
}

// current is Load for mutations. Only a corrupt collection reads as empty;
// any other read failure aborts the write.
func (s *Store) current(ctx context.Context) ([]Record, error) {
	recs, err := s.backend.ReadSchedules(ctx)
	switch {
	case err == nil:
		return s.sanitize(recs), nil
	case errors.Is(err, ErrCorrupt):
		s.log.Warn("schedules corrupt; overwriting", logx.Err(err))
		return []Record{}, nil
	default:
		return nil, fmt.Errorf("read schedules: %w", err)
	}
}

func (s *Store) sanitize(recs []Record) []Record {
	seen := make(map[string]int, len(recs))
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		if err := r.Validate(); err != nil {
			s.log.Warn("skipping invalid schedule", logx.String("id", r.ID), logx.Err(err))
			continue
		}
		// Later duplicates win, matching the overwrite semantics of ReplaceAll.
		if i, ok := seen[r.ID]; ok {
			out[i] = r.Clone()
			continue
		}
		seen[r.ID] = len(out)
		out = append(out, r.Clone())
	}
	sortRecords(out)
	return out
}

func sortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}
