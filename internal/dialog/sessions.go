package dialog

import (
	"sync"
	"time"
)

// Key identifies a session: one per user per chat.
type Key struct {
	ChatID int64
	UserID int64
}

// Sessions is the live session table.
type Sessions struct {
	mu sync.Mutex
	m  map[Key]*Session
}

func NewSessions() *Sessions {
	return &Sessions{m: map[Key]*Session{}}
}

func (t *Sessions) Get(k Key) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.m[k]
	return s, ok
}

// Put stores s, replacing any session of the same user in the same chat.
func (t *Sessions) Put(s *Session) {
	t.mu.Lock()
	t.m[Key{ChatID: s.ChatID, UserID: s.UserID}] = s
	t.mu.Unlock()
}

// Delete drops the session under k when its id is still id.
func (t *Sessions) Delete(k Key, id string) {
	t.mu.Lock()
	if s, ok := t.m[k]; ok && s.ID == id {
		delete(t.m, k)
	}
	t.mu.Unlock()
}

// Prune drops sessions untouched since before cutoff and returns how many.
func (t *Sessions) Prune(cutoff time.Time) int {
	t.mu.Lock()
	all := make([]*Session, 0, len(t.m))
	for _, s := range t.m {
		all = append(all, s)
	}
	t.mu.Unlock()

	n := 0
	for _, s := range all {
		s.mu.Lock()
		old, k, id := s.Touched.Before(cutoff), Key{ChatID: s.ChatID, UserID: s.UserID}, s.ID
		s.mu.Unlock()
		if old {
			t.Delete(k, id)
			n++
		}
	}
	return n
}

func (t *Sessions) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}
