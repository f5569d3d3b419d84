package tgui

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

var ErrTokenNotFound = errors.New("tgui: token not found")

// TokenStore keeps callback payloads server-side so callback_data only
// carries a short token. Entries expire after the TTL.
//
// Tokens never contain ':' and are safe as a callback payload.
type TokenStore struct {
	mu sync.Mutex

	max int
	ttl time.Duration
	now func() time.Time

	// expired entries are swept at most once per sweepEvery
	sweepEvery time.Duration
	nextSweep  time.Time

	m map[string]tokenEntry
}

type tokenEntry struct {
	b   []byte
	exp time.Time
}

// NewTokenStore creates a TokenStore with ttl=15m and max=5000 entries.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		ttl:        15 * time.Minute,
		max:        5000,
		now:        time.Now,
		sweepEvery: time.Minute,
		m:          map[string]tokenEntry{},
	}
}

// WithTTL sets the token TTL.
func (s *TokenStore) WithTTL(ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	s.mu.Lock()
	s.ttl = ttl
	s.mu.Unlock()
	return s
}

// WithMax sets the maximum number of live entries.
func (s *TokenStore) WithMax(n int) *TokenStore {
	if n <= 0 {
		n = 5000
	}
	s.mu.Lock()
	s.max = n
	s.mu.Unlock()
	return s
}

// WithClock overrides the time source.
func (s *TokenStore) WithClock(now func() time.Time) *TokenStore {
	if now == nil {
		now = time.Now
	}
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

// PutBytes stores b and returns a short token ("~" + 8 base64url chars).
func (s *TokenStore) PutBytes(b []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	var buf [6]byte
	for {
		_, _ = rand.Read(buf[:])
		tok := "~" + base64.RawURLEncoding.EncodeToString(buf[:])
		if _, exists := s.m[tok]; exists {
			continue
		}
		s.m[tok] = tokenEntry{b: append([]byte(nil), b...), exp: now.Add(s.ttl)}
		s.evictLocked()
		return tok
	}
}

// PutJSON stores JSON-marshaled v and returns a token.
func (s *TokenStore) PutJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return s.PutBytes(b), nil
}

// GetBytes returns the bytes stored under tok.
func (s *TokenStore) GetBytes(tok string) ([]byte, bool) {
	if tok == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	e, ok := s.m[tok]
	if !ok {
		return nil, false
	}
	if now.After(e.exp) {
		delete(s.m, tok)
		return nil, false
	}
	return append([]byte(nil), e.b...), true
}

// GetJSON unmarshals the payload stored under tok into out.
func (s *TokenStore) GetJSON(tok string, out any) error {
	b, ok := s.GetBytes(tok)
	if !ok {
		return ErrTokenNotFound
	}
	return json.Unmarshal(b, out)
}

// Delete drops tok.
func (s *TokenStore) Delete(tok string) {
	s.mu.Lock()
	delete(s.m, tok)
	s.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (s *TokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func (s *TokenStore) sweepLocked(now time.Time) {
	if now.Before(s.nextSweep) {
		return
	}
	for k, e := range s.m {
		if now.After(e.exp) {
			delete(s.m, k)
		}
	}
	s.nextSweep = now.Add(s.sweepEvery)
}

func (s *TokenStore) evictLocked() {
	over := len(s.m) - s.max
	if s.max <= 0 || over <= 0 {
		return
	}
	// Arbitrary eviction; map order is random enough for a UI cache.
	for k := range s.m {
		delete(s.m, k)
		over--
		if over <= 0 {
			return
		}
	}
}
