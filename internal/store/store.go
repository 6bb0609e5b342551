// Package store implements the single in-memory keyspace: string
// entries with optional expiry and stream entries. Expiry is lazy — an
// expired string is only reaped when next observed; there is no
// background scanner.
package store

import (
	"sync"
	"time"

	"github.com/gobwas/glob"

	"redisd/internal/stream"
)

// kind tags which variant of the keyspace value an entry holds, so
// TYPE and the command handlers can branch on the tag directly instead
// of inspecting the value's shape.
type kind int

const (
	kindString kind = iota
	kindStream
)

type entry struct {
	kind      kind
	value     []byte
	expiresAt *time.Time
	stream    *stream.Stream
}

func (e *entry) expired(now time.Time) bool {
	return e.kind == kindString && e.expiresAt != nil && !e.expiresAt.After(now)
}

// Store is the single process-wide keyspace, guarded by one mutex
// rather than sharded per key, since command handlers never hold the
// lock across a suspension point.
type Store struct {
	mu   sync.RWMutex
	data map[string]*entry
	// order preserves insertion order for KEYS iteration.
	order []string
}

func New() *Store {
	return &Store{data: make(map[string]*entry)}
}

// Set overwrites key unconditionally. expiresAt is nil for no expiry.
func (s *Store) Set(key string, value []byte, expiresAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; !exists {
		s.order = append(s.order, key)
	}
	s.data[key] = &entry{kind: kindString, value: value, expiresAt: expiresAt}
}

// Get returns the string value for key, or (nil, false) if absent or
// expired. An expired entry is deleted as a side effect.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok || e.kind != kindString {
		return nil, false
	}
	if e.expired(time.Now()) {
		s.deleteLocked(key)
		return nil, false
	}
	return e.value, true
}

// Del removes key, returning whether it was present (and not expired).
func (s *Store) Del(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok {
		return false
	}
	present := !e.expired(time.Now())
	s.deleteLocked(key)
	return present
}

func (s *Store) deleteLocked(key string) {
	delete(s.data, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Type reports "string", "stream", or "none".
func (s *Store) Type(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok {
		return "none"
	}
	if e.expired(time.Now()) {
		s.deleteLocked(key)
		return "none"
	}
	if e.kind == kindStream {
		return "stream"
	}
	return "string"
}

// Keys returns every live key matching the shell-style glob pattern,
// in insertion order.
func (s *Store) Keys(pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var out []string
	for _, k := range s.order {
		e := s.data[k]
		if e == nil || e.expired(now) {
			continue
		}
		if g.Match(k) {
			out = append(out, k)
		}
	}
	return out, nil
}

// Stream returns the stream at key, creating an empty one if key is
// absent. Returns an error if key holds a string value.
func (s *Store) Stream(key string) (*stream.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if ok && e.kind == kindString && !e.expired(time.Now()) {
		return nil, errWrongType
	}
	if !ok || e.expired(time.Now()) {
		e = &entry{kind: kindStream, stream: stream.New()}
		s.data[key] = e
		if !ok {
			s.order = append(s.order, key)
		}
	}
	return e.stream, nil
}

// StreamIfExists returns the stream at key without creating one,
// reporting whether it exists (used by XRANGE and XLEN, which must not
// auto-vivify an empty stream).
func (s *Store) StreamIfExists(key string) (*stream.Stream, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok || e.expired(time.Now()) {
		return nil, false, nil
	}
	if e.kind != kindStream {
		return nil, false, errWrongType
	}
	return e.stream, true, nil
}
