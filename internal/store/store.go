package store

import (
	"sync"
	"time"

	"github.com/adred-codev/kvserver/internal/kverr"
)

// Store is the mapping from key to Value (C2), guarded by a single mutex
// per §5 ("The store is guarded by a single mutex. Hold-time must be
// bounded to local operations"). Expired entries are removed lazily on
// next access, never by a background sweep — matching §3's "behaves as
// absent on the next access to it".
type Store struct {
	mu   sync.Mutex
	data map[string]*Value
}

func New() *Store {
	return &Store{data: make(map[string]*Value)}
}

// Lock/Unlock expose the store's coarse mutex directly so callers that
// must mutate the store and then, under a strict lock-ordering discipline,
// signal a different registry (waiters, replicas) can do so without a
// second internal critical section — see §5's "mutate store → release
// store lock → acquire waiter-registry lock → signal" ordering.
func (s *Store) Lock()   { s.mu.Lock() }
func (s *Store) Unlock() { s.mu.Unlock() }

// get returns the live value for key, lazily deleting it if expired. Must
// be called with the lock held.
func (s *Store) get(key string, now time.Time) (*Value, bool) {
	v, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if v.expired(now) {
		delete(s.data, key)
		return nil, false
	}
	return v, true
}

// Get returns the live value at key, or (nil, false) if absent/expired.
func (s *Store) Get(key string) (*Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(key, time.Now())
}

// Set installs v at key unconditionally, overwriting any previous value.
func (s *Store) Set(key string, v *Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = v
}

// Delete removes key; returns whether it was present (and live).
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.get(key, time.Now())
	if ok {
		delete(s.data, key)
	}
	return ok
}

// Exists reports whether key is present and live.
func (s *Store) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.get(key, time.Now())
	return ok
}

// TypeOf returns the type of the live value at key, or TypeNone if absent.
func (s *Store) TypeOf(key string) Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.get(key, time.Now())
	if !ok {
		return TypeNone
	}
	return v.Type
}

// Expire sets an absolute deadline on key; returns false if key is absent.
func (s *Store) Expire(key string, deadline time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.get(key, time.Now())
	if !ok {
		return false
	}
	v.Deadline = deadline
	return true
}

// Persist removes any expiry on key; returns whether a deadline was
// cleared.
func (s *Store) Persist(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.get(key, time.Now())
	if !ok || v.Deadline.IsZero() {
		return false
	}
	v.Deadline = time.Time{}
	return true
}

// TTL returns the remaining time to live, ok=false if key is absent,
// and hasExpiry=false if key exists but carries no deadline.
func (s *Store) TTL(key string) (ttl time.Duration, hasExpiry bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, present := s.get(key, time.Now())
	if !present {
		return 0, false, false
	}
	if v.Deadline.IsZero() {
		return 0, false, true
	}
	d := time.Until(v.Deadline)
	if d < 0 {
		d = 0
	}
	return d, true, true
}

// Keys returns all live keys matching the glob pattern.
func (s *Store) Keys(pattern string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var out []string
	for k, v := range s.data {
		if v.expired(now) {
			continue
		}
		if MatchGlob(pattern, k) {
			out = append(out, k)
		}
	}
	return out
}

// WithString fetches the string value at key (nil, existed=false if absent)
// and invokes fn under the store lock; a non-nil value fn returns is stored
// at key. If the key holds a non-string value, it returns ErrWrongType and
// fn is not called.
func (s *Store) WithString(key string, fn func(v *Value, existed bool) *Value) (*Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.get(key, time.Now())
	if ok && existing.Type != TypeString {
		return nil, kverr.ErrWrongType
	}
	result := fn(existing, ok)
	if result != nil {
		s.data[key] = result
	}
	return result, nil
}

// WithList fetches the list at key (creating it if absent and
// createIfAbsent is set, otherwise passing nil) and invokes fn under the
// store lock, returning whatever fn returns.
func (s *Store) WithList(key string, createIfAbsent bool, fn func(l *List) int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.get(key, time.Now())
	if !ok {
		if !createIfAbsent {
			return fn(nil), nil
		}
		v = &Value{Type: TypeList, List: NewList()}
		s.data[key] = v
	} else if v.Type != TypeList {
		return 0, kverr.ErrWrongType
	}
	return fn(v.List), nil
}

// WithStream fetches the stream at key (creating it if absent and
// createIfAbsent is set, otherwise passing nil) and invokes fn under the
// store lock.
func (s *Store) WithStream(key string, createIfAbsent bool, fn func(st *Stream) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.get(key, time.Now())
	if !ok {
		if !createIfAbsent {
			return fn(nil)
		}
		v = &Value{Type: TypeStream, Stream: NewStream()}
		s.data[key] = v
	} else if v.Type != TypeStream {
		return kverr.ErrWrongType
	}
	return fn(v.Stream)
}

// Len reports the number of live keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	n := 0
	for _, v := range s.data {
		if !v.expired(now) {
			n++
		}
	}
	return n
}
