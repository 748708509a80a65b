package keystore

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value      []byte
	expiration time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiration.IsZero() && !now.Before(e.expiration)
}

// MemoryStore is an in-process Store. Expired entries are dropped lazily on
// access and by Sweep.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

func (s *MemoryStore) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

// lookup returns a live entry; the caller holds s.mu
func (s *MemoryStore) lookup(key string) (memoryEntry, bool) {
	entry, ok := s.items[key]
	if !ok {
		return memoryEntry{}, false
	}
	if entry.expired(s.now()) {
		delete(s.items, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lookup(key)
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), entry.value...), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = memoryEntry{
		value:      append([]byte(nil), value...),
		expiration: s.deadline(ttl),
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lookup(key)
	if !ok {
		return ErrNotFound
	}
	entry.expiration = s.deadline(ttl)
	s.items[key] = entry
	return nil
}

func (s *MemoryStore) Take(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lookup(key)
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.items, key)
	return entry.value, nil
}

// Sweep removes every expired entry and returns how many were dropped
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.items {
		if entry.expired(now) {
			delete(s.items, key)
			removed++
		}
	}
	return removed
}

// Len counts entries including ones that expired but were not yet swept
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *MemoryStore) Close() error {
	return nil
}
