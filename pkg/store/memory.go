package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	secret    []byte
	expiresAt time.Time
}

// InMemoryStore keeps commitments in a map guarded by a single mutex.
// Expired entries are dropped lazily on take and in bulk by PurgeExpired.
type InMemoryStore struct {
	lock    sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *InMemoryStore) Put(ctx context.Context, commitment string, secret []byte, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}

	owned := make([]byte, len(secret))
	copy(owned, secret)

	s.lock.Lock()
	defer s.lock.Unlock()

	s.entries[commitment] = memoryEntry{
		secret:    owned,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *InMemoryStore) TakeAndInvalidate(ctx context.Context, commitment string) ([]byte, bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	entry, ok := s.entries[commitment]
	if !ok {
		return nil, false, nil
	}
	delete(s.entries, commitment)

	if !s.now().Before(entry.expiresAt) {
		return nil, false, nil
	}

	return entry.secret, true, nil
}

func (s *InMemoryStore) PurgeExpired(ctx context.Context) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	now := s.now()
	purged := 0
	for commitment, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, commitment)
			purged++
		}
	}

	return purged, nil
}

// Len returns the number of entries held, including expired ones not yet purged.
func (s *InMemoryStore) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.entries)
}

func (s *InMemoryStore) Close(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.entries = make(map[string]memoryEntry)
	return nil
}
