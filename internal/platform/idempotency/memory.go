package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	fingerprint string
	pending     bool
	record      Record
	expiresAt   time.Time
}

// MemoryStore keeps idempotency records in process memory. Records are evicted
// lazily once their TTL passes.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	clock   func() time.Time
}

// MemoryOption customises MemoryStore behaviour.
type MemoryOption func(*MemoryStore)

// WithMemoryTTL overrides the record retention period.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMemoryClock injects a custom clock, primarily for tests.
func WithMemoryClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewMemoryStore constructs an empty in-memory idempotency store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     DefaultTTL,
		clock:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Reserve claims the key or reports what is already stored under it.
func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	s.sweep(now)

	entry, ok := s.entries[key]
	if !ok {
		s.entries[key] = &memoryEntry{
			fingerprint: fingerprint,
			pending:     true,
			expiresAt:   now.Add(s.ttl),
		}
		return Reservation{State: ReservationNew}, nil
	}

	if entry.fingerprint != fingerprint {
		return Reservation{}, ErrFingerprintMismatch
	}
	if entry.pending {
		return Reservation{State: ReservationInFlight}, nil
	}
	return Reservation{State: ReservationReplay, Record: entry.record}, nil
}

// Complete stores the response to replay for subsequent requests with the key.
func (s *MemoryStore) Complete(_ context.Context, key string, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	record.StoredAt = now
	record.ExpiresAt = now.Add(s.ttl)
	s.entries[key] = &memoryEntry{
		fingerprint: record.Fingerprint,
		record:      record,
		expiresAt:   record.ExpiresAt,
	}
	return nil
}

// Release frees a pending reservation so the request can be retried.
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok && entry.pending {
		delete(s.entries, key)
	}
	return nil
}

func (s *MemoryStore) sweep(now time.Time) {
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
}
