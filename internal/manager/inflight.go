package manager

import (
	"context"
	"sync"
	"time"
)

type IdempotencyRecord struct {
	Status     int
	Body       []byte
	CreatedAt  time.Time
	Processing bool // locked, outcome not known yet
}

// IdempotencyStore guards a key against concurrent or repeated submission.
type IdempotencyStore interface {
	// GetOrLock returns (record, true) if the key exists; (nil, false) if it was
	// newly locked by the caller.
	GetOrLock(ctx context.Context, key string) (*IdempotencyRecord, bool)
	Save(ctx context.Context, key string, status int, body []byte)
	Unlock(ctx context.Context, key string)
}

type memEntry struct {
	rec       IdempotencyRecord
	expiresAt time.Time
}

// InMemIdempotencyStore keeps records in process memory. Locks and results
// both expire after ttl, so a key left locked by an ambiguous outcome is
// eventually released.
type InMemIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]memEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewInMemIdempotencyStore(ttl time.Duration) *InMemIdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &InMemIdempotencyStore{
		records: make(map[string]memEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *InMemIdempotencyStore) GetOrLock(_ context.Context, key string) (*IdempotencyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry, ok := s.records[key]; ok && now.Before(entry.expiresAt) {
		rec := entry.rec
		return &rec, true
	}

	s.records[key] = memEntry{
		rec:       IdempotencyRecord{Processing: true, CreatedAt: now},
		expiresAt: now.Add(s.ttl),
	}
	s.gcLocked(now)
	return nil, false
}

func (s *InMemIdempotencyStore) Save(_ context.Context, key string, status int, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.records[key] = memEntry{
		rec:       IdempotencyRecord{Status: status, Body: body, CreatedAt: now},
		expiresAt: now.Add(s.ttl),
	}
}

func (s *InMemIdempotencyStore) Unlock(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
}

func (s *InMemIdempotencyStore) gcLocked(now time.Time) {
	if len(s.records) < 1024 {
		return
	}
	for k, e := range s.records {
		if !now.Before(e.expiresAt) {
			delete(s.records, k)
		}
	}
}
