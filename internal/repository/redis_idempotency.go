package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GoPolymarket/hypergate/internal/manager"
)

// RedisIdempotencyStore shares in-flight order locks and HTTP idempotency
// records across processes. Every key expires after ttl, locks included.
type RedisIdempotencyStore struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

func NewRedisIdempotencyStore(client redis.Cmdable, ttl time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotencyStore{
		client: client,
		ttl:    ttl,
		prefix: "idem:",
	}
}

var _ manager.IdempotencyStore = (*RedisIdempotencyStore)(nil)

func (s *RedisIdempotencyStore) GetOrLock(ctx context.Context, key string) (*manager.IdempotencyRecord, bool) {
	payload := encodeIdemRecord(manager.IdempotencyRecord{
		CreatedAt:  time.Now().UTC(),
		Processing: true,
	})
	ok, err := s.client.SetNX(ctx, s.prefix+key, payload, s.ttl).Result()
	if err == nil && ok {
		return nil, false
	}

	raw, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		// Unreachable or just expired: treat as in progress rather than
		// letting a duplicate through.
		return &manager.IdempotencyRecord{Processing: true, CreatedAt: time.Now().UTC()}, true
	}
	rec, err := decodeIdemRecord(raw)
	if err != nil {
		return &manager.IdempotencyRecord{Processing: true, CreatedAt: time.Now().UTC()}, true
	}
	return rec, true
}

func (s *RedisIdempotencyStore) Save(ctx context.Context, key string, status int, body []byte) {
	payload := encodeIdemRecord(manager.IdempotencyRecord{
		Status:    status,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	})
	_ = s.client.Set(ctx, s.prefix+key, payload, s.ttl).Err()
}

func (s *RedisIdempotencyStore) Unlock(ctx context.Context, key string) {
	_ = s.client.Del(ctx, s.prefix+key).Err()
}

type idemWire struct {
	Status     int    `json:"status"`
	Body       []byte `json:"body"` // base64 via encoding/json
	CreatedAt  int64  `json:"created_at"`
	Processing bool   `json:"processing"`
}

func encodeIdemRecord(rec manager.IdempotencyRecord) string {
	data, _ := json.Marshal(idemWire{
		Status:     rec.Status,
		Body:       rec.Body,
		CreatedAt:  rec.CreatedAt.Unix(),
		Processing: rec.Processing,
	})
	return string(data)
}

func decodeIdemRecord(raw string) (*manager.IdempotencyRecord, error) {
	var wire idemWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, err
	}
	return &manager.IdempotencyRecord{
		Status:     wire.Status,
		Body:       wire.Body,
		CreatedAt:  time.Unix(wire.CreatedAt, 0).UTC(),
		Processing: wire.Processing,
	}, nil
}
