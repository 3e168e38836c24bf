package manager

import (
	"context"
	"sync"
	"time"
)

// NonceFloor reserves nonces across every process signing for one wallet.
// Reserve returns a value >= candidate that no other caller has received.
type NonceFloor interface {
	Reserve(ctx context.Context, candidate uint64) (uint64, error)
}

// NonceManager issues exchange nonces. A nonce is a millisecond timestamp;
// the exchange rejects reuse, so issued values are strictly increasing even
// when several are requested within the same millisecond or the clock steps back.
type NonceManager struct {
	mu    sync.Mutex
	last  uint64
	now   func() time.Time
	floor NonceFloor
}

func NewNonceManager() *NonceManager {
	return &NonceManager{now: time.Now}
}

// NewNonceManagerWithClock is for tests.
func NewNonceManagerWithClock(now func() time.Time) *NonceManager {
	return &NonceManager{now: now}
}

// WithFloor shares the nonce sequence with other processes through f.
func (m *NonceManager) WithFloor(f NonceFloor) *NonceManager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.floor = f
	return m
}

// Reserve is Next followed by a reservation against the shared floor. When
// the floor is unreachable the local nonce is returned with the error; the
// exchange still rejects a reused nonce.
func (m *NonceManager) Reserve(ctx context.Context) (uint64, error) {
	n := m.Next()
	m.mu.Lock()
	floor := m.floor
	m.mu.Unlock()
	if floor == nil {
		return n, nil
	}
	got, err := floor.Reserve(ctx, n)
	if err != nil {
		return n, err
	}
	m.Observe(got)
	return got, nil
}

// Next returns max(now_ms, last+1).
func (m *NonceManager) Next() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := uint64(m.now().UnixMilli())
	if n <= m.last {
		n = m.last + 1
	}
	m.last = n
	return n
}

// Observe raises the floor to n, e.g. after the exchange reports a newer nonce.
func (m *NonceManager) Observe(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > m.last {
		m.last = n
	}
}

func (m *NonceManager) Last() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
