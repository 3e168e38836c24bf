package service

import (
	"context"
	"sync"
	"time"
)

type dailyUsage struct {
	orders int
	volume float64
}

// RiskUsageStore keeps the current UTC day's order count and notional per
// account. Buckets from earlier days are dropped on the next write.
type RiskUsageStore struct {
	mu    sync.Mutex
	day   string
	usage map[string]dailyUsage
	now   func() time.Time
}

func NewRiskUsageStore() *RiskUsageStore {
	return &RiskUsageStore{usage: make(map[string]dailyUsage), now: time.Now}
}

func (s *RiskUsageStore) GetDailyUsage(_ context.Context, accountID string) (int, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rollover() {
		return 0, 0, nil
	}
	u := s.usage[accountID]
	return u.orders, u.volume, nil
}

func (s *RiskUsageStore) AddDailyUsage(_ context.Context, accountID string, orders int, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover()
	u := s.usage[accountID]
	u.orders += orders
	u.volume += amount
	s.usage[accountID] = u
	return nil
}

// rollover resets every bucket when the UTC day changed. Caller holds mu.
func (s *RiskUsageStore) rollover() bool {
	today := s.now().UTC().Format("2006-01-02")
	if today == s.day {
		return false
	}
	s.day = today
	s.usage = make(map[string]dailyUsage)
	return true
}
