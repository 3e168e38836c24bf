package market

import (
	"time"

	"github.com/shopspring/decimal"
)

type midEntry struct {
	px decimal.Decimal
	at time.Time
}

func (s *Stream) applyMids(mids map[string]string) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for coin, raw := range mids {
		px, err := decimal.NewFromString(raw)
		if err != nil || !px.IsPositive() {
			continue
		}
		s.mids[coin] = midEntry{px: px, at: now}
	}
}

// Mid returns the last streamed mid for coin.
func (s *Stream) Mid(coin string) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.mids[coin]
	if !ok {
		return decimal.Zero, false
	}
	return e.px, true
}

// MidAge reports how long ago coin's mid was last updated.
func (s *Stream) MidAge(coin string) (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.mids[coin]
	if !ok {
		return 0, false
	}
	return time.Since(e.at), true
}

// Mids returns a copy of every streamed mid as wire strings, the same shape
// the allMids info request returns.
func (s *Stream) Mids() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.mids))
	for coin, e := range s.mids {
		out[coin] = e.px.String()
	}
	return out
}
