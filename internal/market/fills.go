package market

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Fill is one execution reported on the userFills channel.
type Fill struct {
	Coin          string          `json:"coin"`
	Price         decimal.Decimal `json:"px"`
	Size          decimal.Decimal `json:"sz"`
	Side          string          `json:"side"` // "B" or "A"
	Time          int64           `json:"time"`
	StartPosition decimal.Decimal `json:"startPosition"`
	Dir           string          `json:"dir"`
	ClosedPnl     decimal.Decimal `json:"closedPnl"`
	Hash          string          `json:"hash"`
	Oid           uint64          `json:"oid"`
	Crossed       bool            `json:"crossed"`
	Fee           decimal.Decimal `json:"fee"`
	Tid           uint64          `json:"tid"`
}

func (f Fill) IsBuy() bool { return f.Side == "B" }

type userFillsData struct {
	IsSnapshot bool   `json:"isSnapshot"`
	User       string `json:"user"`
	Fills      []Fill `json:"fills"`
}

func (s *Stream) applyFills(data userFillsData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data.IsSnapshot {
		s.fills = s.fills[:0]
	}
	seen := make(map[uint64]struct{}, len(s.fills))
	for _, f := range s.fills {
		seen[f.Tid] = struct{}{}
	}
	for _, f := range data.Fills {
		if _, dup := seen[f.Tid]; dup && f.Tid != 0 {
			continue
		}
		s.fills = append(s.fills, f)
	}
	if over := len(s.fills) - maxFills; over > 0 {
		s.fills = append([]Fill(nil), s.fills[over:]...)
	}
}

// Fills returns up to limit of the most recent fills, newest last. An empty
// coin matches every coin.
func (s *Stream) Fills(coin string, limit int) []Fill {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Fill, 0)
	for _, f := range s.fills {
		if coin == "" || strings.EqualFold(f.Coin, coin) {
			out = append(out, f)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
