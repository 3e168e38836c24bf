package market

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Level is a single aggregated price level.
type Level struct {
	Price  decimal.Decimal `json:"px"`
	Size   decimal.Decimal `json:"sz"`
	Orders int             `json:"n"`
}

// Orderbook is the latest l2Book snapshot for one coin.
type Orderbook struct {
	Coin        string
	Bids        []Level // high to low
	Asks        []Level // low to high
	LastUpdated time.Time
	mu          sync.RWMutex
}

func NewOrderbook(coin string) *Orderbook {
	return &Orderbook{
		Coin: coin,
		Bids: make([]Level, 0),
		Asks: make([]Level, 0),
	}
}

// Snapshot replaces the book. l2Book frames always carry the full top of book.
func (ob *Orderbook) Snapshot(bids, asks []Level, at time.Time) {
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })

	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.Bids = bids
	ob.Asks = asks
	ob.LastUpdated = at
}

func (ob *Orderbook) BestBid() (Level, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	if len(ob.Bids) == 0 {
		return Level{}, false
	}
	return ob.Bids[0], true
}

func (ob *Orderbook) BestAsk() (Level, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	if len(ob.Asks) == 0 {
		return Level{}, false
	}
	return ob.Asks[0], true
}

// Mid is the midpoint of the best bid and ask.
func (ob *Orderbook) Mid() (decimal.Decimal, bool) {
	bid, ok := ob.BestBid()
	if !ok {
		return decimal.Zero, false
	}
	ask, ok := ob.BestAsk()
	if !ok {
		return decimal.Zero, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}

// GetCopy returns a copy of the current state.
func (ob *Orderbook) GetCopy() (bids, asks []Level) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	bids = make([]Level, len(ob.Bids))
	copy(bids, ob.Bids)
	asks = make([]Level, len(ob.Asks))
	copy(asks, ob.Asks)
	return
}

type wireLevel struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	N  int    `json:"n"`
}

type bookData struct {
	Coin   string         `json:"coin"`
	Time   int64          `json:"time"`
	Levels [2][]wireLevel `json:"levels"`
}

func parseLevels(raw []wireLevel) []Level {
	out := make([]Level, 0, len(raw))
	for _, l := range raw {
		px, err := decimal.NewFromString(l.Px)
		if err != nil {
			continue
		}
		sz, err := decimal.NewFromString(l.Sz)
		if err != nil || sz.IsZero() {
			continue
		}
		out = append(out, Level{Price: px, Size: sz, Orders: l.N})
	}
	return out
}

func (s *Stream) applyBook(data bookData) {
	s.mu.RLock()
	book, ok := s.books[data.Coin]
	s.mu.RUnlock()
	if !ok {
		return
	}
	at := time.Now()
	if data.Time > 0 {
		at = time.UnixMilli(data.Time)
	}
	book.Snapshot(parseLevels(data.Levels[0]), parseLevels(data.Levels[1]), at)
}

// GetBook returns the book for coin, or nil when it was never subscribed.
func (s *Stream) GetBook(coin string) *Orderbook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.books[coin]
}
