package model

import "github.com/shopspring/decimal"

type IntentAction string

const (
	ActionBuy              IntentAction = "buy"
	ActionSell             IntentAction = "sell"
	ActionHold             IntentAction = "hold"
	ActionClosePosition    IntentAction = "close_position"
	ActionIncreasePosition IntentAction = "increase_position"
	ActionReducePosition   IntentAction = "reduce_position"
	ActionChangeLeverage   IntentAction = "change_leverage"
)

func (a IntentAction) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold, ActionClosePosition,
		ActionIncreasePosition, ActionReducePosition, ActionChangeLeverage:
		return true
	}
	return false
}

// Opens reports whether the action adds exposure.
func (a IntentAction) Opens() bool {
	return a == ActionBuy || a == ActionSell || a == ActionIncreasePosition
}

// Intent is one trading decision for one coin.
type Intent struct {
	Coin       string          `json:"coin"`
	Action     IntentAction    `json:"action"`
	Size       decimal.Decimal `json:"size"`
	Leverage   int             `json:"leverage"`
	Confidence float64         `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
	// Side is only used by increase_position, where the direction is not
	// implied by the action.
	Side string `json:"side,omitempty"`
}

type PositionInfo struct {
	Coin          string          `json:"coin"`
	Size          decimal.Decimal `json:"size"` // signed, negative is short
	EntryPx       decimal.Decimal `json:"entry_px"`
	UnrealizedPnl decimal.Decimal `json:"unrealized_pnl"`
	MarginUsed    decimal.Decimal `json:"margin_used"`
	Leverage      int             `json:"leverage"`
}

type Portfolio struct {
	TotalBalance decimal.Decimal         `json:"total_balance"`
	Available    decimal.Decimal         `json:"available"`
	MarginUsed   decimal.Decimal         `json:"margin_used"`
	MarginUsage  decimal.Decimal         `json:"margin_usage"` // MarginUsed / TotalBalance
	Positions    map[string]PositionInfo `json:"positions"`
}

func (p *Portfolio) Position(coin string) (PositionInfo, bool) {
	if p == nil || p.Positions == nil {
		return PositionInfo{}, false
	}
	pos, ok := p.Positions[coin]
	if !ok || pos.Size.IsZero() {
		return PositionInfo{}, false
	}
	return pos, true
}

type MarketSnapshot struct {
	Coin      string          `json:"coin"`
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change_24h"` // percent
	Volume24h decimal.Decimal `json:"volume_24h"` // notional
	Funding   decimal.Decimal `json:"funding"`
}
