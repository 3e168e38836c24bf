package exchange

import "encoding/json"

type AssetInfo struct {
	Name         string `json:"name"`
	SzDecimals   int    `json:"szDecimals"`
	MaxLeverage  int    `json:"maxLeverage"`
	OnlyIsolated bool   `json:"onlyIsolated,omitempty"`
	IsDelisted   bool   `json:"isDelisted,omitempty"`
}

// Meta is the perp universe. An asset's id is its index in Universe.
type Meta struct {
	Universe []AssetInfo `json:"universe"`
}

// AssetCtx is the per-asset market context returned with metaAndAssetCtxs,
// index-aligned with Meta.Universe.
type AssetCtx struct {
	Funding      string  `json:"funding"`
	OpenInterest string  `json:"openInterest"`
	PrevDayPx    string  `json:"prevDayPx"`
	DayNtlVlm    string  `json:"dayNtlVlm"`
	Premium      *string `json:"premium"`
	OraclePx     string  `json:"oraclePx"`
	MarkPx       string  `json:"markPx"`
	MidPx        *string `json:"midPx"`
}

type MarginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalRawUsd     string `json:"totalRawUsd"`
	TotalMarginUsed string `json:"totalMarginUsed"`
}

type Leverage struct {
	Type  string `json:"type"`
	Value int    `json:"value"`
}

type Position struct {
	Coin          string   `json:"coin"`
	Szi           string   `json:"szi"`
	EntryPx       *string  `json:"entryPx"`
	PositionValue string   `json:"positionValue"`
	UnrealizedPnl string   `json:"unrealizedPnl"`
	MarginUsed    string   `json:"marginUsed"`
	Leverage      Leverage `json:"leverage"`
}

type AssetPosition struct {
	Type     string   `json:"type"`
	Position Position `json:"position"`
}

type ClearinghouseState struct {
	MarginSummary  MarginSummary   `json:"marginSummary"`
	Withdrawable   string          `json:"withdrawable"`
	AssetPositions []AssetPosition `json:"assetPositions"`
	Time           int64           `json:"time"`
}

type OpenOrder struct {
	Coin      string `json:"coin"`
	LimitPx   string `json:"limitPx"`
	Oid       uint64 `json:"oid"`
	Side      string `json:"side"`
	Sz        string `json:"sz"`
	Timestamp int64  `json:"timestamp"`
}

// Response is the /exchange envelope. Response is an object on "ok" and a
// bare string on "err".
type Response struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type ResponseBody struct {
	Type string `json:"type"`
	Data *struct {
		Statuses []OrderStatus `json:"statuses"`
	} `json:"data,omitempty"`
}

// OrderStatus is one entry of response.data.statuses; exactly one field is set
// for order actions, and cancel/leverage actions may return the bare string "success".
type OrderStatus struct {
	Resting *struct {
		Oid   uint64 `json:"oid"`
		Cloid string `json:"cloid,omitempty"`
	} `json:"resting,omitempty"`
	Filled *struct {
		TotalSz string `json:"totalSz"`
		AvgPx   string `json:"avgPx"`
		Oid     uint64 `json:"oid"`
	} `json:"filled,omitempty"`
	Error   string `json:"error,omitempty"`
	Success bool   `json:"-"`
}

func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if str == "success" {
			s.Success = true
		} else {
			s.Error = str
		}
		return nil
	}
	type plain OrderStatus
	return json.Unmarshal(data, (*plain)(s))
}
