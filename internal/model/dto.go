package model

import "github.com/shopspring/decimal"

// OrderRequest is the body of POST /v1/orders.
type OrderRequest struct {
	Coin       string          `json:"coin" binding:"required"`
	Side       string          `json:"side" binding:"required,oneof=buy sell BUY SELL"`
	Size       decimal.Decimal `json:"size"`
	Price      decimal.Decimal `json:"price"` // zero means reference price
	ReduceOnly bool            `json:"reduce_only,omitempty"`
	Tif        string          `json:"tif,omitempty"` // Gtc, Ioc, Alo
	Cloid      string          `json:"cloid,omitempty"`
	Leverage   int             `json:"leverage,omitempty"` // set before placing when > 0
}

type LeverageRequest struct {
	Coin     string `json:"coin" binding:"required"`
	Leverage int    `json:"leverage" binding:"required,min=1"`
	IsCross  *bool  `json:"is_cross,omitempty"`
}

type CancelOrderRequest struct {
	Coin string `json:"coin" binding:"required"`
	Oid  uint64 `json:"oid" binding:"required"`
}

// OrderResponse is what the control API returns for a submitted action.
type OrderResponse struct {
	Coin     string   `json:"coin"`
	AssetID  int      `json:"asset_id"`
	Side     string   `json:"side,omitempty"`
	Price    string   `json:"price,omitempty"`
	Size     string   `json:"size,omitempty"`
	Leverage int      `json:"leverage,omitempty"`
	Nonce    uint64   `json:"nonce"`
	Status   string   `json:"status"`
	OrderIDs []uint64 `json:"order_ids,omitempty"`
	DryRun   bool     `json:"dry_run,omitempty"`
}
