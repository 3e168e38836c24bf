package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/hypergate/internal/market"
	"github.com/GoPolymarket/hypergate/internal/service"
)

type AssetResolver interface {
	Resolve(ctx context.Context, coin string) (service.AssetMeta, error)
}

type MarketHandler struct {
	assets AssetResolver
	stream market.Provider // nil when streaming is off
}

func NewMarketHandler(assets AssetResolver, stream market.Provider) *MarketHandler {
	return &MarketHandler{assets: assets, stream: stream}
}

type bookView struct {
	Bids []market.Level `json:"bids"`
	Asks []market.Level `json:"asks"`
}

type assetResponse struct {
	service.AssetMeta
	LiveMid *decimal.Decimal `json:"live_mid,omitempty"`
	Book    *bookView        `json:"book,omitempty"`
}

// Asset handles GET /v1/assets/:coin with the resolved trading metadata and,
// when streaming, the live mid and top of book.
func (h *MarketHandler) Asset(c *gin.Context) {
	meta, err := h.assets.Resolve(c.Request.Context(), c.Param("coin"))
	if err != nil {
		c.Error(err)
		return
	}
	resp := assetResponse{AssetMeta: meta}
	if h.stream != nil {
		if mid, ok := h.stream.Mid(meta.Symbol); ok {
			resp.LiveMid = &mid
		}
		if book := h.stream.GetBook(meta.Symbol); book != nil {
			bids, asks := book.GetCopy()
			resp.Book = &bookView{Bids: bids, Asks: asks}
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Fills handles GET /v1/fills?coin=&limit=.
func (h *MarketHandler) Fills(c *gin.Context) {
	if h.stream == nil {
		c.JSON(http.StatusOK, []market.Fill{})
		return
	}
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	c.JSON(http.StatusOK, h.stream.Fills(c.Query("coin"), limit))
}
