package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoPolymarket/hypergate/internal/middleware"
	"github.com/GoPolymarket/hypergate/internal/model"
	"github.com/GoPolymarket/hypergate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hypergate/internal/service"
)

// OrderTrader is the slice of *service.Trader the order endpoints use.
type OrderTrader interface {
	AccountID() string
	PlaceOrder(ctx context.Context, p service.OrderParams) (*model.OrderResponse, error)
	SetLeverage(ctx context.Context, coin string, leverage int, isCross bool) (*model.OrderResponse, error)
	CancelOrder(ctx context.Context, coin string, oid uint64) (*model.OrderResponse, error)
}

type OrderHandler struct {
	trader      OrderTrader
	assets      AssetResolver
	risk        *service.RiskEngine
	crossMargin bool
}

func NewOrderHandler(trader OrderTrader, assets AssetResolver, risk *service.RiskEngine, crossMargin bool) *OrderHandler {
	return &OrderHandler{trader: trader, assets: assets, risk: risk, crossMargin: crossMargin}
}

// PlaceOrder handles POST /v1/orders. Limits are checked against the
// requested price, or the reference price when none is given.
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req model.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	side, err := service.ParseSide(req.Side)
	if err != nil {
		c.Error(err)
		return
	}
	if !req.Size.IsPositive() {
		c.Error(apperrors.NewValidation("size must be positive"))
		return
	}
	ctx := c.Request.Context()
	middleware.AddAuditContext(c, "coin", req.Coin)
	middleware.AddAuditContext(c, "side", string(side))

	if h.risk != nil {
		px := req.Price
		if !px.IsPositive() {
			meta, err := h.assets.Resolve(ctx, req.Coin)
			if err != nil {
				c.Error(err)
				return
			}
			px = meta.RefPrice()
		}
		if err := h.risk.CheckOrder(ctx, h.trader.AccountID(), req.Coin, req.Size.Mul(px)); err != nil {
			middleware.AddAuditContext(c, "risk", err.Error())
			c.Error(err)
			return
		}
	}

	resp, err := h.trader.PlaceOrder(ctx, service.OrderParams{
		Coin:       req.Coin,
		Side:       side,
		Size:       req.Size,
		Price:      req.Price,
		ReduceOnly: req.ReduceOnly,
		Tif:        req.Tif,
		Cloid:      req.Cloid,
		Leverage:   req.Leverage,
	})
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "nonce", resp.Nonce)
	middleware.AddAuditContext(c, "status", resp.Status)
	c.JSON(http.StatusOK, resp)
}

// CancelOrder handles DELETE /v1/orders.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req model.CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	resp, err := h.trader.CancelOrder(c.Request.Context(), req.Coin, req.Oid)
	if err != nil {
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "action", "cancel")
	middleware.AddAuditContext(c, "oid", req.Oid)
	c.JSON(http.StatusOK, resp)
}

// SetLeverage handles POST /v1/leverage.
func (h *OrderHandler) SetLeverage(c *gin.Context) {
	var req model.LeverageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	isCross := h.crossMargin
	if req.IsCross != nil {
		isCross = *req.IsCross
	}

	resp, err := h.trader.SetLeverage(c.Request.Context(), req.Coin, req.Leverage, isCross)
	if err != nil {
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "action", "update_leverage")
	c.JSON(http.StatusOK, resp)
}
