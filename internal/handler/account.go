package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoPolymarket/hypergate/internal/exchange"
	"github.com/GoPolymarket/hypergate/internal/model"
	"github.com/GoPolymarket/hypergate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hypergate/internal/service"
)

type OpenOrdersSource interface {
	OpenOrders(ctx context.Context, user string) ([]exchange.OpenOrder, error)
}

type AccountHandler struct {
	portfolio service.PortfolioSource
	orders    OpenOrdersSource
	wallet    string
	signer    string
	mainnet   bool
}

func NewAccountHandler(portfolio service.PortfolioSource, orders OpenOrdersSource, wallet, signer string, mainnet bool) *AccountHandler {
	return &AccountHandler{portfolio: portfolio, orders: orders, wallet: wallet, signer: signer, mainnet: mainnet}
}

type accountResponse struct {
	Wallet    string           `json:"wallet"`
	Signer    string           `json:"signer,omitempty"`
	Mainnet   bool             `json:"mainnet"`
	Portfolio *model.Portfolio `json:"portfolio"`
}

// Get handles GET /v1/account.
func (h *AccountHandler) Get(c *gin.Context) {
	p, err := h.portfolio.Portfolio(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, accountResponse{
		Wallet:    h.wallet,
		Signer:    h.signer,
		Mainnet:   h.mainnet,
		Portfolio: p,
	})
}

// OpenOrders handles GET /v1/account/orders.
func (h *AccountHandler) OpenOrders(c *gin.Context) {
	if h.wallet == "" {
		c.Error(apperrors.NewValidation("wallet address not configured"))
		return
	}
	orders, err := h.orders.OpenOrders(c.Request.Context(), h.wallet)
	if err != nil {
		c.Error(err)
		return
	}
	if orders == nil {
		orders = []exchange.OpenOrder{}
	}
	c.JSON(http.StatusOK, orders)
}
