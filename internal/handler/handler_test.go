package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPolymarket/hypergate/internal/config"
	"github.com/GoPolymarket/hypergate/internal/exchange"
	"github.com/GoPolymarket/hypergate/internal/market"
	"github.com/GoPolymarket/hypergate/internal/middleware"
	"github.com/GoPolymarket/hypergate/internal/model"
	"github.com/GoPolymarket/hypergate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hypergate/internal/service"
)

type fakeTrader struct {
	placed    []service.OrderParams
	leverages []int
	crosses   []bool
	cancelled []uint64
	placeErr  error
}

func (f *fakeTrader) AccountID() string { return "bot" }

func (f *fakeTrader) PlaceOrder(_ context.Context, p service.OrderParams) (*model.OrderResponse, error) {
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	f.placed = append(f.placed, p)
	return &model.OrderResponse{Coin: p.Coin, Side: string(p.Side), Size: p.Size.String(), Leverage: min(p.Leverage, 20), Nonce: 42, Status: "resting"}, nil
}

func (f *fakeTrader) SetLeverage(_ context.Context, coin string, leverage int, isCross bool) (*model.OrderResponse, error) {
	f.leverages = append(f.leverages, leverage)
	f.crosses = append(f.crosses, isCross)
	if leverage > 20 {
		leverage = 20
	}
	return &model.OrderResponse{Coin: coin, Leverage: leverage, Status: "ok"}, nil
}

func (f *fakeTrader) CancelOrder(_ context.Context, coin string, oid uint64) (*model.OrderResponse, error) {
	f.cancelled = append(f.cancelled, oid)
	return &model.OrderResponse{Coin: coin, OrderIDs: []uint64{oid}, Status: "success"}, nil
}

type fakeAssets map[string]service.AssetMeta

func (f fakeAssets) Resolve(_ context.Context, coin string) (service.AssetMeta, error) {
	meta, ok := f[strings.ToUpper(coin)]
	if !ok {
		return service.AssetMeta{}, apperrors.New(apperrors.ErrAssetNotFound, "unknown asset "+coin, nil)
	}
	return meta, nil
}

var btc = fakeAssets{"BTC": {Symbol: "BTC", AssetID: 0, MaxLeverage: 20, MarkPx: decimal.RequireFromString("50000")}}

func newTestRouter(register func(g *gin.RouterGroup)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	am := service.NewAccountManager(&config.Config{Accounts: []config.AccountConfig{{ID: "ops", APIKey: "k"}}})
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	g := r.Group("/v1", middleware.AuthMiddleware(true, am))
	register(g)
	return r
}

func send(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderGatewayKey, "k")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func orderRouter(tr *fakeTrader, risk *service.RiskEngine) *gin.Engine {
	h := NewOrderHandler(tr, btc, risk, true)
	return newTestRouter(func(g *gin.RouterGroup) {
		g.POST("/orders", h.PlaceOrder)
		g.DELETE("/orders", h.CancelOrder)
		g.POST("/leverage", h.SetLeverage)
	})
}

func TestPlaceOrder(t *testing.T) {
	tr := &fakeTrader{}
	r := orderRouter(tr, nil)

	w := send(r, http.MethodPost, "/v1/orders", `{"coin":"BTC","side":"buy","size":"0.01","price":"49000","leverage":50}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, tr.placed, 1)
	assert.Equal(t, service.SideBuy, tr.placed[0].Side)
	assert.Equal(t, "0.01", tr.placed[0].Size.String())
	assert.Equal(t, 50, tr.placed[0].Leverage)
	assert.Empty(t, tr.leverages, "leverage travels with the order")

	var resp model.OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 20, resp.Leverage)
	assert.Equal(t, uint64(42), resp.Nonce)
}

func TestPlaceOrder_Validation(t *testing.T) {
	r := orderRouter(&fakeTrader{}, nil)

	cases := map[string]string{
		"bad side":     `{"coin":"BTC","side":"hold","size":"1"}`,
		"zero size":    `{"coin":"BTC","side":"buy","size":"0"}`,
		"missing coin": `{"side":"buy","size":"1"}`,
		"not json":     `{`,
	}
	for name, body := range cases {
		w := send(r, http.MethodPost, "/v1/orders", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", name, w.Code, w.Body.String())
		}
	}
}

func TestPlaceOrder_RiskUsesReferencePrice(t *testing.T) {
	tr := &fakeTrader{}
	risk := service.NewRiskEngine(service.NewRiskUsageStore(), config.RiskConfig{MaxOrderValue: 1000})
	r := orderRouter(tr, risk)

	// 0.1 * 50000 mark = 5000 > 1000
	w := send(r, http.MethodPost, "/v1/orders", `{"coin":"BTC","side":"sell","size":"0.1"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), string(apperrors.ErrRiskReject))
	assert.Empty(t, tr.placed)

	w = send(r, http.MethodPost, "/v1/orders", `{"coin":"BTC","side":"sell","size":"0.01"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, tr.placed, 1)
}

func TestPlaceOrder_UnknownAsset(t *testing.T) {
	risk := service.NewRiskEngine(service.NewRiskUsageStore(), config.RiskConfig{})
	r := orderRouter(&fakeTrader{}, risk)

	w := send(r, http.MethodPost, "/v1/orders", `{"coin":"NOPE","side":"buy","size":"1"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlaceOrder_TraderError(t *testing.T) {
	tr := &fakeTrader{placeErr: apperrors.New(apperrors.ErrDuplicate, "identical order in flight", nil)}
	r := orderRouter(tr, nil)

	w := send(r, http.MethodPost, "/v1/orders", `{"coin":"BTC","side":"buy","size":"0.01","price":"49000","leverage":5}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, tr.leverages)
}

func TestCancelAndLeverage(t *testing.T) {
	tr := &fakeTrader{}
	r := orderRouter(tr, nil)

	w := send(r, http.MethodDelete, "/v1/orders", `{"coin":"BTC","oid":77}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []uint64{77}, tr.cancelled)

	w = send(r, http.MethodPost, "/v1/leverage", `{"coin":"BTC","leverage":5,"is_cross":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []bool{false}, tr.crosses)

	w = send(r, http.MethodPost, "/v1/leverage", `{"coin":"BTC","leverage":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type fakeStream struct {
	market.Provider
	book  *market.Orderbook
	fills []market.Fill
}

func (f *fakeStream) Mid(coin string) (decimal.Decimal, bool) {
	return decimal.RequireFromString("50010"), coin == "BTC"
}

func (f *fakeStream) GetBook(string) *market.Orderbook { return f.book }

func (f *fakeStream) Fills(coin string, limit int) []market.Fill {
	out := f.fills
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func TestMarketHandler(t *testing.T) {
	book := market.NewOrderbook("BTC")
	book.Snapshot(
		[]market.Level{{Price: decimal.RequireFromString("50000"), Size: decimal.RequireFromString("1")}},
		[]market.Level{{Price: decimal.RequireFromString("50020"), Size: decimal.RequireFromString("2")}},
		time.Now(),
	)
	stream := &fakeStream{book: book, fills: []market.Fill{{Coin: "BTC", Tid: 1}, {Coin: "BTC", Tid: 2}}}
	h := NewMarketHandler(btc, stream)
	r := newTestRouter(func(g *gin.RouterGroup) {
		g.GET("/assets/:coin", h.Asset)
		g.GET("/fills", h.Fills)
	})

	w := send(r, http.MethodGet, "/v1/assets/btc", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "BTC", body["symbol"])
	assert.Equal(t, "50010", body["live_mid"])
	assert.NotNil(t, body["book"])

	w = send(r, http.MethodGet, "/v1/assets/doge", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = send(r, http.MethodGet, "/v1/fills?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var fills []market.Fill
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fills))
	assert.Len(t, fills, 1)
}

func TestMarketHandler_NoStream(t *testing.T) {
	h := NewMarketHandler(btc, nil)
	r := newTestRouter(func(g *gin.RouterGroup) { g.GET("/fills", h.Fills) })

	w := send(r, http.MethodGet, "/v1/fills", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

type fakePortfolio struct{ err error }

func (f fakePortfolio) Portfolio(context.Context) (*model.Portfolio, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Portfolio{TotalBalance: decimal.RequireFromString("1000"), Positions: map[string]model.PositionInfo{}}, nil
}

type fakeOrders []exchange.OpenOrder

func (f fakeOrders) OpenOrders(context.Context, string) ([]exchange.OpenOrder, error) {
	return f, nil
}

func TestAccountHandler(t *testing.T) {
	h := NewAccountHandler(fakePortfolio{}, fakeOrders{{Coin: "ETH", Oid: 9}}, "0xabc", "0xdef", false)
	r := newTestRouter(func(g *gin.RouterGroup) {
		g.GET("/account", h.Get)
		g.GET("/account/orders", h.OpenOrders)
	})

	w := send(r, http.MethodGet, "/v1/account", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"wallet":"0xabc"`)
	assert.Contains(t, w.Body.String(), `"total_balance":"1000"`)

	w = send(r, http.MethodGet, "/v1/account/orders", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"oid":9`)
}

func TestAccountHandler_PortfolioError(t *testing.T) {
	h := NewAccountHandler(fakePortfolio{err: apperrors.New(apperrors.ErrNetwork, "timeout", nil)}, fakeOrders{}, "0xabc", "", false)
	r := newTestRouter(func(g *gin.RouterGroup) { g.GET("/account", h.Get) })

	w := send(r, http.MethodGet, "/v1/account", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

type fakeAudit struct {
	gotAccount string
	gotFrom    *time.Time
}

func (f *fakeAudit) List(_ context.Context, accountID string, _ int, from, _ *time.Time) ([]*model.AuditLog, error) {
	f.gotAccount = accountID
	f.gotFrom = from
	return nil, nil
}

func TestAuditHandler(t *testing.T) {
	audit := &fakeAudit{}
	h := NewAuditHandler(audit)
	r := newTestRouter(func(g *gin.RouterGroup) { g.GET("/audit", h.List) })

	w := send(r, http.MethodGet, "/v1/audit?from=1700000000", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	assert.Equal(t, "ops", audit.gotAccount)
	require.NotNil(t, audit.gotFrom)
	assert.Equal(t, int64(1700000000), audit.gotFrom.Unix())

	w = send(r, http.MethodGet, "/v1/audit?to=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", NewHealthHandler(nil, true).Get)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","dry_run":true}`, w.Body.String())
}
