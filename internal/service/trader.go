package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/hypergate/internal/manager"
	"github.com/GoPolymarket/hypergate/internal/model"
	"github.com/GoPolymarket/hypergate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hypergate/internal/pkg/logger"
	"github.com/GoPolymarket/hypergate/internal/pkg/metrics"
	"github.com/GoPolymarket/hypergate/internal/signer"
)

const StatusDryRun = "dry_run"

type TraderConfig struct {
	Mainnet         bool
	Vault           *common.Address
	ExpiresAfter    time.Duration // 0 leaves expiresAfter out of the payload
	DryRun          bool
	CrossMargin     bool
	DefaultLeverage int
	AccountID       string // key for daily usage accounting
}

// OrderParams is a raw order before normalization.
type OrderParams struct {
	Coin       string
	Side       Side
	Size       decimal.Decimal
	Price      decimal.Decimal // zero means the reference price
	ReduceOnly bool
	Tif        string
	Cloid      string
	Leverage   int // > 0 sends updateLeverage once the order passed the duplicate check
}

// Trader turns intents into signed exchange actions. Nonce issue, signing and
// submission run under one lock so nonces reach the exchange in order.
type Trader struct {
	mu sync.Mutex

	signer     *signer.Signer
	normalizer *Normalizer
	gateway    *Gateway
	nonces     *manager.NonceManager
	inflight   manager.IdempotencyStore
	risk       *RiskEngine
	cfg        TraderConfig
	log        *slog.Logger
}

func NewTrader(s *signer.Signer, n *Normalizer, g *Gateway, nonces *manager.NonceManager, inflight manager.IdempotencyStore, risk *RiskEngine, cfg TraderConfig, log *slog.Logger) *Trader {
	if nonces == nil {
		nonces = manager.NewNonceManager()
	}
	if inflight == nil {
		inflight = manager.NewInMemIdempotencyStore(10 * time.Minute)
	}
	if cfg.DefaultLeverage <= 0 {
		cfg.DefaultLeverage = 1
	}
	return &Trader{
		signer:     s,
		normalizer: n,
		gateway:    g,
		nonces:     nonces,
		inflight:   inflight,
		risk:       risk,
		cfg:        cfg,
		log:        logger.Component(log, "trader"),
	}
}

// AccountID keys daily risk usage for this wallet.
func (t *Trader) AccountID() string {
	return t.cfg.AccountID
}

// submit issues a nonce, signs and posts the action.
func (t *Trader) submit(ctx context.Context, action signer.Action) (uint64, *ExchangeResult, error) {
	if t.signer == nil {
		return 0, nil, apperrors.New(apperrors.ErrAuthFailed, "signing key not configured", nil)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	nonce, err := t.nonces.Reserve(ctx)
	if err != nil {
		t.log.Warn("shared nonce floor unavailable, using local nonce", "nonce", nonce, "error", err)
	}
	var expiresAfter *uint64
	if t.cfg.ExpiresAfter > 0 {
		e := nonce + uint64(t.cfg.ExpiresAfter.Milliseconds())
		expiresAfter = &e
	}

	payload, err := t.signer.BuildPayload(action, t.cfg.Vault, nonce, expiresAfter, t.cfg.Mainnet)
	if err != nil {
		return nonce, nil, err
	}
	metrics.SignaturesTotal.WithLabelValues(action.ActionType()).Inc()

	if t.cfg.DryRun {
		raw, _ := json.Marshal(payload)
		t.log.Info("dry run, payload not submitted", "action", action.ActionType(), "nonce", nonce, "payload", string(raw))
		return nonce, &ExchangeResult{Status: StatusDryRun}, nil
	}

	res, err := t.gateway.Submit(ctx, payload)
	return nonce, res, err
}

// PlaceOrder normalizes against fresh metadata, then signs and submits one order.
func (t *Trader) PlaceOrder(ctx context.Context, p OrderParams) (*model.OrderResponse, error) {
	if !p.Size.IsPositive() {
		return nil, apperrors.NewValidation("size must be positive")
	}
	t.normalizer.Invalidate()
	order, err := t.normalizer.Normalize(ctx, p.Coin, p.Side, p.Size, p.Price)
	if err != nil {
		metrics.OrdersTotal.WithLabelValues("invalid", string(p.Side)).Inc()
		return nil, err
	}

	key := fmt.Sprintf("order:%s|%s|%s|%s|%t", order.Meta.Symbol, p.Side, order.SizeWire(), order.PriceWire(), p.ReduceOnly)
	if rec, hit := t.inflight.GetOrLock(ctx, key); hit {
		state := "completed"
		if rec.Processing {
			state = "in flight"
		}
		return nil, apperrors.New(apperrors.ErrDuplicate, fmt.Sprintf("identical order %s", state), nil)
	}

	leverage := 0
	if p.Leverage > 0 {
		leverage = t.normalizer.ClampLeverage(order.Meta, p.Leverage)
		if _, _, err := t.submit(ctx, signer.NewUpdateLeverageAction(order.Meta.AssetID, t.cfg.CrossMargin, leverage)); err != nil {
			// The order itself was never sent.
			t.inflight.Unlock(ctx, key)
			t.log.Error("leverage update failed", "coin", order.Meta.Symbol, "leverage", leverage, "error", err)
			return nil, fmt.Errorf("set leverage before order: %w", err)
		}
	}

	action := signer.NewOrderAction(order.Wire(p.ReduceOnly, p.Tif, p.Cloid))
	nonce, res, err := t.submit(ctx, action)
	log := t.log.With("coin", order.Meta.Symbol, "side", p.Side, "size", order.SizeWire(), "price", order.PriceWire(), "nonce", nonce)
	if err != nil {
		t.releaseUnlessAmbiguous(ctx, key, err, log)
		metrics.OrdersTotal.WithLabelValues(strings.ToLower(string(apperrors.TypeOf(err))), string(p.Side)).Inc()
		log.Error("order failed", "error", err)
		return nil, err
	}
	t.inflight.Unlock(ctx, key)

	metrics.OrdersTotal.WithLabelValues(res.Status, string(p.Side)).Inc()
	if res.Status != StatusDryRun && t.risk != nil {
		t.risk.PostOrderHook(ctx, t.cfg.AccountID, order.Size.Mul(order.Price))
	}
	log.Info("order accepted", "order_ids", res.OrderIDs(), "attempts", res.Attempts)

	return &model.OrderResponse{
		Coin:     order.Meta.Symbol,
		AssetID:  order.Meta.AssetID,
		Side:     string(p.Side),
		Price:    order.PriceWire(),
		Size:     order.SizeWire(),
		Leverage: leverage,
		Nonce:    nonce,
		Status:   res.Status,
		OrderIDs: res.OrderIDs(),
		DryRun:   res.Status == StatusDryRun,
	}, nil
}

// releaseUnlessAmbiguous unlocks the key after a definite failure. After a
// network error or a duplicate nonce the order may have landed, so the key
// stays locked until its ttl.
func (t *Trader) releaseUnlessAmbiguous(ctx context.Context, key string, err error, log *slog.Logger) {
	if apperrors.IsType(err, apperrors.ErrNetwork) || apperrors.IsType(err, apperrors.ErrDuplicate) {
		log.Warn("order outcome unknown, keeping in-flight lock", "key", key)
		return
	}
	t.inflight.Unlock(ctx, key)
}

func (t *Trader) SetLeverage(ctx context.Context, coin string, leverage int, isCross bool) (*model.OrderResponse, error) {
	t.normalizer.Invalidate()
	meta, err := t.normalizer.Resolve(ctx, coin)
	if err != nil {
		return nil, err
	}
	lev := t.normalizer.ClampLeverage(meta, leverage)

	nonce, res, err := t.submit(ctx, signer.NewUpdateLeverageAction(meta.AssetID, isCross, lev))
	if err != nil {
		t.log.Error("leverage update failed", "coin", meta.Symbol, "leverage", lev, "error", err)
		return nil, err
	}
	t.log.Info("leverage updated", "coin", meta.Symbol, "leverage", lev, "cross", isCross, "nonce", nonce)
	return &model.OrderResponse{
		Coin:     meta.Symbol,
		AssetID:  meta.AssetID,
		Leverage: lev,
		Nonce:    nonce,
		Status:   res.Status,
		DryRun:   res.Status == StatusDryRun,
	}, nil
}

func (t *Trader) CancelOrder(ctx context.Context, coin string, oid uint64) (*model.OrderResponse, error) {
	t.normalizer.Invalidate()
	meta, err := t.normalizer.Resolve(ctx, coin)
	if err != nil {
		return nil, err
	}

	nonce, res, err := t.submit(ctx, signer.NewCancelAction(signer.CancelWire{Asset: meta.AssetID, OrderID: oid}))
	if err != nil {
		t.log.Error("cancel failed", "coin", meta.Symbol, "oid", oid, "error", err)
		return nil, err
	}
	t.log.Info("order cancelled", "coin", meta.Symbol, "oid", oid, "nonce", nonce)
	return &model.OrderResponse{
		Coin:     meta.Symbol,
		AssetID:  meta.AssetID,
		Nonce:    nonce,
		Status:   res.Status,
		OrderIDs: []uint64{oid},
		DryRun:   res.Status == StatusDryRun,
	}, nil
}

// EffectiveLeverage is the leverage Execute will send for coin: requested, or
// the default when unset, clamped to the asset maximum. If metadata cannot be
// fetched the value is returned unclamped; the order fails on that anyway.
func (t *Trader) EffectiveLeverage(ctx context.Context, coin string, requested int) int {
	lev := requested
	if lev <= 0 {
		lev = t.cfg.DefaultLeverage
	}
	meta, err := t.normalizer.Resolve(ctx, coin)
	if err != nil {
		return lev
	}
	return t.normalizer.ClampLeverage(meta, lev)
}

// Execute carries out one intent. Hold returns (nil, nil).
func (t *Trader) Execute(ctx context.Context, intent model.Intent, snap model.MarketSnapshot, portfolio *model.Portfolio) (*model.OrderResponse, error) {
	leverage := intent.Leverage
	if leverage <= 0 {
		leverage = t.cfg.DefaultLeverage
	}
	pos, hasPos := portfolio.Position(intent.Coin)

	switch intent.Action {
	case model.ActionHold:
		return nil, nil

	case model.ActionChangeLeverage:
		return t.SetLeverage(ctx, intent.Coin, leverage, t.cfg.CrossMargin)

	case model.ActionClosePosition, model.ActionReducePosition:
		if !hasPos {
			return nil, apperrors.NewValidation(fmt.Sprintf("no open %s position to %s", intent.Coin, intent.Action))
		}
		size := pos.Size.Abs()
		if intent.Action == model.ActionReducePosition {
			size = decimal.Min(intent.Size.Abs(), size)
		}
		return t.PlaceOrder(ctx, OrderParams{
			Coin:       intent.Coin,
			Side:       exitSide(pos),
			Size:       size,
			Price:      snap.Price,
			ReduceOnly: true,
		})

	case model.ActionIncreasePosition, model.ActionBuy, model.ActionSell:
		side := SideBuy
		switch {
		case intent.Action == model.ActionSell:
			side = SideSell
		case intent.Action == model.ActionIncreasePosition && hasPos:
			side = entrySide(pos)
		case intent.Action == model.ActionIncreasePosition && intent.Side != "":
			s, err := ParseSide(intent.Side)
			if err != nil {
				return nil, err
			}
			side = s
		case intent.Action == model.ActionIncreasePosition:
			return nil, apperrors.NewValidation(fmt.Sprintf("no open %s position to increase", intent.Coin))
		}

		return t.PlaceOrder(ctx, OrderParams{
			Coin:     intent.Coin,
			Side:     side,
			Size:     intent.Size,
			Price:    snap.Price,
			Leverage: leverage,
		})

	default:
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown action %q", intent.Action))
	}
}

func exitSide(pos model.PositionInfo) Side {
	if pos.Size.IsNegative() {
		return SideBuy
	}
	return SideSell
}

func entrySide(pos model.PositionInfo) Side {
	if pos.Size.IsNegative() {
		return SideSell
	}
	return SideBuy
}
