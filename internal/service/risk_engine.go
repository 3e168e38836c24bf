package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/hypergate/internal/config"
	"github.com/GoPolymarket/hypergate/internal/model"
	"github.com/GoPolymarket/hypergate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hypergate/internal/pkg/metrics"
)

type UsageRepo interface {
	GetDailyUsage(ctx context.Context, accountID string) (int, float64, error)
	AddDailyUsage(ctx context.Context, accountID string, orders int, amount float64) error
}

// Below this balance the required-margin check is skipped; the exchange
// enforces it anyway and small accounts would otherwise never trade.
var smallBalance = decimal.NewFromInt(10)

type RiskEngine struct {
	repo   UsageRepo
	limits config.RiskConfig
}

func NewRiskEngine(repo UsageRepo, limits config.RiskConfig) *RiskEngine {
	if repo == nil {
		repo = NewRiskUsageStore()
	}
	return &RiskEngine{repo: repo, limits: limits}
}

func reject(reason, format string, args ...any) error {
	metrics.RiskRejects.WithLabelValues(reason).Inc()
	return apperrors.NewRiskReject(fmt.Sprintf("risk reject: "+format, args...))
}

// CheckIntent gates a bot decision against the current portfolio. Sells,
// closes and reductions are only blocked above 100% margin usage or on low
// confidence; buys and increases also need margin headroom and balance.
func (e *RiskEngine) CheckIntent(ctx context.Context, accountID string, intent model.Intent, portfolio *model.Portfolio, snap model.MarketSnapshot) error {
	if intent.Action == model.ActionHold {
		return nil
	}
	if portfolio == nil {
		return reject("no_portfolio", "portfolio unavailable")
	}
	if err := e.checkBlocked(intent.Coin); err != nil {
		return err
	}

	minConfidence := e.limits.MinConfidence
	if intent.Action == model.ActionChangeLeverage {
		if intent.Confidence < minConfidence {
			return reject("confidence", "confidence %.2f below %.2f", intent.Confidence, minConfidence)
		}
		return nil
	}

	switch intent.Action {
	case model.ActionSell, model.ActionClosePosition, model.ActionReducePosition:
		if portfolio.MarginUsage.GreaterThan(decimal.NewFromInt(1)) {
			return reject("margin_usage", "margin usage %s%% above 100%%, cannot %s", pct(portfolio.MarginUsage), intent.Action)
		}
		if intent.Confidence < minConfidence {
			return reject("confidence", "confidence %.2f below %.2f for %s", intent.Confidence, minConfidence, intent.Action)
		}
		if intent.Action == model.ActionSell && snap.Price.IsPositive() {
			return e.CheckOrder(ctx, accountID, intent.Coin, intent.Size.Abs().Mul(snap.Price))
		}
		return nil
	}

	maxUsage := decimal.NewFromFloat(e.limits.MaxMarginUsage)
	if e.limits.MaxMarginUsage > 0 && portfolio.MarginUsage.GreaterThan(maxUsage) {
		return reject("margin_usage", "margin usage %s%% above %s%%", pct(portfolio.MarginUsage), pct(maxUsage))
	}
	minBalance := decimal.NewFromFloat(e.limits.MinBalance)
	if portfolio.Available.LessThan(minBalance) {
		return reject("min_balance", "available balance %s below %s", portfolio.Available.StringFixed(2), minBalance.String())
	}

	if intent.Action == model.ActionBuy || intent.Action == model.ActionIncreasePosition {
		if portfolio.TotalBalance.GreaterThanOrEqual(smallBalance) && snap.Price.IsPositive() {
			leverage := intent.Leverage
			if leverage < 1 {
				leverage = 1
			}
			required := intent.Size.Abs().Mul(snap.Price).Div(decimal.NewFromInt(int64(leverage)))
			if required.GreaterThan(portfolio.Available) {
				return reject("required_margin", "required margin %s above available %s",
					required.StringFixed(2), portfolio.Available.StringFixed(2))
			}
		}
	}

	if intent.Confidence < minConfidence {
		return reject("confidence", "confidence %.2f below %.2f", intent.Confidence, minConfidence)
	}

	if intent.Action.Opens() && snap.Price.IsPositive() {
		return e.CheckOrder(ctx, accountID, intent.Coin, intent.Size.Abs().Mul(snap.Price))
	}
	return nil
}

// CheckOrder enforces per-order and daily notional limits.
func (e *RiskEngine) CheckOrder(ctx context.Context, accountID, coin string, notional decimal.Decimal) error {
	if err := e.checkBlocked(coin); err != nil {
		return err
	}
	orderVal := notional.InexactFloat64()
	if orderVal <= 0 {
		return reject("invalid_size", "order value must be positive")
	}

	if e.limits.MaxOrderValue > 0 && orderVal > e.limits.MaxOrderValue {
		return reject("max_value", "order value %.2f exceeds limit %.2f", orderVal, e.limits.MaxOrderValue)
	}

	if e.limits.MaxDailyValue > 0 || e.limits.MaxDailyOrders > 0 {
		currentOrders, currentVol, err := e.repo.GetDailyUsage(ctx, accountID)
		if err != nil {
			return apperrors.New(apperrors.ErrInternal, "risk check failed", err)
		}
		if e.limits.MaxDailyValue > 0 && currentVol+orderVal > e.limits.MaxDailyValue {
			return reject("daily_volume_limit", "daily volume limit exceeded (curr: %.2f, new: %.2f, max: %.2f)",
				currentVol, orderVal, e.limits.MaxDailyValue)
		}
		if e.limits.MaxDailyOrders > 0 && currentOrders+1 > e.limits.MaxDailyOrders {
			return reject("daily_order_limit", "daily order limit exceeded (curr: %d, max: %d)",
				currentOrders, e.limits.MaxDailyOrders)
		}
	}
	return nil
}

// PostOrderHook records usage after an accepted order.
func (e *RiskEngine) PostOrderHook(ctx context.Context, accountID string, notional decimal.Decimal) {
	_ = e.repo.AddDailyUsage(ctx, accountID, 1, notional.InexactFloat64())
}

func (e *RiskEngine) checkBlocked(coin string) error {
	for _, blocked := range e.limits.BlockedCoins {
		if strings.EqualFold(blocked, coin) {
			return reject("blocked_coin", "coin %s is blocked", coin)
		}
	}
	return nil
}

func pct(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).StringFixed(1)
}
