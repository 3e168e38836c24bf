package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/GoPolymarket/hypergate/internal/model"
	"github.com/GoPolymarket/hypergate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hypergate/internal/pkg/logger"
	"github.com/GoPolymarket/hypergate/internal/pkg/metrics"
)

type PortfolioSource interface {
	Portfolio(ctx context.Context) (*model.Portfolio, error)
}

type SnapshotSource interface {
	Snapshots(ctx context.Context, coins []string) (map[string]model.MarketSnapshot, error)
}

type IntentExecutor interface {
	Execute(ctx context.Context, intent model.Intent, snap model.MarketSnapshot, portfolio *model.Portfolio) (*model.OrderResponse, error)
}

type IntentChecker interface {
	CheckIntent(ctx context.Context, accountID string, intent model.Intent, portfolio *model.Portfolio, snap model.MarketSnapshot) error
}

// LeveragePlanner is implemented by executors that adjust the requested
// leverage. The risk check then sizes margin with the leverage actually sent.
type LeveragePlanner interface {
	EffectiveLeverage(ctx context.Context, coin string, requested int) int
}

type BotConfig struct {
	Pairs     []string
	Interval  time.Duration
	AccountID string
}

// CycleSummary is the outcome of one RunCycle.
type CycleSummary struct {
	StartedAt time.Time
	Duration  time.Duration
	Decisions int
	Executed  int
	Held      int
	Rejected  int
	Failed    int
	Results   map[string]*model.OrderResponse
	Errors    map[string]error
}

// Bot runs the decide-check-execute loop over a fixed set of pairs.
type Bot struct {
	portfolio PortfolioSource
	market    SnapshotSource
	decider   Decider
	risk      IntentChecker
	executor  IntentExecutor
	cfg       BotConfig
	log       *slog.Logger
}

func NewBot(portfolio PortfolioSource, market SnapshotSource, decider Decider, risk IntentChecker, executor IntentExecutor, cfg BotConfig, log *slog.Logger) *Bot {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &Bot{
		portfolio: portfolio,
		market:    market,
		decider:   decider,
		risk:      risk,
		executor:  executor,
		cfg:       cfg,
		log:       logger.Component(log, "bot"),
	}
}

// RunCycle executes one pass. Coins are processed in pair order and one coin
// failing does not stop the others.
func (b *Bot) RunCycle(ctx context.Context) (*CycleSummary, error) {
	sum := &CycleSummary{
		StartedAt: time.Now(),
		Results:   make(map[string]*model.OrderResponse),
		Errors:    make(map[string]error),
	}

	portfolio, err := b.portfolio.Portfolio(ctx)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("portfolio_error").Inc()
		return nil, err
	}
	snaps, err := b.market.Snapshots(ctx, b.cfg.Pairs)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("market_error").Inc()
		return nil, err
	}
	if len(snaps) == 0 {
		metrics.CyclesTotal.WithLabelValues("no_market_data").Inc()
		b.log.Warn("no market data, skipping cycle")
		sum.Duration = time.Since(sum.StartedAt)
		return sum, nil
	}

	decisions := b.decider.Decide(ctx, snaps, portfolio)
	sum.Decisions = len(decisions)

	for _, coin := range orderedCoins(b.cfg.Pairs, decisions) {
		if ctx.Err() != nil {
			break
		}
		intent := decisions[coin]
		intent.Coin = coin
		log := b.log.With("coin", coin, "action", intent.Action)

		if intent.Action == model.ActionHold {
			sum.Held++
			continue
		}
		snap, ok := snaps[coin]
		if !ok {
			log.Warn("no snapshot for decision, skipping")
			sum.Failed++
			continue
		}

		if planner, ok := b.executor.(LeveragePlanner); ok && intent.Action.Opens() {
			intent.Leverage = planner.EffectiveLeverage(ctx, coin, intent.Leverage)
		}

		if err := b.risk.CheckIntent(ctx, b.cfg.AccountID, intent, portfolio, snap); err != nil {
			log.Warn("risk rejected intent", "error", err)
			sum.Rejected++
			sum.Errors[coin] = err
			continue
		}

		res, err := b.executor.Execute(ctx, intent, snap, portfolio)
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrRiskReject) {
				sum.Rejected++
			} else {
				sum.Failed++
			}
			sum.Errors[coin] = err
			log.Error("execution failed", "error", err)
			continue
		}
		if res == nil {
			sum.Held++
			continue
		}
		sum.Executed++
		sum.Results[coin] = res
		log.Info("executed", "status", res.Status, "size", res.Size, "price", res.Price, "order_ids", res.OrderIDs)
	}

	sum.Duration = time.Since(sum.StartedAt)
	outcome := "ok"
	if sum.Failed > 0 {
		outcome = "partial"
	}
	metrics.CyclesTotal.WithLabelValues(outcome).Inc()
	b.log.Info("cycle complete",
		"decisions", sum.Decisions,
		"executed", sum.Executed,
		"held", sum.Held,
		"rejected", sum.Rejected,
		"failed", sum.Failed,
		"balance", portfolio.TotalBalance.StringFixed(2),
		"margin_usage", pct(portfolio.MarginUsage),
		"duration", sum.Duration,
	)
	return sum, nil
}

// Start runs a cycle immediately and then every interval until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.log.Info("bot started", "pairs", b.cfg.Pairs, "interval", b.cfg.Interval)
	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := b.RunCycle(ctx); err != nil {
			b.log.Error("cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			b.log.Info("bot stopped")
			return
		case <-ticker.C:
		}
	}
}

// orderedCoins lists decided coins in pair order. Decisions for coins outside
// the configured pairs are ignored.
func orderedCoins(pairs []string, decisions map[string]model.Intent) []string {
	out := make([]string, 0, len(decisions))
	for _, p := range pairs {
		if _, ok := decisions[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
