package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/hypergate/internal/exchange"
	"github.com/GoPolymarket/hypergate/internal/model"
	"github.com/GoPolymarket/hypergate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hypergate/internal/pkg/logger"
)

type StateSource interface {
	ClearinghouseState(ctx context.Context, user string) (*exchange.ClearinghouseState, error)
}

// PortfolioService reads balances and positions of the trading wallet.
type PortfolioService struct {
	src  StateSource
	user string
	log  *slog.Logger
}

func NewPortfolioService(src StateSource, user string, log *slog.Logger) *PortfolioService {
	return &PortfolioService{src: src, user: user, log: logger.Component(log, "portfolio")}
}

func (s *PortfolioService) Portfolio(ctx context.Context) (*model.Portfolio, error) {
	if s.user == "" {
		return nil, apperrors.New(apperrors.ErrAuthFailed, "wallet address not configured", nil)
	}
	state, err := s.src.ClearinghouseState(ctx, s.user)
	if err != nil {
		return nil, err
	}
	p := PortfolioFromState(state)
	s.log.Debug("portfolio loaded",
		"balance", p.TotalBalance.String(), "available", p.Available.String(),
		"margin_usage", p.MarginUsage.StringFixed(4), "positions", len(p.Positions))
	return p, nil
}

// PortfolioFromState converts a clearinghouse snapshot. Margin usage is
// totalMarginUsed / accountValue, zero for an empty account.
func PortfolioFromState(state *exchange.ClearinghouseState) *model.Portfolio {
	p := &model.Portfolio{Positions: make(map[string]model.PositionInfo)}
	if state == nil {
		return p
	}
	p.TotalBalance = parseDecimal(state.MarginSummary.AccountValue)
	p.MarginUsed = parseDecimal(state.MarginSummary.TotalMarginUsed)
	p.Available = parseDecimal(state.Withdrawable)
	if p.TotalBalance.IsPositive() {
		p.MarginUsage = p.MarginUsed.Div(p.TotalBalance)
	}

	for _, ap := range state.AssetPositions {
		pos := ap.Position
		size := parseDecimal(pos.Szi)
		if size.IsZero() {
			continue
		}
		entry := decimal.Zero
		if pos.EntryPx != nil {
			entry = parseDecimal(*pos.EntryPx)
		}
		p.Positions[pos.Coin] = model.PositionInfo{
			Coin:          pos.Coin,
			Size:          size,
			EntryPx:       entry,
			UnrealizedPnl: parseDecimal(pos.UnrealizedPnl),
			MarginUsed:    parseDecimal(pos.MarginUsed),
			Leverage:      pos.Leverage.Value,
		}
	}
	return p
}
