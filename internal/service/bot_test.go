package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPolymarket/hypergate/internal/config"
	"github.com/GoPolymarket/hypergate/internal/model"
	"github.com/GoPolymarket/hypergate/internal/pkg/apperrors"
)

type stubPortfolio struct {
	p   *model.Portfolio
	err error
}

func (s stubPortfolio) Portfolio(context.Context) (*model.Portfolio, error) { return s.p, s.err }

type stubSnapshots map[string]model.MarketSnapshot

func (s stubSnapshots) Snapshots(_ context.Context, coins []string) (map[string]model.MarketSnapshot, error) {
	out := make(map[string]model.MarketSnapshot)
	for _, c := range coins {
		if snap, ok := s[c]; ok {
			out[c] = snap
		}
	}
	return out, nil
}

type recordingExecutor struct {
	mu    sync.Mutex
	coins []string
	fail  map[string]error
}

func (r *recordingExecutor) Execute(_ context.Context, intent model.Intent, snap model.MarketSnapshot, _ *model.Portfolio) (*model.OrderResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coins = append(r.coins, intent.Coin)
	if err := r.fail[intent.Coin]; err != nil {
		return nil, err
	}
	return &model.OrderResponse{Coin: intent.Coin, Status: "ok", Price: snap.Price.String(), Size: intent.Size.String()}, nil
}

func TestBot_RunCycle(t *testing.T) {
	portfolio := &model.Portfolio{
		TotalBalance: dec("1000"),
		Available:    dec("900"),
		MarginUsage:  dec("0.1"),
	}
	snaps := stubSnapshots{
		"BTC": {Coin: "BTC", Price: dec("65000")},
		"ETH": {Coin: "ETH", Price: dec("3000")},
		"SOL": {Coin: "SOL", Price: dec("150")},
		"ADA": {Coin: "ADA", Price: dec("0.5")},
	}
	decider := StaticDecider{
		"BTC":  {Action: model.ActionBuy, Size: dec("0.001"), Leverage: 5, Confidence: 0.8},
		"ETH":  {Action: model.ActionHold},
		"SOL":  {Action: model.ActionBuy, Size: dec("1"), Leverage: 5, Confidence: 0.01},
		"ADA":  {Action: model.ActionSell, Size: dec("20"), Leverage: 5, Confidence: 0.5},
		"DOGE": {Action: model.ActionBuy, Size: dec("100"), Confidence: 0.9},
	}
	exec := &recordingExecutor{fail: map[string]error{"ADA": apperrors.New(apperrors.ErrOrderRejected, "rejected", nil)}}
	risk := NewRiskEngine(nil, config.RiskConfig{MaxMarginUsage: 0.95, MinBalance: 0.01, MinConfidence: 0.1})

	bot := NewBot(stubPortfolio{p: portfolio}, snaps, decider, risk, exec,
		BotConfig{Pairs: []string{"BTC", "ETH", "SOL", "BNB", "ADA"}}, nil)

	sum, err := bot.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, sum.Decisions)
	assert.Equal(t, 1, sum.Executed)
	assert.Equal(t, 1, sum.Held)
	assert.Equal(t, 1, sum.Rejected, "low confidence SOL")
	assert.Equal(t, 1, sum.Failed, "ADA rejected by exchange")
	assert.Equal(t, []string{"BTC", "ADA"}, exec.coins, "pair order, DOGE ignored")
	require.Contains(t, sum.Results, "BTC")
	assert.True(t, apperrors.IsType(sum.Errors["SOL"], apperrors.ErrRiskReject))
}

func TestBot_RunCyclePortfolioError(t *testing.T) {
	bot := NewBot(stubPortfolio{err: errors.New("down")}, stubSnapshots{}, StaticDecider{}, NewRiskEngine(nil, config.RiskConfig{}), &recordingExecutor{},
		BotConfig{Pairs: []string{"BTC"}}, nil)
	_, err := bot.RunCycle(context.Background())
	require.Error(t, err)
}

func TestBot_RunCycleNoMarketData(t *testing.T) {
	exec := &recordingExecutor{}
	bot := NewBot(stubPortfolio{p: &model.Portfolio{}}, stubSnapshots{}, StaticDecider{"BTC": {Action: model.ActionBuy}},
		NewRiskEngine(nil, config.RiskConfig{}), exec, BotConfig{Pairs: []string{"BTC"}}, nil)
	sum, err := bot.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Decisions)
	assert.Empty(t, exec.coins)
}

func TestBot_StartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bot := NewBot(stubPortfolio{p: &model.Portfolio{}}, stubSnapshots{}, StaticDecider{},
		NewRiskEngine(nil, config.RiskConfig{}), &recordingExecutor{}, BotConfig{Pairs: []string{"BTC"}}, nil)
	bot.Start(ctx)
}

type cappedExecutor struct {
	recordingExecutor
	max int
}

func (c *cappedExecutor) EffectiveLeverage(_ context.Context, _ string, requested int) int {
	return min(requested, c.max)
}

func TestBot_RiskSeesClampedLeverage(t *testing.T) {
	portfolio := &model.Portfolio{TotalBalance: dec("1000"), Available: dec("100"), MarginUsage: dec("0.1")}
	snaps := stubSnapshots{"kPEPE": {Coin: "kPEPE", Price: dec("1000")}}
	// 1 * 1000 / 20 = 50 fits, but the asset caps leverage at 5: 200 > 100.
	decider := StaticDecider{"kPEPE": {Action: model.ActionBuy, Size: dec("1"), Leverage: 20, Confidence: 0.9}}
	exec := &cappedExecutor{max: 5}
	risk := NewRiskEngine(nil, config.RiskConfig{MaxMarginUsage: 0.95, MinBalance: 0.01, MinConfidence: 0.1})

	bot := NewBot(stubPortfolio{p: portfolio}, snaps, decider, risk, exec, BotConfig{Pairs: []string{"kPEPE"}}, nil)
	sum, err := bot.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Rejected)
	assert.True(t, apperrors.IsType(sum.Errors["kPEPE"], apperrors.ErrRiskReject))
	assert.Empty(t, exec.coins)

	exec.max = 20
	sum, err = bot.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Executed)
	assert.Equal(t, []string{"kPEPE"}, exec.coins)
}
