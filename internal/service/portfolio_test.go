package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPolymarket/hypergate/internal/exchange"
	"github.com/GoPolymarket/hypergate/internal/pkg/apperrors"
)

const stateJSON = `{
  "marginSummary": {"accountValue": "1000.0", "totalNtlPos": "500", "totalRawUsd": "1000", "totalMarginUsed": "250.0"},
  "withdrawable": "750.0",
  "assetPositions": [
    {"type": "oneWay", "position": {"coin": "ETH", "szi": "-0.5", "entryPx": "3000.0", "unrealizedPnl": "12.5", "marginUsed": "150", "leverage": {"type": "cross", "value": 10}}},
    {"type": "oneWay", "position": {"coin": "SOL", "szi": "0.0", "entryPx": null, "unrealizedPnl": "0", "marginUsed": "0", "leverage": {"type": "cross", "value": 5}}}
  ],
  "time": 1700000000000
}`

type stateSource struct {
	state *exchange.ClearinghouseState
	user  string
}

func (s *stateSource) ClearinghouseState(_ context.Context, user string) (*exchange.ClearinghouseState, error) {
	s.user = user
	return s.state, nil
}

func TestPortfolioFromState(t *testing.T) {
	var state exchange.ClearinghouseState
	require.NoError(t, json.Unmarshal([]byte(stateJSON), &state))

	p := PortfolioFromState(&state)
	assert.Equal(t, "1000", p.TotalBalance.String())
	assert.Equal(t, "750", p.Available.String())
	assert.Equal(t, "0.25", p.MarginUsage.String())

	require.Len(t, p.Positions, 1)
	eth, ok := p.Position("ETH")
	require.True(t, ok)
	assert.Equal(t, "-0.5", eth.Size.String())
	assert.Equal(t, "3000", eth.EntryPx.String())
	assert.Equal(t, 10, eth.Leverage)

	_, ok = p.Position("SOL")
	assert.False(t, ok)
}

func TestPortfolioFromEmptyState(t *testing.T) {
	p := PortfolioFromState(nil)
	assert.True(t, p.MarginUsage.IsZero())
	assert.Empty(t, p.Positions)

	p = PortfolioFromState(&exchange.ClearinghouseState{})
	assert.True(t, p.MarginUsage.IsZero())
}

func TestPortfolioServiceNeedsWallet(t *testing.T) {
	src := &stateSource{state: &exchange.ClearinghouseState{}}

	_, err := NewPortfolioService(src, "", nil).Portfolio(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrAuthFailed))

	_, err = NewPortfolioService(src, "0xabc", nil).Portfolio(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xabc", src.user)
}
