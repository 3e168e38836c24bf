package market

import (
	"context"
	"errors"
	"testing"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTickers struct {
	stats []*futures.PriceChangeStats
	err   error
}

func (s stubTickers) Tickers(context.Context) ([]*futures.PriceChangeStats, error) {
	return s.stats, s.err
}

func TestBinanceSnapshotsMapsSymbols(t *testing.T) {
	b := NewBinanceSnapshotsFrom(stubTickers{stats: []*futures.PriceChangeStats{
		{Symbol: "BTCUSDT", LastPrice: "65000.1", PriceChangePercent: "-1.25", QuoteVolume: "1000000"},
		{Symbol: "ADAUSDT", LastPrice: "0", PriceChangePercent: "0", QuoteVolume: "0"},
		nil,
	}})

	snaps, err := b.Snapshots(context.Background(), []string{"btc", "ADA", "ETH"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	btc := snaps["btc"]
	assert.Equal(t, "BTC", btc.Coin)
	assert.Equal(t, "65000.1", btc.Price.String())
	assert.Equal(t, "-1.25", btc.Change24h.String())
	assert.Equal(t, "1000000", btc.Volume24h.String())
}

func TestBinanceSnapshotsError(t *testing.T) {
	b := NewBinanceSnapshotsFrom(stubTickers{err: errors.New("418")})
	_, err := b.Snapshots(context.Background(), []string{"BTC"})
	require.Error(t, err)
}
