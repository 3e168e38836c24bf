package market

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/hypergate/internal/model"
)

// TickerSource is satisfied by the Binance futures 24h ticker service.
type TickerSource interface {
	Tickers(ctx context.Context) ([]*futures.PriceChangeStats, error)
}

type futuresTickers struct {
	client *futures.Client
}

func (f futuresTickers) Tickers(ctx context.Context) ([]*futures.PriceChangeStats, error) {
	return f.client.NewListPriceChangeStatsService().Do(ctx)
}

// BinanceSnapshots reads 24h USDT-margined futures tickers as an alternative
// snapshot feed. Hyperliquid coins map to "<COIN>USDT".
type BinanceSnapshots struct {
	src TickerSource
}

func NewBinanceSnapshots(hc *http.Client) *BinanceSnapshots {
	client := futures.NewClient("", "")
	if hc != nil {
		client.HTTPClient = hc
	}
	return &BinanceSnapshots{src: futuresTickers{client: client}}
}

func NewBinanceSnapshotsFrom(src TickerSource) *BinanceSnapshots {
	return &BinanceSnapshots{src: src}
}

func (b *BinanceSnapshots) Snapshots(ctx context.Context, coins []string) (map[string]model.MarketSnapshot, error) {
	stats, err := b.src.Tickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance tickers: %w", err)
	}
	bySymbol := make(map[string]*futures.PriceChangeStats, len(stats))
	for _, st := range stats {
		if st != nil {
			bySymbol[st.Symbol] = st
		}
	}

	out := make(map[string]model.MarketSnapshot, len(coins))
	for _, coin := range coins {
		st, ok := bySymbol[strings.ToUpper(coin)+"USDT"]
		if !ok {
			continue
		}
		price := parse(st.LastPrice)
		if !price.IsPositive() {
			continue
		}
		out[coin] = model.MarketSnapshot{
			Coin:      strings.ToUpper(coin),
			Price:     price,
			Change24h: parse(st.PriceChangePercent),
			Volume24h: parse(st.QuoteVolume),
			Funding:   decimal.Zero,
		}
	}
	return out, nil
}
