package market

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/hypergate/internal/exchange"
	"github.com/GoPolymarket/hypergate/internal/model"
)

// ContextSource is satisfied by *exchange.Client.
type ContextSource interface {
	MetaAndAssetCtxs(ctx context.Context) (*exchange.Meta, []exchange.AssetCtx, error)
}

type SnapshotService struct {
	src ContextSource
}

func NewSnapshotService(src ContextSource) *SnapshotService {
	return &SnapshotService{src: src}
}

// Snapshots returns one snapshot per requested coin that is listed. Coins
// missing from the universe are left out of the map.
func (s *SnapshotService) Snapshots(ctx context.Context, coins []string) (map[string]model.MarketSnapshot, error) {
	meta, ctxs, err := s.src.MetaAndAssetCtxs(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(meta.Universe))
	for i, a := range meta.Universe {
		if a.IsDelisted || i >= len(ctxs) {
			continue
		}
		index[strings.ToUpper(a.Name)] = i
	}

	out := make(map[string]model.MarketSnapshot, len(coins))
	for _, coin := range coins {
		i, ok := index[strings.ToUpper(coin)]
		if !ok {
			continue
		}
		out[coin] = BuildSnapshot(meta.Universe[i].Name, ctxs[i])
	}
	return out, nil
}

// BuildSnapshot derives price, 24h change in percent, notional volume and
// funding from an asset context. The price is the book mid when present and
// the mark otherwise.
func BuildSnapshot(coin string, actx exchange.AssetCtx) model.MarketSnapshot {
	mark := parse(actx.MarkPx)
	price := mark
	if actx.MidPx != nil {
		if mid := parse(*actx.MidPx); mid.IsPositive() {
			price = mid
		}
	}

	change := decimal.Zero
	if prev := parse(actx.PrevDayPx); prev.IsPositive() && mark.IsPositive() {
		change = mark.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(4)
	}

	return model.MarketSnapshot{
		Coin:      coin,
		Price:     price,
		Change24h: change,
		Volume24h: parse(actx.DayNtlVlm),
		Funding:   parse(actx.Funding),
	}
}

func parse(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
