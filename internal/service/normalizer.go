package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/hypergate/internal/exchange"
	"github.com/GoPolymarket/hypergate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hypergate/internal/pkg/logger"
	"github.com/GoPolymarket/hypergate/internal/signer"
)

const (
	// Perp prices carry at most maxPriceDecimals - szDecimals decimals.
	maxPriceDecimals = 6
	maxSigFigs       = 5
)

// MetadataSource is the subset of the info API the normalizer needs.
type MetadataSource interface {
	MetaAndAssetCtxs(ctx context.Context) (*exchange.Meta, []exchange.AssetCtx, error)
	AllMids(ctx context.Context) (map[string]string, error)
}

// AssetMeta is everything needed to turn a raw intent into exchange-valid values.
type AssetMeta struct {
	Symbol         string          `json:"symbol"`
	AssetID        int             `json:"asset_id"`
	TickSize       decimal.Decimal `json:"tick_size"`
	PricePrecision int32           `json:"price_precision"`
	SizeDecimals   int32           `json:"size_decimals"`
	MaxLeverage    int             `json:"max_leverage"`
	SizeIsInteger  bool            `json:"size_is_integer"`
	MarkPx         decimal.Decimal `json:"mark_px"`
	MidPx          decimal.Decimal `json:"mid_px"`
	PrevDayPx      decimal.Decimal `json:"prev_day_px"`
	DayNtlVlm      decimal.Decimal `json:"day_ntl_vlm"`
	Funding        decimal.Decimal `json:"funding"`
	// Calibrated is false when precision fell back to the szDecimals default
	// because no mid price was available.
	Calibrated bool `json:"calibrated"`
}

// RefPrice is the mark price when known, else the mid.
func (m AssetMeta) RefPrice() decimal.Decimal {
	if m.MarkPx.IsPositive() {
		return m.MarkPx
	}
	return m.MidPx
}

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "b", "bid", "long":
		return SideBuy, nil
	case "sell", "a", "ask", "short":
		return SideSell, nil
	default:
		return "", apperrors.NewValidation(fmt.Sprintf("invalid side %q", raw))
	}
}

// NormalizedOrder is a price/size pair that satisfies the asset's tick, lot
// and band constraints.
type NormalizedOrder struct {
	Meta     AssetMeta
	IsBuy    bool
	Price    decimal.Decimal
	Size     decimal.Decimal
	RefPrice decimal.Decimal
}

func (o NormalizedOrder) PriceWire() string { return o.Price.String() }
func (o NormalizedOrder) SizeWire() string  { return o.Size.String() }

func (o NormalizedOrder) Wire(reduceOnly bool, tif, cloid string) signer.OrderWire {
	if tif == "" {
		tif = signer.TifGtc
	}
	return signer.OrderWire{
		Asset:      o.Meta.AssetID,
		IsBuy:      o.IsBuy,
		LimitPx:    o.PriceWire(),
		Size:       o.SizeWire(),
		ReduceOnly: reduceOnly,
		OrderType:  signer.OrderTypeWire{Limit: &signer.LimitWire{Tif: tif}},
		Cloid:      cloid,
	}
}

type NormalizerConfig struct {
	Band     decimal.Decimal // fraction of the reference price, e.g. 0.05
	Bias     decimal.Decimal // fraction of the band toward the reference, in (0, 1]
	CacheTTL time.Duration   // 0 fetches on every Resolve
}

type metaSnapshot struct {
	meta      *exchange.Meta
	ctxs      []exchange.AssetCtx
	mids      map[string]string
	fetchedAt time.Time
}

type Normalizer struct {
	src MetadataSource
	cfg NormalizerConfig
	log *slog.Logger

	mu    sync.Mutex
	cache *metaSnapshot
	now   func() time.Time
}

func NewNormalizer(src MetadataSource, cfg NormalizerConfig, log *slog.Logger) *Normalizer {
	if !cfg.Band.IsPositive() {
		cfg.Band = decimal.RequireFromString("0.05")
	}
	if !cfg.Bias.IsPositive() || cfg.Bias.GreaterThan(decimal.NewFromInt(1)) {
		cfg.Bias = decimal.RequireFromString("0.5")
	}
	return &Normalizer{
		src: src,
		cfg: cfg,
		log: logger.Component(log, "normalizer"),
		now: time.Now,
	}
}

// Invalidate drops cached metadata so the next Resolve hits the exchange.
func (n *Normalizer) Invalidate() {
	n.mu.Lock()
	n.cache = nil
	n.mu.Unlock()
}

func (n *Normalizer) snapshot(ctx context.Context) (*metaSnapshot, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cache != nil && n.cfg.CacheTTL > 0 && n.now().Sub(n.cache.fetchedAt) < n.cfg.CacheTTL {
		return n.cache, nil
	}

	meta, ctxs, err := n.src.MetaAndAssetCtxs(ctx)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrMetadataFetchFailed, "failed to fetch asset metadata", err)
	}
	mids, err := n.src.AllMids(ctx)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrMetadataFetchFailed, "failed to fetch mid prices", err)
	}

	snap := &metaSnapshot{meta: meta, ctxs: ctxs, mids: mids, fetchedAt: n.now()}
	n.cache = snap
	return snap, nil
}

// Resolve looks the coin up in the current universe.
func (n *Normalizer) Resolve(ctx context.Context, coin string) (AssetMeta, error) {
	snap, err := n.snapshot(ctx)
	if err != nil {
		return AssetMeta{}, err
	}

	idx := -1
	for i, a := range snap.meta.Universe {
		if a.Name == coin {
			idx = i
			break
		}
	}
	if idx < 0 {
		for i, a := range snap.meta.Universe {
			if strings.EqualFold(a.Name, coin) {
				idx = i
				break
			}
		}
	}
	if idx < 0 || snap.meta.Universe[idx].IsDelisted {
		return AssetMeta{}, apperrors.New(apperrors.ErrAssetNotFound, fmt.Sprintf("asset %s not found in universe", coin), nil)
	}

	info := snap.meta.Universe[idx]
	var assetCtx *exchange.AssetCtx
	if idx < len(snap.ctxs) {
		assetCtx = &snap.ctxs[idx]
	}
	meta := buildAssetMeta(idx, info, assetCtx, snap.mids[info.Name])
	if !meta.Calibrated {
		n.log.Warn("no mid price, using uncalibrated tick size",
			"coin", info.Name, "price_precision", meta.PricePrecision, "tick_size", meta.TickSize.String())
	}
	return meta, nil
}

func buildAssetMeta(assetID int, info exchange.AssetInfo, assetCtx *exchange.AssetCtx, mid string) AssetMeta {
	szDecimals := int32(info.SzDecimals)
	precision := int32(maxPriceDecimals) - szDecimals
	if precision < 0 {
		precision = 0
	}

	meta := AssetMeta{
		Symbol:        info.Name,
		AssetID:       assetID,
		SizeDecimals:  szDecimals,
		MaxLeverage:   info.MaxLeverage,
		SizeIsInteger: szDecimals == 0,
	}

	if midPx, err := decimal.NewFromString(mid); err == nil && midPx.IsPositive() {
		meta.MidPx = midPx
		meta.Calibrated = true
		if d := decimalsOf(mid); d < precision {
			precision = d
		}
	}
	if assetCtx != nil {
		meta.MarkPx = parseDecimal(assetCtx.MarkPx)
		meta.PrevDayPx = parseDecimal(assetCtx.PrevDayPx)
		meta.DayNtlVlm = parseDecimal(assetCtx.DayNtlVlm)
		meta.Funding = parseDecimal(assetCtx.Funding)
	}

	meta.PricePrecision = precision
	meta.TickSize = decimal.New(1, -precision)
	return meta
}

// Normalize resolves fresh metadata for coin and fits the raw order to it.
func (n *Normalizer) Normalize(ctx context.Context, coin string, side Side, size, price decimal.Decimal) (NormalizedOrder, error) {
	meta, err := n.Resolve(ctx, coin)
	if err != nil {
		return NormalizedOrder{}, err
	}
	order, err := NormalizeWithMeta(meta, side, size, price, n.cfg.Band, n.cfg.Bias)
	if err != nil {
		return NormalizedOrder{}, err
	}
	if !order.Price.Equal(price) {
		n.log.Info("limit price adjusted",
			"coin", meta.Symbol, "side", side, "requested", price.String(), "limit", order.PriceWire(), "ref", order.RefPrice.String())
	}
	return order, nil
}

// ClampLeverage bounds a requested leverage to [1, maxLeverage].
func (n *Normalizer) ClampLeverage(meta AssetMeta, leverage int) int {
	if leverage < 1 {
		return 1
	}
	if meta.MaxLeverage > 0 && leverage > meta.MaxLeverage {
		n.log.Warn("leverage above asset maximum, clamping",
			"coin", meta.Symbol, "requested", leverage, "max", meta.MaxLeverage)
		return meta.MaxLeverage
	}
	return leverage
}

// NormalizeWithMeta is the pure part of Normalize.
//
// The limit is biased toward the reference (buys capped at ref+band*bias,
// sells floored at ref-band*bias), clamped into [ref-band, ref+band], rounded
// to the tick and to five significant figures, and pulled back by one step
// if rounding pushed it outside the band. Size is truncated toward zero.
func NormalizeWithMeta(meta AssetMeta, side Side, size, price, band, bias decimal.Decimal) (NormalizedOrder, error) {
	ref := meta.RefPrice()
	if !ref.IsPositive() {
		return NormalizedOrder{}, apperrors.New(apperrors.ErrMetadataFetchFailed,
			fmt.Sprintf("no reference price for %s", meta.Symbol), nil)
	}
	if !price.IsPositive() {
		price = ref
	}
	if side != SideBuy && side != SideSell {
		return NormalizedOrder{}, apperrors.NewValidation(fmt.Sprintf("invalid side %q", side))
	}

	dev := ref.Mul(band)
	lo, hi := ref.Sub(dev), ref.Add(dev)

	p := price
	if side == SideBuy {
		p = decimal.Min(p, ref.Add(dev.Mul(bias)))
	} else {
		p = decimal.Max(p, ref.Sub(dev.Mul(bias)))
	}
	p = decimal.Min(decimal.Max(p, lo), hi)

	tick := meta.TickSize
	if !tick.IsPositive() {
		tick = decimal.New(1, -meta.PricePrecision)
	}
	p = p.Div(tick).Round(0).Mul(tick).Round(meta.PricePrecision)

	decimals := priceDecimals(p, meta.PricePrecision)
	p = p.Round(decimals)
	step := decimal.New(1, -decimals)

	if p.GreaterThan(hi) {
		p = p.Sub(step)
	} else if p.LessThan(lo) {
		p = p.Add(step)
	}
	if p.GreaterThan(hi) || p.LessThan(lo) || !p.IsPositive() {
		return NormalizedOrder{}, apperrors.NewValidation(
			fmt.Sprintf("%s limit %s cannot be placed inside band [%s, %s]", meta.Symbol, p.String(), lo.String(), hi.String()))
	}

	sz := size.Abs().Truncate(meta.SizeDecimals)
	if meta.SizeIsInteger {
		sz = sz.Truncate(0)
	}
	if !sz.IsPositive() {
		return NormalizedOrder{}, apperrors.NewValidation(
			fmt.Sprintf("%s size %s rounds to zero at %d decimals", meta.Symbol, size.String(), meta.SizeDecimals))
	}

	return NormalizedOrder{
		Meta:     meta,
		IsBuy:    side == SideBuy,
		Price:    p,
		Size:     sz,
		RefPrice: ref,
	}, nil
}

// priceDecimals returns how many decimals p may keep: at most precision, and
// at most five significant figures unless p is an integer.
func priceDecimals(p decimal.Decimal, precision int32) int32 {
	if p.IsInteger() {
		return 0
	}
	var d int32
	intPart := p.Abs().Truncate(0)
	if intPart.IsZero() {
		// leading zeros after the point do not count as significant
		q := p.Abs()
		ten := decimal.NewFromInt(10)
		for d = maxSigFigs - 1; q.LessThan(decimal.NewFromInt(1)); d++ {
			q = q.Mul(ten)
		}
	} else {
		d = maxSigFigs - int32(len(intPart.String()))
		if d < 0 {
			d = 0
		}
	}
	if d > precision {
		d = precision
	}
	return d
}

func decimalsOf(s string) int32 {
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	return int32(len(s) - i - 1)
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
