package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/GoPolymarket/hypergate/internal/config"
	"github.com/GoPolymarket/hypergate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hypergate/internal/pkg/logger"
	"github.com/GoPolymarket/hypergate/internal/pkg/metrics"
)

const maxBodyBytes = 8 << 20

// Client talks to the /info and /exchange endpoints.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	limiter         *rate.Limiter
	infoTimeout     time.Duration
	exchangeTimeout time.Duration
	log             *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func NewClient(cfg config.ExchangeConfig, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		infoTimeout:     cfg.InfoTimeout(),
		exchangeTimeout: cfg.ExchangeTimeout(),
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}
	if c.infoTimeout <= 0 {
		c.infoTimeout = 10 * time.Second
	}
	if c.exchangeTimeout <= 0 {
		c.exchangeTimeout = 30 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.Component(c.log, "exchange")
	return c
}

// Info posts an info request and decodes the JSON answer into out.
func (c *Client) Info(ctx context.Context, req any, out any) error {
	status, body, err := c.post(ctx, "/info", c.infoTimeout, req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return apperrors.New(apperrors.ErrNetwork, fmt.Sprintf("info returned HTTP %d: %s", status, truncate(body)), nil)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.New(apperrors.ErrNetwork, "malformed info response", err)
	}
	return nil
}

func (c *Client) Meta(ctx context.Context) (*Meta, error) {
	var meta Meta
	if err := c.Info(ctx, map[string]string{"type": "meta"}, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *Client) AllMids(ctx context.Context) (map[string]string, error) {
	mids := make(map[string]string)
	if err := c.Info(ctx, map[string]string{"type": "allMids"}, &mids); err != nil {
		return nil, err
	}
	return mids, nil
}

// MetaAndAssetCtxs returns the universe with its index-aligned asset contexts.
// The endpoint answers with a two-element array.
func (c *Client) MetaAndAssetCtxs(ctx context.Context) (*Meta, []AssetCtx, error) {
	var raw []json.RawMessage
	if err := c.Info(ctx, map[string]string{"type": "metaAndAssetCtxs"}, &raw); err != nil {
		return nil, nil, err
	}
	if len(raw) != 2 {
		return nil, nil, apperrors.New(apperrors.ErrNetwork, fmt.Sprintf("metaAndAssetCtxs: expected 2 elements, got %d", len(raw)), nil)
	}
	var meta Meta
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return nil, nil, apperrors.New(apperrors.ErrNetwork, "malformed meta", err)
	}
	var ctxs []AssetCtx
	if err := json.Unmarshal(raw[1], &ctxs); err != nil {
		return nil, nil, apperrors.New(apperrors.ErrNetwork, "malformed asset contexts", err)
	}
	return &meta, ctxs, nil
}

func (c *Client) ClearinghouseState(ctx context.Context, user string) (*ClearinghouseState, error) {
	var state ClearinghouseState
	req := map[string]string{"type": "clearinghouseState", "user": user}
	if err := c.Info(ctx, req, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) OpenOrders(ctx context.Context, user string) ([]OpenOrder, error) {
	var orders []OpenOrder
	req := map[string]string{"type": "openOrders", "user": user}
	if err := c.Info(ctx, req, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// PostExchange sends a signed payload and returns the raw status and body.
// Only transport failures are errors here; classification is up to the caller.
func (c *Client) PostExchange(ctx context.Context, payload any) (int, []byte, error) {
	return c.post(ctx, "/exchange", c.exchangeTimeout, payload)
}

func (c *Client) post(ctx context.Context, path string, timeout time.Duration, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, apperrors.New(apperrors.ErrInvalidRequest, "failed to encode request", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, apperrors.New(apperrors.ErrNetwork, "rate limiter wait", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, apperrors.New(apperrors.ErrInternal, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ExchangeLatency.WithLabelValues(path, "transport_error").Observe(time.Since(start).Seconds())
		c.log.Warn("request failed", "path", path, "error", err)
		return 0, nil, apperrors.New(apperrors.ErrNetwork, "request to "+path+" failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	metrics.ExchangeLatency.WithLabelValues(path, fmt.Sprintf("%dxx", resp.StatusCode/100)).Observe(time.Since(start).Seconds())
	if err != nil {
		return resp.StatusCode, nil, apperrors.New(apperrors.ErrNetwork, "failed to read response", err)
	}
	c.log.Debug("request done", "path", path, "status", resp.StatusCode, "latency_ms", time.Since(start).Milliseconds())
	return resp.StatusCode, respBody, nil
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
