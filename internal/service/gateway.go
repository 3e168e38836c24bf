package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/GoPolymarket/hypergate/internal/exchange"
	"github.com/GoPolymarket/hypergate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hypergate/internal/pkg/logger"
	"github.com/GoPolymarket/hypergate/internal/signer"
)

// ExchangePoster sends a signed payload to /exchange.
type ExchangePoster interface {
	PostExchange(ctx context.Context, payload any) (int, []byte, error)
}

// ExchangeResult is a successfully classified /exchange answer.
type ExchangeResult struct {
	Status   string                 `json:"status"`
	Type     string                 `json:"type,omitempty"`
	Statuses []exchange.OrderStatus `json:"statuses,omitempty"`
	Attempts int                    `json:"attempts"`
}

// OrderIDs returns the oids of resting or filled orders.
func (r *ExchangeResult) OrderIDs() []uint64 {
	var ids []uint64
	for _, s := range r.Statuses {
		switch {
		case s.Resting != nil:
			ids = append(ids, s.Resting.Oid)
		case s.Filled != nil:
			ids = append(ids, s.Filled.Oid)
		}
	}
	return ids
}

type GatewayConfig struct {
	MaxRetries int
	Backoff    time.Duration
}

// Gateway submits signed payloads and classifies the outcome. Retries re-send
// the identical payload, so a retried request can never create a second order
// under a new nonce.
type Gateway struct {
	client ExchangePoster
	cfg    GatewayConfig
	log    *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewGateway(client ExchangePoster, cfg GatewayConfig, log *slog.Logger) *Gateway {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	return &Gateway{
		client: client,
		cfg:    cfg,
		log:    logger.Component(log, "gateway"),
		sleep:  sleepCtx,
	}
}

func (g *Gateway) Submit(ctx context.Context, payload *signer.SignedPayload) (*ExchangeResult, error) {
	if payload == nil {
		return nil, apperrors.NewInvalidRequest("payload is required")
	}
	action := payload.Action.ActionType()
	delay := g.cfg.Backoff

	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxRetries+1; attempt++ {
		status, body, err := g.client.PostExchange(ctx, payload)
		var result *ExchangeResult
		if err == nil {
			result, err = ClassifyResponse(status, body)
		}
		if err == nil {
			result.Attempts = attempt
			return result, nil
		}

		if attempt > 1 && apperrors.IsType(err, apperrors.ErrOrderRejected) && isNonceRejection(err) {
			// An earlier attempt most likely reached the exchange and consumed the nonce.
			return nil, apperrors.New(apperrors.ErrDuplicate,
				fmt.Sprintf("%s nonce %d already used after retry; outcome of the earlier attempt is unknown", action, payload.Nonce), err)
		}
		if !retryable(status, err) {
			return nil, err
		}

		lastErr = err
		if attempt <= g.cfg.MaxRetries {
			g.log.Warn("exchange submission failed, retrying same payload",
				"action", action, "nonce", payload.Nonce, "attempt", attempt, "status", status, "error", err, "retry_in", delay)
			if err := g.sleep(ctx, delay); err != nil {
				return nil, apperrors.New(apperrors.ErrNetwork, "cancelled while retrying", lastErr)
			}
			delay *= 2
		}
	}
	return nil, lastErr
}

// ClassifyResponse maps an /exchange answer to a result or a typed error.
// Success requires HTTP 200, status "ok" and no per-order error.
func ClassifyResponse(status int, body []byte) (*ExchangeResult, error) {
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return nil, apperrors.New(apperrors.ErrNetwork, fmt.Sprintf("exchange returned HTTP %d: %s", status, snippet(body)), nil)
	}
	if status != http.StatusOK {
		return nil, apperrors.New(apperrors.ErrOrderRejected, fmt.Sprintf("exchange returned HTTP %d: %s", status, snippet(body)), nil)
	}

	var env exchange.Response
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperrors.New(apperrors.ErrOrderRejected, "malformed exchange response: "+snippet(body), err)
	}
	if env.Status != "ok" {
		msg := string(env.Response)
		var s string
		if err := json.Unmarshal(env.Response, &s); err == nil {
			msg = s
		}
		if msg == "" {
			msg = "status " + env.Status
		}
		return nil, apperrors.New(apperrors.ErrOrderRejected, msg, nil)
	}

	result := &ExchangeResult{Status: env.Status}
	if len(env.Response) == 0 || string(env.Response) == "null" {
		return result, nil
	}
	var resp exchange.ResponseBody
	if err := json.Unmarshal(env.Response, &resp); err != nil {
		return nil, apperrors.New(apperrors.ErrOrderRejected, "malformed exchange response body: "+snippet(env.Response), err)
	}
	result.Type = resp.Type
	if resp.Data != nil {
		result.Statuses = resp.Data.Statuses
	}

	var errs []string
	for _, s := range result.Statuses {
		if s.Error != "" {
			errs = append(errs, s.Error)
		}
	}
	if len(errs) > 0 {
		return nil, apperrors.New(apperrors.ErrOrderRejected, strings.Join(errs, "; "), nil)
	}
	return result, nil
}

func retryable(status int, err error) bool {
	if !apperrors.IsType(err, apperrors.ErrNetwork) {
		return false
	}
	return status == 0 || status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}

func isNonceRejection(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "nonce")
}

func snippet(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
