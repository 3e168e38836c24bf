package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPolymarket/hypergate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hypergate/internal/signer"
)

type scriptedReply struct {
	status int
	body   string
	err    error
}

type scriptedPoster struct {
	replies  []scriptedReply
	payloads []any
}

func (p *scriptedPoster) PostExchange(_ context.Context, payload any) (int, []byte, error) {
	p.payloads = append(p.payloads, payload)
	r := p.replies[0]
	if len(p.replies) > 1 {
		p.replies = p.replies[1:]
	}
	return r.status, []byte(r.body), r.err
}

func newTestGateway(p ExchangePoster, retries int) *Gateway {
	g := NewGateway(p, GatewayConfig{MaxRetries: retries, Backoff: time.Millisecond}, nil)
	g.sleep = func(context.Context, time.Duration) error { return nil }
	return g
}

func testPayload() *signer.SignedPayload {
	return &signer.SignedPayload{
		Action: signer.NewOrderAction(signer.OrderWire{Asset: 1, IsBuy: true, LimitPx: "100", Size: "1",
			OrderType: signer.OrderTypeWire{Limit: &signer.LimitWire{Tif: signer.TifGtc}}}),
		Nonce: 1700000000000,
	}
}

func TestClassifyResponse(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		errType apperrors.ErrorType
	}{
		{"resting", 200, `{"status":"ok","response":{"type":"order","data":{"statuses":[{"resting":{"oid":77738308}}]}}}`, ""},
		{"leverage ok", 200, `{"status":"ok","response":{"type":"default"}}`, ""},
		{"embedded error on 200", 200, `{"status":"ok","response":{"type":"order","data":{"statuses":[{"error":"Insufficient margin to place order."}]}}}`, apperrors.ErrOrderRejected},
		{"err status with string response", 200, `{"status":"err","response":"User or API Wallet 0x123 does not exist."}`, apperrors.ErrOrderRejected},
		{"client error", 422, `Failed to deserialize the JSON body`, apperrors.ErrOrderRejected},
		{"server error", 502, `bad gateway`, apperrors.ErrNetwork},
		{"garbage", 200, `<html>`, apperrors.ErrOrderRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := ClassifyResponse(tc.status, []byte(tc.body))
			if tc.errType == "" {
				require.NoError(t, err)
				assert.Equal(t, "ok", res.Status)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tc.errType), "got %v", err)
		})
	}
}

func TestClassifyResponse_InsufficientMarginIsFailure(t *testing.T) {
	_, err := ClassifyResponse(http.StatusOK, []byte(`{"status":"ok","response":{"data":{"statuses":[{"error":"Insufficient margin"}]}}}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrOrderRejected))
	assert.Contains(t, err.Error(), "Insufficient margin")
}

func TestGateway_RetriesSamePayloadOnNetworkError(t *testing.T) {
	poster := &scriptedPoster{replies: []scriptedReply{
		{err: apperrors.New(apperrors.ErrNetwork, "connection reset", nil)},
		{status: 503, body: "unavailable"},
		{status: 200, body: `{"status":"ok","response":{"type":"order","data":{"statuses":[{"filled":{"totalSz":"1","avgPx":"100","oid":9}}]}}}`},
	}}
	g := newTestGateway(poster, 2)
	payload := testPayload()

	res, err := g.Submit(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []uint64{9}, res.OrderIDs())
	require.Len(t, poster.payloads, 3)
	for _, p := range poster.payloads {
		assert.Same(t, payload, p)
	}
}

func TestGateway_NoRetryOnRejection(t *testing.T) {
	poster := &scriptedPoster{replies: []scriptedReply{
		{status: 200, body: `{"status":"ok","response":{"type":"order","data":{"statuses":[{"error":"Order must have minimum value of $10."}]}}}`},
	}}
	g := newTestGateway(poster, 2)

	_, err := g.Submit(context.Background(), testPayload())
	assert.True(t, apperrors.IsType(err, apperrors.ErrOrderRejected))
	assert.Len(t, poster.payloads, 1)
}

func TestGateway_RetriesExhausted(t *testing.T) {
	poster := &scriptedPoster{replies: []scriptedReply{{status: 500, body: "boom"}}}
	g := newTestGateway(poster, 2)

	_, err := g.Submit(context.Background(), testPayload())
	assert.True(t, apperrors.IsType(err, apperrors.ErrNetwork))
	assert.Len(t, poster.payloads, 3)
}

func TestGateway_NonceRejectionAfterRetryIsDuplicate(t *testing.T) {
	poster := &scriptedPoster{replies: []scriptedReply{
		{err: apperrors.New(apperrors.ErrNetwork, "timeout", nil)},
		{status: 200, body: `{"status":"err","response":"Invalid nonce: duplicate nonce 1700000000000"}`},
	}}
	g := newTestGateway(poster, 2)

	_, err := g.Submit(context.Background(), testPayload())
	assert.True(t, apperrors.IsType(err, apperrors.ErrDuplicate))
	assert.Len(t, poster.payloads, 2)
}
