package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/hypergate/internal/config"
	"github.com/GoPolymarket/hypergate/internal/model"
	"github.com/GoPolymarket/hypergate/internal/pkg/logger"
)

// Decider produces at most one intent per coin for a cycle. An empty map
// means no trades.
type Decider interface {
	Decide(ctx context.Context, snaps map[string]model.MarketSnapshot, portfolio *model.Portfolio) map[string]model.Intent
}

// StaticDecider returns a fixed set of intents.
type StaticDecider map[string]model.Intent

func (s StaticDecider) Decide(_ context.Context, _ map[string]model.MarketSnapshot, _ *model.Portfolio) map[string]model.Intent {
	out := make(map[string]model.Intent, len(s))
	for coin, intent := range s {
		intent.Coin = coin
		out[coin] = intent
	}
	return out
}

const systemPrompt = "You are an expert cryptocurrency trading analyst. Provide clear, data-driven trading recommendations with appropriate leverage suggestions."

// LLMDecider asks an OpenAI-compatible chat-completions endpoint for one
// order per trading pair. Any failure yields no intents.
type LLMDecider struct {
	cfg        config.LLMConfig
	pairs      []string
	httpClient *http.Client
	log        *slog.Logger
}

func NewLLMDecider(cfg config.LLMConfig, pairs []string, log *slog.Logger) *LLMDecider {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LLMDecider{
		cfg:        cfg,
		pairs:      pairs,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.Component(log, "decider"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (d *LLMDecider) Decide(ctx context.Context, snaps map[string]model.MarketSnapshot, portfolio *model.Portfolio) map[string]model.Intent {
	if d.cfg.APIKey == "" {
		d.log.Warn("llm api key not configured, no decisions this cycle")
		return map[string]model.Intent{}
	}

	content, err := d.complete(ctx, BuildPrompt(d.pairs, snaps, portfolio))
	if err != nil {
		d.log.Error("llm request failed", "error", err)
		return map[string]model.Intent{}
	}
	d.log.Debug("llm response", "content", content)

	intents, err := ParseIntents(content, d.pairs)
	if err != nil {
		d.log.Error("llm response unparseable", "error", err)
		return map[string]model.Intent{}
	}
	for coin, in := range intents {
		d.log.Info("decision", "coin", coin, "action", in.Action, "size", in.Size.String(),
			"leverage", in.Leverage, "confidence", in.Confidence, "reasoning", in.Reasoning)
	}
	return intents
}

func (d *LLMDecider) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: d.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: d.cfg.Temperature,
		MaxTokens:   d.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(d.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, snippet(raw))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("completion has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// BuildPrompt renders the portfolio and market context with the required
// JSON answer format.
func BuildPrompt(pairs []string, snaps map[string]model.MarketSnapshot, p *model.Portfolio) string {
	var b strings.Builder
	b.WriteString("Provide EXECUTABLE trading orders for a Hyperliquid perpetuals account.\n\n")

	b.WriteString("PORTFOLIO:\n")
	if p != nil {
		fmt.Fprintf(&b, "  total balance: $%s\n", p.TotalBalance.StringFixed(2))
		fmt.Fprintf(&b, "  available: $%s\n", p.Available.StringFixed(2))
		fmt.Fprintf(&b, "  margin usage: %s%%\n", p.MarginUsage.Mul(decimal.NewFromInt(100)).StringFixed(1))
		coins := make([]string, 0, len(p.Positions))
		for c := range p.Positions {
			coins = append(coins, c)
		}
		sort.Strings(coins)
		if len(coins) == 0 {
			b.WriteString("  positions: none\n")
		}
		for _, c := range coins {
			pos := p.Positions[c]
			kind := "LONG"
			if pos.Size.IsNegative() {
				kind = "SHORT"
			}
			fmt.Fprintf(&b, "  - %s: %s @ $%s (%dx, %s)\n", c, pos.Size.String(), pos.EntryPx.String(), pos.Leverage, kind)
		}
	}

	b.WriteString("\nMARKET:\n")
	for _, coin := range pairs {
		s, ok := snaps[coin]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %s: $%s | 24h %s%% | vol $%sM | funding %s\n", coin, s.Price.String(),
			s.Change24h.StringFixed(2), s.Volume24h.Div(decimal.NewFromInt(1_000_000)).StringFixed(1), s.Funding.String())
	}

	b.WriteString("\nActions: buy, sell, hold, close_position, increase_position, reduce_position, change_leverage.\n")
	b.WriteString("size is in coin units, leverage 1-25, confidence 0.1-1.0.\n")
	b.WriteString("Answer with a JSON array only, one object per coin:\n[\n")
	for i, coin := range pairs {
		fmt.Fprintf(&b, `  {"coin": "%s", "action": "...", "size": 0, "leverage": 1, "confidence": 0.5, "reasoning": "..."}`, coin)
		if i < len(pairs)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("]\n")
	return b.String()
}

var jsonBlock = regexp.MustCompile(`(?s)(\[.*\]|\{.*\})`)

type rawIntent struct {
	Coin       string          `json:"coin"`
	Action     string          `json:"action"`
	Size       decimal.Decimal `json:"size"`
	Leverage   float64         `json:"leverage"`
	Confidence float64         `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
	Side       string          `json:"side"`
}

func (r rawIntent) intent(coin string) model.Intent {
	action := model.IntentAction(strings.ToLower(strings.TrimSpace(r.Action)))
	if action == "" {
		action = model.ActionHold
	}
	lev := int(r.Leverage)
	if lev < 1 {
		lev = 1
	}
	reasoning := r.Reasoning
	if reasoning == "" {
		reasoning = "No reasoning provided"
	}
	return model.Intent{
		Coin:       coin,
		Action:     action,
		Size:       r.Size,
		Leverage:   lev,
		Confidence: r.Confidence,
		Reasoning:  reasoning,
		Side:       strings.ToLower(r.Side),
	}
}

// ParseIntents extracts the first JSON array or object in text. Array items
// without a coin fall back to a pair named in the reasoning, then to the pair
// at the same index. Unknown actions are dropped.
func ParseIntents(text string, pairs []string) (map[string]model.Intent, error) {
	block := jsonBlock.FindString(text)
	if block == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	out := make(map[string]model.Intent)
	add := func(coin string, r rawIntent) {
		in := r.intent(pairSymbol(coin, pairs))
		if !in.Action.Valid() {
			return
		}
		out[in.Coin] = in
	}

	if strings.HasPrefix(block, "[") {
		var items []rawIntent
		if err := json.Unmarshal([]byte(block), &items); err != nil {
			return nil, fmt.Errorf("decode intents: %w", err)
		}
		for i, item := range items {
			coin := item.Coin
			if coin == "" {
				coin = inferCoin(item.Reasoning, pairs, i)
			}
			if coin == "" {
				continue
			}
			add(coin, item)
		}
		return out, nil
	}

	var byCoin map[string]rawIntent
	if err := json.Unmarshal([]byte(block), &byCoin); err != nil {
		return nil, fmt.Errorf("decode intents: %w", err)
	}
	for coin, item := range byCoin {
		add(coin, item)
	}
	return out, nil
}

// pairSymbol returns the configured spelling of coin. Tickers are case
// sensitive (kPEPE), so a model answering "KPEPE" must map back to the pair.
func pairSymbol(coin string, pairs []string) string {
	coin = strings.TrimSpace(coin)
	for _, p := range pairs {
		if strings.EqualFold(p, coin) {
			return p
		}
	}
	return coin
}

func inferCoin(reasoning string, pairs []string, index int) string {
	for _, p := range pairs {
		if strings.Contains(reasoning, p) {
			return p
		}
	}
	if index < len(pairs) {
		return pairs[index]
	}
	return ""
}
