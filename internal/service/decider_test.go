package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPolymarket/hypergate/internal/config"
	"github.com/GoPolymarket/hypergate/internal/model"
)

var testPairs = []string{"BTC", "ETH", "SOL", "BNB", "ADA"}

func TestParseIntents_ArrayWithProse(t *testing.T) {
	text := "Here are the orders:\n```json\n[" +
		`{"coin":"BTC","action":"buy","size":0.001,"leverage":5,"confidence":0.8,"reasoning":"trend"},` +
		`{"coin":"eth","action":"HOLD","size":0,"leverage":1,"confidence":0.5},` +
		`{"action":"sell","size":"16","leverage":10.0,"confidence":0.6,"reasoning":"ADA is weak"},` +
		`{"coin":"SOL","action":"moon","size":1}` +
		"]\n```\nGood luck."

	intents, err := ParseIntents(text, testPairs)
	require.NoError(t, err)
	require.Len(t, intents, 3)

	btc := intents["BTC"]
	assert.Equal(t, model.ActionBuy, btc.Action)
	assert.Equal(t, "0.001", btc.Size.String())
	assert.Equal(t, 5, btc.Leverage)

	eth := intents["ETH"]
	assert.Equal(t, model.ActionHold, eth.Action)
	assert.Equal(t, "No reasoning provided", eth.Reasoning)

	ada := intents["ADA"]
	assert.Equal(t, model.ActionSell, ada.Action)
	assert.Equal(t, 10, ada.Leverage)

	_, ok := intents["SOL"]
	assert.False(t, ok, "unknown action must be dropped")
}

func TestParseIntents_CoinFromIndex(t *testing.T) {
	intents, err := ParseIntents(`[{"action":"hold"},{"action":"buy","size":1,"reasoning":"momentum"}]`, testPairs)
	require.NoError(t, err)
	assert.Contains(t, intents, "BTC")
	assert.Contains(t, intents, "ETH")
}

func TestParseIntents_ObjectForm(t *testing.T) {
	intents, err := ParseIntents(`{"BTC":{"action":"close_position","confidence":0.9}}`, testPairs)
	require.NoError(t, err)
	require.Contains(t, intents, "BTC")
	assert.Equal(t, model.ActionClosePosition, intents["BTC"].Action)
	assert.Equal(t, 1, intents["BTC"].Leverage)
}

func TestParseIntents_KeepsPairSpelling(t *testing.T) {
	pairs := []string{"kPEPE", "BTC"}
	intents, err := ParseIntents(`[{"coin":"KPEPE","action":"buy","size":"16","confidence":0.7},`+
		`{"coin":"btc","action":"hold"},{"coin":"Doge","action":"sell","size":1}]`, pairs)
	require.NoError(t, err)

	require.Contains(t, intents, "kPEPE")
	assert.Equal(t, "kPEPE", intents["kPEPE"].Coin)
	assert.Contains(t, intents, "BTC")
	assert.Contains(t, intents, "Doge", "unknown coins keep their raw spelling")
	assert.Equal(t, []string{"kPEPE", "BTC"}, orderedCoins(pairs, intents))

	intents, err = ParseIntents(`{"kpepe":{"action":"close_position","confidence":0.9}}`, pairs)
	require.NoError(t, err)
	assert.Contains(t, intents, "kPEPE")
}

func TestParseIntents_NoJSON(t *testing.T) {
	_, err := ParseIntents("I cannot help with that.", testPairs)
	require.Error(t, err)
}

func TestBuildPrompt_ListsPairsAndPositions(t *testing.T) {
	p := &model.Portfolio{
		TotalBalance: dec("100"),
		Available:    dec("80"),
		MarginUsage:  dec("0.2"),
		Positions: map[string]model.PositionInfo{
			"ETH": {Coin: "ETH", Size: dec("-0.5"), EntryPx: dec("3000"), Leverage: 5},
		},
	}
	snaps := map[string]model.MarketSnapshot{
		"BTC": {Coin: "BTC", Price: dec("65000"), Volume24h: dec("2500000")},
	}
	prompt := BuildPrompt([]string{"BTC", "ETH"}, snaps, p)

	assert.Contains(t, prompt, "margin usage: 20.0%")
	assert.Contains(t, prompt, "ETH: -0.5 @ $3000 (5x, SHORT)")
	assert.Contains(t, prompt, "BTC: $65000")
	assert.Contains(t, prompt, `"coin": "ETH"`)
}

func TestLLMDecider_Decide(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Fatalf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]string{
					"role":    "assistant",
					"content": `[{"coin":"BTC","action":"buy","size":0.002,"leverage":3,"confidence":0.7,"reasoning":"x"}]`,
				},
			}},
		})
	}))
	defer srv.Close()

	d := NewLLMDecider(config.LLMConfig{
		BaseURL:     srv.URL + "/",
		APIKey:      "sk-test",
		Model:       "deepseek-chat",
		Temperature: 0.3,
		MaxTokens:   2000,
	}, testPairs, nil)

	intents := d.Decide(context.Background(), map[string]model.MarketSnapshot{"BTC": {Price: dec("1")}}, &model.Portfolio{})
	require.Len(t, intents, 1)
	assert.Equal(t, model.ActionBuy, intents["BTC"].Action)
	assert.Equal(t, "deepseek-chat", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.True(t, strings.Contains(got.Messages[1].Content, "BTC"))
}

func TestLLMDecider_FailuresYieldNoIntents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := NewLLMDecider(config.LLMConfig{BaseURL: srv.URL, APIKey: "k"}, testPairs, nil)
	assert.Empty(t, d.Decide(context.Background(), nil, nil))

	noKey := NewLLMDecider(config.LLMConfig{BaseURL: srv.URL}, testPairs, nil)
	assert.Empty(t, noKey.Decide(context.Background(), nil, nil))
}

func TestStaticDecider(t *testing.T) {
	d := StaticDecider{"BTC": {Action: model.ActionBuy, Size: dec("1")}}
	out := d.Decide(context.Background(), nil, nil)
	assert.Equal(t, "BTC", out["BTC"].Coin)
}
