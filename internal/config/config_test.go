package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HYPERGATE_EXCHANGE_PRIVATE_KEY", "abc")
	t.Setenv("HYPERGATE_EXCHANGE_MAINNET", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "abc", cfg.Exchange.PrivateKey)
	assert.False(t, cfg.Exchange.Mainnet)
	assert.Equal(t, 10*time.Second, cfg.Exchange.InfoTimeout())
	assert.Equal(t, 30*time.Second, cfg.Exchange.ExchangeTimeout())
	assert.Equal(t, 2, cfg.Exchange.MaxRetries)
	assert.Equal(t, []string{"BTC", "ETH", "SOL", "BNB", "ADA"}, cfg.Trading.Pairs)
	assert.Equal(t, 300*time.Second, cfg.Trading.CycleInterval())
	assert.InDelta(t, 0.05, cfg.Trading.PriceBand, 1e-9)
	assert.InDelta(t, 0.95, cfg.Risk.MaxMarginUsage, 1e-9)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HYPERLIQUID_PRIVATE_KEY", "0xlegacy")
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0xlegacy", cfg.Exchange.PrivateKey)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "hyperliquid", cfg.Trading.MarketSource)
}

func TestLoad_PrefixedEnvBeatsLegacy(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HYPERGATE_EXCHANGE_PRIVATE_KEY", "new")
	t.Setenv("HYPERLIQUID_PRIVATE_KEY", "old")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "new", cfg.Exchange.PrivateKey)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HYPERLIQUID_WALLET_ADDRESS=0xfeed\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("HYPERLIQUID_WALLET_ADDRESS") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", cfg.Exchange.WalletAddress)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
