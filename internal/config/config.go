package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Auth     AuthConfig      `mapstructure:"auth"`
	Exchange ExchangeConfig  `mapstructure:"exchange"`
	Trading  TradingConfig   `mapstructure:"trading"`
	Risk     RiskConfig      `mapstructure:"risk"`
	LLM      LLMConfig       `mapstructure:"llm"`
	Database DatabaseConfig  `mapstructure:"database"`
	Redis    RedisConfig     `mapstructure:"redis"`
	Log      LogConfig       `mapstructure:"log"`
	Accounts []AccountConfig `mapstructure:"accounts"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	ReadOnly bool   `mapstructure:"read_only"`
}

type AuthConfig struct {
	RequireAPIKey bool   `mapstructure:"require_api_key"`
	APIKey        string `mapstructure:"api_key"`
}

type ExchangeConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	WSURL         string `mapstructure:"ws_url"`
	Mainnet       bool   `mapstructure:"mainnet"`
	PrivateKey    string `mapstructure:"private_key"`
	WalletAddress string `mapstructure:"wallet_address"`
	VaultAddress  string `mapstructure:"vault_address"`

	InfoTimeoutSeconds     int     `mapstructure:"info_timeout_seconds"`
	ExchangeTimeoutSeconds int     `mapstructure:"exchange_timeout_seconds"`
	MaxRetries             int     `mapstructure:"max_retries"`
	RetryBackoffMs         int     `mapstructure:"retry_backoff_ms"`
	RequestsPerSecond      float64 `mapstructure:"requests_per_second"`
	MetaCacheSeconds       int     `mapstructure:"meta_cache_seconds"`
	ExpiresAfterSeconds    int     `mapstructure:"expires_after_seconds"` // 0 disables
	StreamMids             bool    `mapstructure:"stream_mids"`
}

func (c ExchangeConfig) InfoTimeout() time.Duration {
	return time.Duration(c.InfoTimeoutSeconds) * time.Second
}

func (c ExchangeConfig) ExchangeTimeout() time.Duration {
	return time.Duration(c.ExchangeTimeoutSeconds) * time.Second
}

func (c ExchangeConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMs) * time.Millisecond
}

func (c ExchangeConfig) MetaCacheTTL() time.Duration {
	return time.Duration(c.MetaCacheSeconds) * time.Second
}

type TradingConfig struct {
	Pairs                []string `mapstructure:"pairs"`
	CycleIntervalSeconds int      `mapstructure:"cycle_interval_seconds"`
	DryRun               bool     `mapstructure:"dry_run"`
	PriceBand            float64  `mapstructure:"price_band"` // e.g. 0.05 (5%)
	PriceBias            float64  `mapstructure:"price_bias"` // fraction of the band applied toward the reference
	DefaultLeverage      int      `mapstructure:"default_leverage"`
	CrossMargin          bool     `mapstructure:"cross_margin"`
	InflightTTLSeconds   int      `mapstructure:"inflight_ttl_seconds"`
	MarketSource         string   `mapstructure:"market_source"` // "hyperliquid" or "binance"
}

func (c TradingConfig) CycleInterval() time.Duration {
	return time.Duration(c.CycleIntervalSeconds) * time.Second
}

type RiskConfig struct {
	MaxMarginUsage float64  `mapstructure:"max_margin_usage"` // e.g. 0.95
	MinBalance     float64  `mapstructure:"min_balance"`      // USD
	MinConfidence  float64  `mapstructure:"min_confidence"`
	MaxOrderValue  float64  `mapstructure:"max_order_value"` // 0 disables
	MaxDailyValue  float64  `mapstructure:"max_daily_value"`
	MaxDailyOrders int      `mapstructure:"max_daily_orders"`
	BlockedCoins   []string `mapstructure:"blocked_coins"`
}

type LLMConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

type DatabaseConfig struct {
	DSN                    string `mapstructure:"dsn"`
	AuditRetentionDays     int    `mapstructure:"audit_retention_days"`
	RiskRetentionDays      int    `mapstructure:"risk_retention_days"`
	CleanupIntervalMinutes int    `mapstructure:"cleanup_interval_minutes"`
}

type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // empty logs to stdout only
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// AccountConfig maps a control-API key to an operator with its own rate limit.
type AccountConfig struct {
	ID        string  `mapstructure:"id"`
	Name      string  `mapstructure:"name"`
	APIKey    string  `mapstructure:"api_key"`
	RateLimit float64 `mapstructure:"rate_limit"`
	ReadOnly  bool    `mapstructure:"read_only"`
}

// legacyEnv maps the bare variable names older deployments export in .env.
var legacyEnv = map[string]string{
	"exchange.private_key":    "HYPERLIQUID_PRIVATE_KEY",
	"exchange.wallet_address": "HYPERLIQUID_WALLET_ADDRESS",
	"llm.api_key":             "DEEPSEEK_API_KEY",
}

func Load() (*Config, error) {
	// A missing .env is fine; real environment variables still win.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// e.g. HYPERGATE_EXCHANGE_PRIVATE_KEY
	v.SetEnvPrefix("hypergate")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, "HYPERGATE_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("auth.require_api_key", false)
	// AutomaticEnv only sees keys viper already knows about.
	v.SetDefault("auth.api_key", "")

	v.SetDefault("exchange.base_url", "https://api.hyperliquid.xyz")
	v.SetDefault("exchange.ws_url", "wss://api.hyperliquid.xyz/ws")
	v.SetDefault("exchange.mainnet", true)
	v.SetDefault("exchange.private_key", "")
	v.SetDefault("exchange.wallet_address", "")
	v.SetDefault("exchange.vault_address", "")
	v.SetDefault("exchange.info_timeout_seconds", 10)
	v.SetDefault("exchange.exchange_timeout_seconds", 30)
	v.SetDefault("exchange.max_retries", 2)
	v.SetDefault("exchange.retry_backoff_ms", 500)
	v.SetDefault("exchange.requests_per_second", 5)
	v.SetDefault("exchange.meta_cache_seconds", 0)
	v.SetDefault("exchange.expires_after_seconds", 0)
	v.SetDefault("exchange.stream_mids", false)

	v.SetDefault("trading.pairs", []string{"BTC", "ETH", "SOL", "BNB", "ADA"})
	v.SetDefault("trading.cycle_interval_seconds", 300)
	v.SetDefault("trading.dry_run", false)
	v.SetDefault("trading.price_band", 0.05)
	v.SetDefault("trading.price_bias", 0.5)
	v.SetDefault("trading.default_leverage", 10)
	v.SetDefault("trading.cross_margin", true)
	v.SetDefault("trading.inflight_ttl_seconds", 600)
	v.SetDefault("trading.market_source", "hyperliquid")

	v.SetDefault("risk.max_margin_usage", 0.95)
	v.SetDefault("risk.min_balance", 0.01)
	v.SetDefault("risk.min_confidence", 0.1)
	v.SetDefault("risk.max_order_value", 0)
	v.SetDefault("risk.max_daily_value", 0)
	v.SetDefault("risk.max_daily_orders", 0)

	v.SetDefault("llm.base_url", "https://api.deepseek.com")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "deepseek-chat")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.timeout_seconds", 30)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.audit_retention_days", 30)
	v.SetDefault("database.risk_retention_days", 30)
	v.SetDefault("database.cleanup_interval_minutes", 60)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.idempotency_ttl_seconds", 86400)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)
}
