// Package app assembles the trading stack shared by the gateway server and the bot.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/GoPolymarket/hypergate/internal/config"
	"github.com/GoPolymarket/hypergate/internal/exchange"
	"github.com/GoPolymarket/hypergate/internal/manager"
	"github.com/GoPolymarket/hypergate/internal/market"
	"github.com/GoPolymarket/hypergate/internal/pkg/logger"
	"github.com/GoPolymarket/hypergate/internal/repository"
	"github.com/GoPolymarket/hypergate/internal/service"
	"github.com/GoPolymarket/hypergate/internal/signer"
)

// Mids older than this are not trusted for normalization.
const streamMidMaxAge = 30 * time.Second

type cleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

type App struct {
	Config     *config.Config
	Log        *slog.Logger
	Exchange   *exchange.Client
	Signer     *signer.Signer
	Normalizer *service.Normalizer
	Risk       *service.RiskEngine
	Trader     *service.Trader
	Portfolio  *service.PortfolioService
	Stream     *market.Stream // nil unless exchange.stream_mids
	Redis      *redis.Client
	DB         *gorm.DB
	Wallet     string

	auditCleaner cleaner
	riskCleaner  cleaner
}

// New connects optional backends and builds the signing pipeline. Redis and
// Postgres failures degrade to in-memory stores rather than aborting.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	log = logger.OrDefault(log)
	a := &App{Config: cfg, Log: log}

	s, err := signer.NewSigner(cfg.Exchange.PrivateKey)
	if err != nil {
		return nil, err
	}
	a.Signer = s
	a.Wallet = cfg.Exchange.WalletAddress
	if a.Wallet == "" {
		a.Wallet = s.Address().Hex()
	}

	var vault *common.Address
	if raw := strings.TrimSpace(cfg.Exchange.VaultAddress); raw != "" {
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("invalid vault address %q", raw)
		}
		addr := common.HexToAddress(raw)
		vault = &addr
	}

	a.connectStores()

	a.Exchange = exchange.NewClient(cfg.Exchange, exchange.WithLogger(log))

	var meta service.MetadataSource = a.Exchange
	if cfg.Exchange.StreamMids {
		a.Stream = market.NewStream(cfg.Exchange.WSURL, log)
		a.Stream.SubscribeMids()
		a.Stream.SubscribeUserFills(a.Wallet)
		for _, coin := range cfg.Trading.Pairs {
			a.Stream.SubscribeBook(coin)
		}
		a.Stream.Start()
		meta = market.NewLiveMetadata(a.Exchange, a.Stream, streamMidMaxAge)
	}

	a.Normalizer = service.NewNormalizer(meta, service.NormalizerConfig{
		Band:     decimal.NewFromFloat(cfg.Trading.PriceBand),
		Bias:     decimal.NewFromFloat(cfg.Trading.PriceBias),
		CacheTTL: cfg.Exchange.MetaCacheTTL(),
	}, log)

	gw := service.NewGateway(a.Exchange, service.GatewayConfig{
		MaxRetries: cfg.Exchange.MaxRetries,
		Backoff:    cfg.Exchange.RetryBackoff(),
	}, log)

	a.Risk = service.NewRiskEngine(a.usageRepo(), cfg.Risk)

	inflightTTL := time.Duration(cfg.Trading.InflightTTLSeconds) * time.Second
	var inflight manager.IdempotencyStore = manager.NewInMemIdempotencyStore(inflightTTL)
	if a.Redis != nil {
		inflight = repository.NewRedisIdempotencyStore(a.Redis, inflightTTL)
	}

	nonces := manager.NewNonceManager()
	if a.Redis != nil {
		nonces.WithFloor(repository.NewRedisNonceFloor(a.Redis, a.Wallet))
	}

	a.Trader = service.NewTrader(s, a.Normalizer, gw, nonces, inflight, a.Risk, service.TraderConfig{
		Mainnet:         cfg.Exchange.Mainnet,
		Vault:           vault,
		ExpiresAfter:    time.Duration(cfg.Exchange.ExpiresAfterSeconds) * time.Second,
		DryRun:          cfg.Trading.DryRun,
		CrossMargin:     cfg.Trading.CrossMargin,
		DefaultLeverage: cfg.Trading.DefaultLeverage,
		AccountID:       strings.ToLower(a.Wallet),
	}, log)

	a.Portfolio = service.NewPortfolioService(a.Exchange, a.Wallet, log)

	log.Info("trading stack ready",
		"signer", s.Address().Hex(),
		"wallet", a.Wallet,
		"mainnet", cfg.Exchange.Mainnet,
		"dry_run", cfg.Trading.DryRun,
		"stream", a.Stream != nil)
	return a, nil
}

func (a *App) connectStores() {
	if a.Config.Redis.Addr != "" {
		client, err := repository.NewRedisClient(a.Config.Redis)
		if err != nil {
			a.Log.Error("redis unavailable, using in-memory stores", "error", err)
		} else {
			a.Log.Info("connected to redis", "addr", a.Config.Redis.Addr)
			a.Redis = client
		}
	}
	if a.Config.Database.DSN != "" {
		db, err := repository.NewDB(a.Config.Database)
		if err != nil {
			a.Log.Error("postgres unavailable, audit and usage stay off-database", "error", err)
		} else {
			a.Log.Info("connected to postgres")
			a.DB = db
		}
	}
}

// usageRepo prefers Redis, then Postgres, then process memory.
func (a *App) usageRepo() service.UsageRepo {
	switch {
	case a.Redis != nil:
		return repository.NewRedisUsageRepo(a.Redis)
	case a.DB != nil:
		repo := repository.NewPostgresRiskRepo(a.DB)
		a.riskCleaner = repo
		return repo
	default:
		return service.NewRiskUsageStore()
	}
}

// AuditRepo prefers Postgres, then a capped Redis list. Nil means the
// audit service keeps only its buffer and JSONL file.
func (a *App) AuditRepo() service.AuditRepo {
	switch {
	case a.DB != nil:
		repo := repository.NewPostgresAuditRepo(a.DB)
		a.auditCleaner = repo
		return repo
	case a.Redis != nil:
		return repository.NewRedisAuditRepo(a.Redis, "hypergate:audit", 10000)
	default:
		return nil
	}
}

// Snapshots returns the market-data source named by trading.market_source.
func (a *App) Snapshots() (service.SnapshotSource, error) {
	switch strings.ToLower(a.Config.Trading.MarketSource) {
	case "", "hyperliquid":
		return market.NewSnapshotService(a.Exchange), nil
	case "binance":
		return market.NewBinanceSnapshots(nil), nil
	default:
		return nil, fmt.Errorf("unknown market source %q", a.Config.Trading.MarketSource)
	}
}

// RunRetention deletes expired audit and usage rows until ctx is done.
func (a *App) RunRetention(ctx context.Context) {
	if a.auditCleaner == nil && a.riskCleaner == nil {
		return
	}
	interval := time.Duration(a.Config.Database.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		a.cleanup(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *App) cleanup(ctx context.Context) {
	days := func(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }
	if a.auditCleaner != nil && a.Config.Database.AuditRetentionDays > 0 {
		if err := a.auditCleaner.Cleanup(ctx, days(a.Config.Database.AuditRetentionDays)); err != nil {
			a.Log.Warn("audit cleanup failed", "error", err)
		}
	}
	if a.riskCleaner != nil && a.Config.Database.RiskRetentionDays > 0 {
		if err := a.riskCleaner.Cleanup(ctx, days(a.Config.Database.RiskRetentionDays)); err != nil {
			a.Log.Warn("usage cleanup failed", "error", err)
		}
	}
}

func (a *App) Close() {
	if a.Stream != nil {
		a.Stream.Stop()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
