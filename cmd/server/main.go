package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoPolymarket/hypergate/internal/app"
	"github.com/GoPolymarket/hypergate/internal/config"
	"github.com/GoPolymarket/hypergate/internal/handler"
	"github.com/GoPolymarket/hypergate/internal/manager"
	"github.com/GoPolymarket/hypergate/internal/market"
	"github.com/GoPolymarket/hypergate/internal/middleware"
	"github.com/GoPolymarket/hypergate/internal/pkg/logger"
	"github.com/GoPolymarket/hypergate/internal/repository"
	"github.com/GoPolymarket/hypergate/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.InitWithRotation(cfg.Log.Level, logger.Rotation{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	lg := logger.Get()

	a, err := app.New(cfg, lg)
	if err != nil {
		log.Fatalf("failed to build trading stack: %v", err)
	}

	auditSvc, err := service.NewAuditService("./logs", a.AuditRepo(), lg)
	if err != nil {
		log.Fatalf("failed to initialize audit service: %v", err)
	}

	idemTTL := time.Duration(cfg.Redis.IdempotencyTTLSeconds) * time.Second
	var idemStore manager.IdempotencyStore = manager.NewInMemIdempotencyStore(idemTTL)
	if a.Redis != nil {
		idemStore = repository.NewRedisIdempotencyStore(a.Redis, idemTTL)
	}

	accounts := service.NewAccountManager(cfg)

	// A nil *Stream must stay a nil interface.
	var stream market.Provider
	var streamStatus handler.StreamStatus
	if a.Stream != nil {
		stream = a.Stream
		streamStatus = a.Stream
	}

	orderHandler := handler.NewOrderHandler(a.Trader, a.Normalizer, a.Risk, cfg.Trading.CrossMargin)
	marketHandler := handler.NewMarketHandler(a.Normalizer, stream)
	accountHandler := handler.NewAccountHandler(a.Portfolio, a.Exchange, a.Wallet, a.Signer.Address().Hex(), cfg.Exchange.Mainnet)
	auditHandler := handler.NewAuditHandler(auditSvc)
	healthHandler := handler.NewHealthHandler(streamStatus, cfg.Trading.DryRun)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.AuditMiddleware(auditSvc))
	r.Use(middleware.ErrorHandler())

	r.GET("/health", healthHandler.Get)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.Auth.RequireAPIKey, accounts))
	v1.Use(middleware.RateLimitMiddleware(accounts))
	v1.Use(middleware.ReadOnlyMiddleware(cfg.Server.ReadOnly))
	v1.Use(middleware.IdempotencyMiddleware(idemStore))
	{
		v1.POST("/orders", orderHandler.PlaceOrder)
		v1.DELETE("/orders", orderHandler.CancelOrder)
		v1.POST("/leverage", orderHandler.SetLeverage)
		v1.GET("/assets/:coin", marketHandler.Asset)
		v1.GET("/fills", marketHandler.Fills)
		v1.GET("/account", accountHandler.Get)
		v1.GET("/account/orders", accountHandler.OpenOrders)
		v1.GET("/audit", auditHandler.List)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go a.RunRetention(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("hypergate started", "port", cfg.Server.Port, "read_only", cfg.Server.ReadOnly)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("server forced to shutdown", "error", err)
	}

	auditSvc.Close()
	a.Close()
	lg.Info("server exiting")
}
