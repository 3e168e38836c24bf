package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/GoPolymarket/hypergate/internal/app"
	"github.com/GoPolymarket/hypergate/internal/config"
	"github.com/GoPolymarket/hypergate/internal/pkg/logger"
	"github.com/GoPolymarket/hypergate/internal/service"
)

func main() {
	singleCycle := flag.Bool("single-cycle", false, "run one trading cycle and exit")
	flag.Parse()

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
	defer a.Close()

	snapshots, err := a.Snapshots()
	if err != nil {
		log.Fatalf("market source: %v", err)
	}
	if cfg.LLM.APIKey == "" {
		lg.Warn("no llm api key configured, every cycle will hold")
	}

	bot := service.NewBot(
		a.Portfolio,
		snapshots,
		service.NewLLMDecider(cfg.LLM, cfg.Trading.Pairs, lg),
		a.Risk,
		a.Trader,
		service.BotConfig{
			Pairs:     cfg.Trading.Pairs,
			Interval:  cfg.Trading.CycleInterval(),
			AccountID: a.Trader.AccountID(),
		},
		lg,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *singleCycle {
		summary, err := bot.RunCycle(ctx)
		if err != nil {
			lg.Error("cycle failed", "error", err)
			return
		}
		lg.Info("single cycle done", "executed", summary.Executed, "held", summary.Held,
			"rejected", summary.Rejected, "failed", summary.Failed)
		return
	}

	lg.Info("market source", "source", cfg.Trading.MarketSource)
	bot.Start(ctx)
}
