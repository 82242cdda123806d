package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/outreach-hub/backend/internal/bootstrap"
	"github.com/outreach-hub/backend/internal/config"
	"github.com/outreach-hub/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := bootstrap.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stack, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open backing services", zap.Error(err))
	}
	defer stack.Close()

	if err := stack.Watcher.Start(ctx); err != nil {
		log.Warn("limits file will not be reloaded", zap.Error(err))
	}

	campaignService := stack.CampaignService(cfg, log)
	driver := services.NewDriverService(campaignService, stack.Controller, stack.Registry, stack.Locks, stack.Publisher, services.DriverOptions{
		Concurrency:          cfg.DriverConcurrency,
		Idle:                 cfg.DriverPoll,
		FailureRateThreshold: cfg.FailureRateThreshold,
		FailureMinSample:     cfg.FailureRateMinSample,
	}, log)

	health := fiber.New(fiber.Config{DisableStartupMessage: true})
	health.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "campaigns": driver.Scheduled()})
	})
	go func() {
		if err := health.Listen(fmt.Sprintf(":%s", cfg.WorkerPort)); err != nil {
			log.Warn("health endpoint stopped", zap.Error(err))
		}
	}()
	defer func() { _ = health.Shutdown() }()

	log.Info("worker started",
		zap.Duration("poll", cfg.DriverPoll),
		zap.Int("concurrency", cfg.DriverConcurrency),
		zap.Bool("dry_run", cfg.DryRun),
	)

	// Run jobs on tickers
	driveTicker := time.NewTicker(time.Second)
	watchdogTicker := time.NewTicker(time.Minute)
	defer driveTicker.Stop()
	defer watchdogTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-driveTicker.C:
			if err := driver.Tick(ctx); err != nil {
				log.Error("driver tick failed", zap.Error(err))
			}
		case <-watchdogTicker.C:
			runWatchdog(ctx, driver, cfg, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runWatchdog(ctx context.Context, driver *services.DriverService, cfg *config.Config, log *zap.Logger) {
	n, err := driver.Watchdog(ctx, cfg.StaleActionAfter)
	if err != nil {
		log.Error("stale action sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("stale actions force-failed", zap.Int("count", n))
	}
}
