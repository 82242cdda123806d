package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/outreach-hub/backend/internal/bootstrap"
	"github.com/outreach-hub/backend/internal/config"
	apphttp "github.com/outreach-hub/backend/internal/http"
	"github.com/outreach-hub/backend/internal/http/handlers"
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

	// Services
	campaignService := stack.CampaignService(cfg, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(cfg, log)
	metaHandler := handlers.NewMetaHandler(stack.Profiles)
	campaignHandler := handlers.NewCampaignHandler(campaignService, cfg, log)
	admissionHandler := handlers.NewAdmissionHandler(stack.Controller, log)
	wsHub := handlers.NewWSHub(cfg, stack.Subscriber, log)

	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to subscribe to campaign events", zap.Error(err))
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, stack.Redis, authHandler, metaHandler, campaignHandler, admissionHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server",
		zap.String("addr", addr),
		zap.String("store", cfg.StoreDriver),
		zap.String("admission", cfg.AdmissionDriver),
		zap.Bool("dry_run", cfg.DryRun),
	)
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
