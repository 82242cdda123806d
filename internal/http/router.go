package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/outreach-hub/backend/internal/config"
	"github.com/outreach-hub/backend/internal/http/handlers"
	"github.com/outreach-hub/backend/internal/middleware"
	"github.com/outreach-hub/backend/internal/rbac"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	metaHandler *handlers.MetaHandler,
	campaignHandler *handlers.CampaignHandler,
	admissionHandler *handlers.AdmissionHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))
	protected.Use(middleware.RateLimitMiddleware(rdb, 300, time.Minute))

	// Meta
	protected.Get("/meta/platforms", metaHandler.GetPlatforms)
	protected.Get("/meta/conditions", metaHandler.GetConditions)

	// Auth
	protected.Post("/auth/token", middleware.RequirePermission(cfg, rbac.PermIssueToken), authHandler.IssueToken)

	// Campaigns
	protected.Post("/campaigns", middleware.RequirePermission(cfg, rbac.PermCreateCampaign), campaignHandler.CreateCampaign)
	protected.Get("/campaigns", middleware.RequirePermission(cfg, rbac.PermViewCampaign), campaignHandler.ListCampaigns)
	protected.Post("/campaigns/import", middleware.RequirePermission(cfg, rbac.PermCreateCampaign), campaignHandler.ImportCampaign)
	protected.Get("/campaigns/:id", middleware.RequirePermission(cfg, rbac.PermViewCampaign), campaignHandler.GetCampaign)
	protected.Get("/campaigns/:id/summary", middleware.RequirePermission(cfg, rbac.PermViewCampaign), campaignHandler.GetCampaignSummary)
	protected.Post("/campaigns/:id/approve", campaignHandler.ApproveCampaign)
	protected.Post("/campaigns/:id/fail", middleware.RequirePermission(cfg, rbac.PermManageAny), campaignHandler.FailCampaign)

	runPerm := middleware.RequirePermission(cfg, rbac.PermRunCampaign)
	protected.Post("/campaigns/:id/submit", runPerm, campaignHandler.SubmitCampaign())
	protected.Post("/campaigns/:id/start", runPerm, campaignHandler.StartCampaign())
	protected.Post("/campaigns/:id/pause", runPerm, campaignHandler.PauseCampaign())
	protected.Post("/campaigns/:id/resume", runPerm, campaignHandler.ResumeCampaign())
	protected.Post("/campaigns/:id/cancel", runPerm, campaignHandler.CancelCampaign())
	protected.Post("/campaigns/:id/next-action", runPerm, campaignHandler.NextAction)
	protected.Post("/campaigns/:id/actions/:actionId/start", runPerm, campaignHandler.StartAction)
	protected.Post("/campaigns/:id/actions/:actionId/result", runPerm, campaignHandler.RecordActionResult)
	protected.Post("/campaigns/:id/actions/:actionId/requeue", runPerm, campaignHandler.RequeueAction)

	// Admission
	protected.Get("/admission/stats", middleware.RequirePermission(cfg, rbac.PermUseAdmission), admissionHandler.Stats)
	protected.Delete("/admission/stats/:userId", middleware.RequirePermission(cfg, rbac.PermManageAny), admissionHandler.ResetStats)
	adm := protected.Group("/admission/:platform", middleware.RequirePermission(cfg, rbac.PermUseAdmission))
	adm.Get("/check", admissionHandler.Check)
	adm.Post("/record", admissionHandler.Record)
	adm.Get("/remaining", admissionHandler.Remaining)
	adm.Get("/delay", admissionHandler.Delay)
	adm.Get("/history", admissionHandler.History)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
