package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/outreach-hub/backend/internal/admission"
	"github.com/outreach-hub/backend/internal/http/dto"
	"github.com/outreach-hub/backend/internal/middleware"
	"go.uber.org/zap"
)

// AdmissionHandler exposes the admission surface to drivers running outside this process.
// Every call acts on the caller's own user+platform record.
type AdmissionHandler struct {
	controller *admission.Controller
	log        *zap.Logger
}

func NewAdmissionHandler(controller *admission.Controller, log *zap.Logger) *AdmissionHandler {
	return &AdmissionHandler{controller: controller, log: log}
}

func (h *AdmissionHandler) Check(c *fiber.Ctx) error {
	kind := c.Query("kind")
	if kind == "" {
		return badRequest(c, "kind is required")
	}

	decision, err := h.controller.CanProceed(c.UserContext(), middleware.GetUserID(c), c.Params("platform"), kind)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: decision})
}

func (h *AdmissionHandler) Record(c *fiber.Ctx) error {
	var req dto.RecordAdmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.Kind == "" {
		return badRequest(c, "kind is required")
	}

	err := h.controller.RecordAction(c.UserContext(), middleware.GetUserID(c), c.Params("platform"), req.Kind, req.Target, req.Success, req.Details)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *AdmissionHandler) Remaining(c *fiber.Ctx) error {
	remaining, err := h.controller.RemainingLimits(c.UserContext(), middleware.GetUserID(c), c.Params("platform"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: remaining})
}

func (h *AdmissionHandler) Delay(c *fiber.Ctx) error {
	platform := c.Params("platform")
	kind := c.Query("kind")
	if kind == "" {
		return badRequest(c, "kind is required")
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.DelayResponse{
		Platform:     platform,
		Kind:         kind,
		DelaySeconds: h.controller.CalculateDelay(platform, kind),
	}})
}

func (h *AdmissionHandler) History(c *fiber.Ctx) error {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	entries, err := h.controller.History(c.UserContext(), middleware.GetUserID(c), c.Params("platform"), limit)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entries})
}

// Stats returns the caller's counters on every platform they have acted on.
func (h *AdmissionHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.controller.UserStats(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: stats})
}

// ResetStats clears another user's counters, on one platform when ?platform= is given.
func (h *AdmissionHandler) ResetStats(c *fiber.Ctx) error {
	userID := c.Params("userId")
	platform := c.Query("platform")
	if err := h.controller.ResetUserStats(c.UserContext(), userID, platform); err != nil {
		return writeError(c, h.log, err)
	}
	h.log.Info("admission stats reset by admin",
		zap.String("admin_id", middleware.GetUserID(c)),
		zap.String("user_id", userID),
		zap.String("platform", platform),
	)
	return c.JSON(dto.SuccessResponse{OK: true})
}
