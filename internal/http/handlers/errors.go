package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/outreach-hub/backend/internal/http/dto"
	"github.com/outreach-hub/backend/internal/middleware"
	"github.com/outreach-hub/backend/internal/services"
	"go.uber.org/zap"
)

// writeError maps service errors onto HTTP statuses. Invariant violations are reported with
// their own kind so a client can tell a broken campaign from a paced one.
func writeError(c *fiber.Ctx, log *zap.Logger, err error) error {
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)
	resp := dto.ErrorResponse{Error: err.Error(), RequestID: reqID}

	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrCampaignNotFound), errors.Is(err, services.ErrActionNotFound):
		status = fiber.StatusNotFound
		resp.Kind = "invariant_violation"
	case services.IsInvariantViolation(err):
		status = fiber.StatusConflict
		resp.Kind = "invariant_violation"
	case errors.Is(err, services.ErrValidation):
		status = fiber.StatusBadRequest
		resp.Kind = "validation"
	case errors.Is(err, services.ErrStorage):
		status = fiber.StatusServiceUnavailable
		resp.Kind = "storage"
	}

	if status >= fiber.StatusInternalServerError {
		log.Error("request failed", zap.String("request_id", reqID), zap.Error(err))
		if status == fiber.StatusInternalServerError {
			resp.Error = "internal error"
		}
	}
	return c.Status(status).JSON(resp)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg})
}

func forbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "permission denied"})
}
