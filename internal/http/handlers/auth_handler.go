package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/outreach-hub/backend/internal/auth"
	"github.com/outreach-hub/backend/internal/config"
	"github.com/outreach-hub/backend/internal/http/dto"
	"github.com/outreach-hub/backend/internal/rbac"
	"go.uber.org/zap"
)

// AuthHandler mints tokens for other users. Credentials live outside this service; an admin
// issues tokens for identities it already trusts.
type AuthHandler struct {
	cfg *config.Config
	log *zap.Logger
}

func NewAuthHandler(cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, log: log}
}

func (h *AuthHandler) IssueToken(c *fiber.Ctx) error {
	var req dto.IssueTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "user_id is required")
	}
	if req.Role == "" {
		req.Role = rbac.RoleOperator
	}
	if !rbac.IsKnownRole(req.Role) {
		return badRequest(c, "unknown role")
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, req.UserID, req.Role, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to generate jwt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	h.log.Info("token issued", zap.String("user_id", req.UserID), zap.String("role", req.Role))
	return c.JSON(dto.TokenResponse{Token: token})
}
