package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/outreach-hub/backend/internal/auth"
	"github.com/outreach-hub/backend/internal/config"
	"github.com/outreach-hub/backend/internal/rbac"
	"go.uber.org/zap"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		role := claims.Role
		switch {
		case cfg.IsAdmin(claims.UserID):
			role = rbac.RoleAdmin
		case !rbac.IsKnownRole(role):
			role = rbac.RoleOperator
		}

		c.Locals(CtxUserID, claims.UserID)
		c.Locals(CtxRole, role)

		return c.Next()
	}
}

func GetUserID(c *fiber.Ctx) string {
	id, _ := c.Locals(CtxUserID).(string)
	return id
}

func GetRole(c *fiber.Ctx) string {
	role, _ := c.Locals(CtxRole).(string)
	return role
}

// Can reports whether the caller's role grants permission. Users listed in
// APPROVER_USER_IDS may approve regardless of their token role.
func Can(c *fiber.Ctx, cfg *config.Config, permission string) bool {
	if rbac.HasPermission(GetRole(c), permission) {
		return true
	}
	return permission == rbac.PermApproveCampaign && cfg.IsApprover(GetUserID(c))
}

// RequirePermission rejects callers without permission.
func RequirePermission(cfg *config.Config, permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !Can(c, cfg, permission) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "permission denied"})
		}
		return c.Next()
	}
}
