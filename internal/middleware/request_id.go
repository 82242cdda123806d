package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/outreach-hub/backend/internal/requestid"
)

const CtxRequestID = "request_id"

// RequestIDMiddleware reuses the caller's X-Request-ID or mints one, and exposes it both as a
// fiber local and on the user context handed to services.
func RequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get("X-Request-ID")
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.New().String()
		}
		c.Locals(CtxRequestID, reqID)
		c.SetUserContext(requestid.NewContext(c.UserContext(), reqID))
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}
