package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// localUserID is the fiber.Ctx locals key carrying the authenticated
// caller's account id.
const localUserID = "user_id"

// RequireAuth verifies the access token from the cookie or the
// Authorization header and injects the caller's user id. Logout
// endpoints sit behind it.
func (h *AuthHandler) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(accessTokenCookie)
		if token == "" {
			token = strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "not authenticated",
			})
		}

		claims, err := h.tokenService.VerifyAccessToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "invalid or expired token",
			})
		}

		c.Locals(localUserID, claims.UserID())

		return c.Next()
	}
}

// RequestLogger logs every request with latency and outcome.
func RequestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.String("ip", c.IP()),
			zap.Duration("latency", time.Since(start)),
		}
		if err != nil {
			logger.Error("http request", append(fields, zap.Error(err))...)
		} else {
			logger.Info("http request", fields...)
		}

		return err
	}
}
