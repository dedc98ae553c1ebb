package handler

import (
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(app *fiber.App, h *AuthHandler) {
	v1 := app.Group("/api/v1")

	v1.Post("/register", h.Register)
	v1.Post("/login", h.Login)
	v1.Post("/refresh-token", h.Refresh)

	// Logout endpoints need the caller's id from a verified access token.
	v1.Post("/logout", h.RequireAuth(), h.Logout)
	v1.Post("/logout-all", h.RequireAuth(), h.LogoutAll)
}
