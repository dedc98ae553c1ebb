package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/devAO-bit/my-auth/internal/auth/dto"
	"github.com/devAO-bit/my-auth/internal/auth/service"
	autherror "github.com/devAO-bit/my-auth/internal/errors"
)

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
)

type AuthHandler struct {
	userService  *service.UserService
	tokenService service.TokenGenerator
	logger       *zap.Logger

	// SecureCookies should be set in production so tokens only travel
	// over TLS.
	SecureCookies bool
}

func NewAuthHandler(userService *service.UserService, tokenService service.TokenGenerator, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthHandler{
		userService:  userService,
		tokenService: tokenService,
		logger:       logger,
	}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var input dto.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return badRequest(c, "invalid input")
	}

	if input.Name == "" || input.Email == "" || !strings.Contains(input.Email, "@") {
		return badRequest(c, "name and a valid email are required")
	}
	if len(input.Password) < 8 {
		return badRequest(c, "password must be at least 8 characters")
	}

	input.IPAddress = c.IP()
	input.UserAgent = string(c.Request().Header.UserAgent())

	out, err := h.userService.Register(c.Context(), input)
	if err != nil {
		return h.fail(c, err)
	}

	h.setTokenCookies(c, out.AccessToken, out.RefreshToken)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "success",
		"data":   out,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input dto.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return badRequest(c, "invalid input")
	}

	if input.Email == "" || input.Password == "" {
		return badRequest(c, "email and password are required")
	}

	input.IPAddress = c.IP()
	input.UserAgent = string(c.Request().Header.UserAgent())

	out, err := h.userService.Login(c.Context(), input)
	if err != nil {
		return h.fail(c, err)
	}

	h.setTokenCookies(c, out.AccessToken, out.RefreshToken)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "success",
		"data":   out,
	})
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var input dto.RefreshInput
	// The token may arrive as a cookie or in the body; an unparsable
	// body with a cookie present is still a valid request.
	_ = c.BodyParser(&input)

	if cookie := c.Cookies(refreshTokenCookie); cookie != "" {
		input.RefreshToken = cookie
	}

	input.IPAddress = c.IP()
	input.UserAgent = string(c.Request().Header.UserAgent())

	tokens, err := h.userService.Refresh(c.Context(), input)
	if err != nil {
		return h.fail(c, err)
	}

	h.setTokenCookies(c, tokens.AccessToken, tokens.RefreshToken)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "success",
		"data":   tokens,
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	userID, _ := c.Locals(localUserID).(string)

	var input dto.LogoutInput
	_ = c.BodyParser(&input)
	if cookie := c.Cookies(refreshTokenCookie); cookie != "" {
		input.RefreshToken = cookie
	}

	if err := h.userService.Logout(c.Context(), userID, input.RefreshToken); err != nil {
		return h.fail(c, err)
	}

	h.clearTokenCookies(c)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "logged out",
	})
}

func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	userID, _ := c.Locals(localUserID).(string)

	if err := h.userService.LogoutAll(c.Context(), userID); err != nil {
		return h.fail(c, err)
	}

	h.clearTokenCookies(c)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "logged out from all devices",
	})
}

func (h *AuthHandler) setTokenCookies(c *fiber.Ctx, accessToken, refreshToken string) {
	c.Cookie(&fiber.Cookie{
		Name:     accessTokenCookie,
		Value:    accessToken,
		Expires:  time.Now().Add(h.tokenService.AccessTokenTTL()),
		HTTPOnly: true,
		Secure:   h.SecureCookies,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	c.Cookie(&fiber.Cookie{
		Name:     refreshTokenCookie,
		Value:    refreshToken,
		Expires:  time.Now().Add(h.tokenService.RefreshTokenTTL()),
		HTTPOnly: true,
		Secure:   h.SecureCookies,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (h *AuthHandler) clearTokenCookies(c *fiber.Ctx) {
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Expires:  time.Now().Add(-time.Hour),
			HTTPOnly: true,
			Secure:   h.SecureCookies,
			SameSite: fiber.CookieSameSiteStrictMode,
		})
	}
}

// fail maps a service error to its HTTP status and safe message.
// Internal failures are logged in full and surfaced generically.
func (h *AuthHandler) fail(c *fiber.Ctx, err error) error {
	status := autherror.StatusCode(err)
	if status == fiber.StatusInternalServerError {
		h.logger.Error("internal error",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}

	return c.Status(status).JSON(fiber.Map{
		"status":  "error",
		"message": autherror.Message(err),
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"status":  "error",
		"message": message,
	})
}
