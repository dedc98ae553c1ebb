package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/devAO-bit/my-auth/config"
	"github.com/devAO-bit/my-auth/internal/auth/domain"
	"github.com/devAO-bit/my-auth/internal/auth/handler"
	"github.com/devAO-bit/my-auth/internal/auth/service"
	"github.com/devAO-bit/my-auth/internal/mocks"
)

type testEnv struct {
	app       *fiber.App
	repo      *mocks.MockUserRepository
	tokenizer *mocks.MockTokenGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	repo := mocks.NewMockUserRepository(ctrl)
	tokenizer := mocks.NewMockTokenGenerator(ctrl)
	tokenizer.EXPECT().AccessTokenTTL().Return(15 * time.Minute).AnyTimes()
	tokenizer.EXPECT().RefreshTokenTTL().Return(168 * time.Hour).AnyTimes()

	cfg := &config.Config{
		BcryptCost:        bcrypt.MinCost,
		LoginMaxAttempts:  5,
		LockoutDuration:   time.Hour,
		MaxActiveSessions: 5,
		LoginHistoryLimit: 20,
	}

	userService := service.NewUserService(repo, tokenizer, cfg, nil)
	h := handler.NewAuthHandler(userService, tokenizer, nil)

	app := fiber.New()
	handler.RegisterRoutes(app, h)

	return &testEnv{app: app, repo: repo, tokenizer: tokenizer}
}

func postJSON(t *testing.T, app *fiber.App, path string, body any, opts ...func(*http.Request)) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func cookieValue(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func claimsFor(userID string) *service.JWTCustomClaims {
	return &service.JWTCustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}
}

func hashedUser(t *testing.T, id, email, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{
		ID:           id,
		Name:         "Alice",
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		Status:       domain.StatusActive,
	}
}

func TestRegister(t *testing.T) {
	t.Run("creates account and sets token cookies", func(t *testing.T) {
		env := newTestEnv(t)

		env.repo.EXPECT().GetByEmail(gomock.Any(), "alice@example.com").Return(nil, nil)
		env.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		env.tokenizer.EXPECT().GeneratePair(gomock.Any()).Return("access-jwt", "refresh-jwt", nil)
		env.repo.EXPECT().StoreSession(gomock.Any(), gomock.Any(), 5).Return(nil)

		resp := postJSON(t, env.app, "/api/v1/register", fiber.Map{
			"name":     "Alice",
			"email":    "Alice@Example.com",
			"password": "correct horse",
		})

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "access-jwt", cookieValue(resp, "access_token"))
		assert.Equal(t, "refresh-jwt", cookieValue(resp, "refresh_token"))

		body := decodeBody(t, resp)
		assert.Equal(t, "success", body["status"])
		data := body["data"].(map[string]any)
		user := data["user"].(map[string]any)
		assert.Equal(t, "alice@example.com", user["email"])
		// The sanitized payload never includes credentials.
		_, leaked := user["password_hash"]
		assert.False(t, leaked)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		env := newTestEnv(t)

		env.repo.EXPECT().GetByEmail(gomock.Any(), "taken@example.com").
			Return(&domain.User{ID: "other", Email: "taken@example.com"}, nil)

		resp := postJSON(t, env.app, "/api/v1/register", fiber.Map{
			"name":     "Alice",
			"email":    "taken@example.com",
			"password": "correct horse",
		})

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "error", body["status"])
		assert.Equal(t, "email already registered", body["message"])
	})

	t.Run("short password rejected before any work", func(t *testing.T) {
		env := newTestEnv(t)

		resp := postJSON(t, env.app, "/api/v1/register", fiber.Map{
			"name":     "Alice",
			"email":    "alice@example.com",
			"password": "short",
		})

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing email rejected", func(t *testing.T) {
		env := newTestEnv(t)

		resp := postJSON(t, env.app, "/api/v1/register", fiber.Map{
			"name":     "Alice",
			"password": "correct horse",
		})

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLogin(t *testing.T) {
	t.Run("valid credentials", func(t *testing.T) {
		env := newTestEnv(t)
		user := hashedUser(t, "user-1", "alice@example.com", "correct horse")

		env.repo.EXPECT().GetByEmailWithSecrets(gomock.Any(), "alice@example.com").Return(user, nil)
		env.repo.EXPECT().RecordSuccessfulLogin(gomock.Any(), "user-1", gomock.Any(), 20).Return(nil)
		env.tokenizer.EXPECT().GeneratePair("user-1").Return("access-jwt", "refresh-jwt", nil)
		env.repo.EXPECT().StoreSession(gomock.Any(), gomock.Any(), 5).Return(nil)

		resp := postJSON(t, env.app, "/api/v1/login", fiber.Map{
			"email":    "alice@example.com",
			"password": "correct horse",
		})

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "access-jwt", cookieValue(resp, "access_token"))
		assert.Equal(t, "refresh-jwt", cookieValue(resp, "refresh_token"))
	})

	t.Run("wrong password", func(t *testing.T) {
		env := newTestEnv(t)
		user := hashedUser(t, "user-1", "alice@example.com", "correct horse")

		env.repo.EXPECT().GetByEmailWithSecrets(gomock.Any(), "alice@example.com").Return(user, nil)
		env.repo.EXPECT().RecordFailedLogin(gomock.Any(), "user-1", 5, gomock.Any()).Return(nil)

		resp := postJSON(t, env.app, "/api/v1/login", fiber.Map{
			"email":    "alice@example.com",
			"password": "wrong",
		})

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "invalid email or password", body["message"])
	})

	t.Run("unknown email reads the same as wrong password", func(t *testing.T) {
		env := newTestEnv(t)

		env.repo.EXPECT().GetByEmailWithSecrets(gomock.Any(), "ghost@example.com").Return(nil, nil)

		resp := postJSON(t, env.app, "/api/v1/login", fiber.Map{
			"email":    "ghost@example.com",
			"password": "whatever",
		})

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "invalid email or password", body["message"])
	})

	t.Run("locked account", func(t *testing.T) {
		env := newTestEnv(t)
		user := hashedUser(t, "user-1", "alice@example.com", "correct horse")
		until := time.Now().Add(30 * time.Minute)
		user.FailedLoginAttempts = 5
		user.LockedUntil = &until

		env.repo.EXPECT().GetByEmailWithSecrets(gomock.Any(), "alice@example.com").Return(user, nil)

		resp := postJSON(t, env.app, "/api/v1/login", fiber.Map{
			"email":    "alice@example.com",
			"password": "correct horse",
		})

		assert.Equal(t, http.StatusLocked, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "account locked, try again later", body["message"])
	})
}

func TestRefresh(t *testing.T) {
	t.Run("rotates the session from the cookie", func(t *testing.T) {
		env := newTestEnv(t)

		env.tokenizer.EXPECT().VerifyRefreshToken("old-refresh").Return(claimsFor("user-1"), nil)
		env.repo.EXPECT().GetByID(gomock.Any(), "user-1").Return(&domain.User{ID: "user-1"}, nil)
		env.repo.EXPECT().SessionExists(gomock.Any(), "user-1", "old-refresh").Return(true, nil)
		env.repo.EXPECT().DeleteSession(gomock.Any(), "user-1", "old-refresh").Return(true, nil)
		env.tokenizer.EXPECT().GeneratePair("user-1").Return("new-access", "new-refresh", nil)
		env.repo.EXPECT().StoreSession(gomock.Any(), gomock.Any(), 5).Return(nil)

		resp := postJSON(t, env.app, "/api/v1/refresh-token", nil, func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "refresh_token", Value: "old-refresh"})
		})

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "new-refresh", cookieValue(resp, "refresh_token"))
	})

	t.Run("body token accepted without cookie", func(t *testing.T) {
		env := newTestEnv(t)

		env.tokenizer.EXPECT().VerifyRefreshToken("body-refresh").Return(claimsFor("user-1"), nil)
		env.repo.EXPECT().GetByID(gomock.Any(), "user-1").Return(&domain.User{ID: "user-1"}, nil)
		env.repo.EXPECT().SessionExists(gomock.Any(), "user-1", "body-refresh").Return(true, nil)
		env.repo.EXPECT().DeleteSession(gomock.Any(), "user-1", "body-refresh").Return(true, nil)
		env.tokenizer.EXPECT().GeneratePair("user-1").Return("new-access", "new-refresh", nil)
		env.repo.EXPECT().StoreSession(gomock.Any(), gomock.Any(), 5).Return(nil)

		resp := postJSON(t, env.app, "/api/v1/refresh-token", fiber.Map{
			"refresh_token": "body-refresh",
		})

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("rotated-out token is rejected", func(t *testing.T) {
		env := newTestEnv(t)

		env.tokenizer.EXPECT().VerifyRefreshToken("stolen").Return(claimsFor("user-1"), nil)
		env.repo.EXPECT().GetByID(gomock.Any(), "user-1").Return(&domain.User{ID: "user-1"}, nil)
		env.repo.EXPECT().SessionExists(gomock.Any(), "user-1", "stolen").Return(false, nil)

		resp := postJSON(t, env.app, "/api/v1/refresh-token", fiber.Map{
			"refresh_token": "stolen",
		})

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "invalid or expired token", body["message"])
	})

	t.Run("missing token", func(t *testing.T) {
		env := newTestEnv(t)

		resp := postJSON(t, env.app, "/api/v1/refresh-token", fiber.Map{})

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "no refresh token provided", body["message"])
	})
}

func TestLogout(t *testing.T) {
	t.Run("revokes the presented session", func(t *testing.T) {
		env := newTestEnv(t)

		env.tokenizer.EXPECT().VerifyAccessToken("access-jwt").Return(claimsFor("user-1"), nil)
		env.repo.EXPECT().GetByID(gomock.Any(), "user-1").Return(&domain.User{ID: "user-1"}, nil)
		env.repo.EXPECT().DeleteSession(gomock.Any(), "user-1", "refresh-jwt").Return(true, nil)

		resp := postJSON(t, env.app, "/api/v1/logout", fiber.Map{
			"refresh_token": "refresh-jwt",
		}, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer access-jwt")
		})

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		// Cookies are expired on the way out.
		assert.Empty(t, cookieValue(resp, "access_token"))
		assert.Empty(t, cookieValue(resp, "refresh_token"))
	})

	t.Run("access token read from cookie", func(t *testing.T) {
		env := newTestEnv(t)

		env.tokenizer.EXPECT().VerifyAccessToken("cookie-access").Return(claimsFor("user-1"), nil)
		env.repo.EXPECT().GetByID(gomock.Any(), "user-1").Return(&domain.User{ID: "user-1"}, nil)
		env.repo.EXPECT().DeleteSession(gomock.Any(), "user-1", "cookie-refresh").Return(true, nil)

		resp := postJSON(t, env.app, "/api/v1/logout", nil, func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "access_token", Value: "cookie-access"})
			r.AddCookie(&http.Cookie{Name: "refresh_token", Value: "cookie-refresh"})
		})

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("no credentials", func(t *testing.T) {
		env := newTestEnv(t)

		resp := postJSON(t, env.app, "/api/v1/logout", nil)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "not authenticated", body["message"])
	})

	t.Run("bad access token", func(t *testing.T) {
		env := newTestEnv(t)

		env.tokenizer.EXPECT().VerifyAccessToken("garbage").Return(nil, assert.AnError)

		resp := postJSON(t, env.app, "/api/v1/logout", nil, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer garbage")
		})

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestLogoutAll(t *testing.T) {
	env := newTestEnv(t)

	env.tokenizer.EXPECT().VerifyAccessToken("access-jwt").Return(claimsFor("user-1"), nil)
	env.repo.EXPECT().GetByID(gomock.Any(), "user-1").Return(&domain.User{ID: "user-1"}, nil)
	env.repo.EXPECT().DeleteAllSessions(gomock.Any(), "user-1").Return(nil)

	resp := postJSON(t, env.app, "/api/v1/logout-all", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer access-jwt")
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "success", body["status"])
}
