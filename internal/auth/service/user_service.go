package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/devAO-bit/my-auth/config"
	"github.com/devAO-bit/my-auth/internal/auth/domain"
	"github.com/devAO-bit/my-auth/internal/auth/dto"
	autherror "github.com/devAO-bit/my-auth/internal/errors"
)

// dummyHash is compared against on the email-not-found login path so
// response time does not reveal whether the email exists.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// UserService composes the credential store, token codec, lockout
// policy and session registry into the register/login/refresh/logout
// use cases.
type UserService struct {
	repo         domain.UserRepository
	tokenService TokenGenerator
	cfg          *config.Config
	lockout      LockoutPolicy
	logger       *zap.Logger
}

func NewUserService(repo domain.UserRepository, tokenService TokenGenerator, cfg *config.Config, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &UserService{
		repo:         repo,
		tokenService: tokenService,
		cfg:          cfg,
		lockout:      NewLockoutPolicy(cfg.LoginMaxAttempts, cfg.LockoutDuration),
		logger:       logger,
	}
}

// Register creates an account and issues its first token pair.
func (s *UserService) Register(ctx context.Context, input dto.RegisterInput) (*dto.AuthOutput, error) {
	email := normalizeEmail(input.Email)

	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, autherror.ErrEmailAlreadyInUse
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.User{
		ID:                 uuid.NewString(),
		Name:               strings.TrimSpace(input.Name),
		Email:              email,
		PasswordHash:       string(hashedPassword),
		Role:               domain.RoleUser,
		Status:             domain.StatusActive,
		LastPasswordChange: &now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	// The unique index still guards the race between the existence
	// check and the insert; the repository maps that to the same error.
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	tokens, err := s.issueSession(ctx, user.ID, input.IPAddress, input.UserAgent)
	if err != nil {
		return nil, err
	}

	return &dto.AuthOutput{
		User:         dto.NewUserOutput(user),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, nil
}

// Login verifies credentials, applying the lockout policy before any
// password work, and issues a token pair on success.
func (s *UserService) Login(ctx context.Context, input dto.LoginInput) (*dto.AuthOutput, error) {
	email := normalizeEmail(input.Email)
	now := time.Now()

	user, err := s.repo.GetByEmailWithSecrets(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Burn the same hashing cost as the real comparison.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(input.Password))
		return nil, autherror.ErrInvalidCredentials
	}

	if s.lockout.Locked(user, now) {
		return nil, autherror.ErrAccountLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		if err := s.repo.RecordFailedLogin(ctx, user.ID, s.lockout.Threshold, s.lockout.LockDeadline(now)); err != nil {
			s.logger.Error("failed to record login failure", zap.String("user_id", user.ID), zap.Error(err))
		}
		return nil, autherror.ErrInvalidCredentials
	}

	entry := domain.LoginEntry{IPAddress: input.IPAddress, UserAgent: input.UserAgent, LoginAt: now}
	if err := s.repo.RecordSuccessfulLogin(ctx, user.ID, entry, s.cfg.LoginHistoryLimit); err != nil {
		return nil, err
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLogin = &now

	tokens, err := s.issueSession(ctx, user.ID, input.IPAddress, input.UserAgent)
	if err != nil {
		return nil, err
	}

	return &dto.AuthOutput{
		User:         dto.NewUserOutput(user),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, nil
}

// Refresh rotates a refresh token: the presented session is revoked and
// a brand-new pair issued. A refresh token is single-use; presenting a
// rotated-out token fails.
func (s *UserService) Refresh(ctx context.Context, input dto.RefreshInput) (*dto.TokenResponse, error) {
	token := strings.TrimSpace(input.RefreshToken)
	if token == "" {
		return nil, autherror.ErrMissingRefreshToken
	}

	claims, err := s.tokenService.VerifyRefreshToken(token)
	if err != nil {
		s.logger.Debug("refresh token verification failed", zap.Error(err))
		return nil, autherror.ErrInvalidToken
	}

	user, err := s.repo.GetByID(ctx, claims.UserID())
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, autherror.ErrUserNotFound
	}

	live, err := s.repo.SessionExists(ctx, user.ID, token)
	if err != nil {
		return nil, err
	}
	if !live {
		// A valid signature on a dead session means the token was
		// already rotated out: possible theft.
		s.logger.Warn("refresh token reuse detected", zap.String("user_id", user.ID))
		return nil, autherror.ErrInvalidToken
	}

	// The delete is the atomic guard: of two concurrent refreshes with
	// the same token, only one removes the row.
	removed, err := s.repo.DeleteSession(ctx, user.ID, token)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, autherror.ErrInvalidToken
	}

	return s.issueSession(ctx, user.ID, input.IPAddress, input.UserAgent)
}

// Logout revokes a single session. Revoking a token that is already
// gone succeeds.
func (s *UserService) Logout(ctx context.Context, userID, refreshToken string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return autherror.ErrUserNotFound
	}

	_, err = s.repo.DeleteSession(ctx, user.ID, strings.TrimSpace(refreshToken))
	return err
}

// LogoutAll revokes every session the account owns.
func (s *UserService) LogoutAll(ctx context.Context, userID string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return autherror.ErrUserNotFound
	}

	return s.repo.DeleteAllSessions(ctx, user.ID)
}

// issueSession mints a pair and records the refresh session, evicting
// the oldest session beyond the per-user cap.
func (s *UserService) issueSession(ctx context.Context, userID, ip, userAgent string) (*dto.TokenResponse, error) {
	accessToken, refreshToken, err := s.tokenService.GeneratePair(userID)
	if err != nil {
		return nil, err
	}

	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     refreshToken,
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: time.Now(),
	}
	if err := s.repo.StoreSession(ctx, session, s.cfg.MaxActiveSessions); err != nil {
		return nil, err
	}

	return &dto.TokenResponse{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
