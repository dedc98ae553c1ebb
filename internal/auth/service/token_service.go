package service

//go:generate mockgen -destination=../../mocks/mock_token_generator.go -package=mocks github.com/devAO-bit/my-auth/internal/auth/service TokenGenerator

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	autherror "github.com/devAO-bit/my-auth/internal/errors"
)

type TokenGenerator interface {
	GeneratePair(userID string) (accessToken, refreshToken string, err error)
	VerifyAccessToken(tokenString string) (*JWTCustomClaims, error)
	VerifyRefreshToken(tokenString string) (*JWTCustomClaims, error)
	AccessTokenTTL() time.Duration
	RefreshTokenTTL() time.Duration
}

// TokenService signs and verifies the access/refresh token pair. The
// two kinds use distinct secrets, so a leaked access secret cannot
// forge refresh tokens.
type TokenService struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

type JWTCustomClaims struct {
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *JWTCustomClaims) UserID() string {
	return c.Subject
}

func NewTokenService(accessSecret, refreshSecret string, accessExpiry, refreshExpiry time.Duration) *TokenService {
	return &TokenService{
		AccessTokenSecret:  accessSecret,
		RefreshTokenSecret: refreshSecret,
		AccessTokenExpiry:  accessExpiry,
		RefreshTokenExpiry: refreshExpiry,
	}
}

// GeneratePair mints a fresh access/refresh token pair for the user.
// Each token carries its own jti, so two pairs minted in the same
// second never collide.
func (ts *TokenService) GeneratePair(userID string) (string, string, error) {
	now := time.Now()

	accessToken, err := ts.sign(userID, now, ts.AccessTokenExpiry, ts.AccessTokenSecret)
	if err != nil {
		return "", "", err
	}

	refreshToken, err := ts.sign(userID, now, ts.RefreshTokenExpiry, ts.RefreshTokenSecret)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

func (ts *TokenService) sign(userID string, now time.Time, ttl time.Duration, secret string) (string, error) {
	claims := JWTCustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyAccessToken parses and validates the given access token string.
func (ts *TokenService) VerifyAccessToken(tokenString string) (*JWTCustomClaims, error) {
	return ts.verify(tokenString, ts.AccessTokenSecret)
}

// VerifyRefreshToken parses and validates the given refresh token string.
func (ts *TokenService) VerifyRefreshToken(tokenString string) (*JWTCustomClaims, error) {
	return ts.verify(tokenString, ts.RefreshTokenSecret)
}

// verify wraps every failure in ErrInvalidToken: the caller must not be
// able to tell a tampered token from an expired one. The underlying
// cause stays attached for internal logging.
func (ts *TokenService) verify(tokenString, secret string) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w: %v", autherror.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, autherror.ErrInvalidToken
	}

	return claims, nil
}

func (ts *TokenService) AccessTokenTTL() time.Duration {
	return ts.AccessTokenExpiry
}

func (ts *TokenService) RefreshTokenTTL() time.Duration {
	return ts.RefreshTokenExpiry
}
