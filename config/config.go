// Package config loads application configuration from the environment
// and an optional .env file using Viper. Environment variables override
// file values.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultPort               = "8080"
	DefaultAccessTokenExpiry  = 15 * time.Minute
	DefaultRefreshTokenExpiry = 168 * time.Hour // 7d
	DefaultBcryptCost         = 12
	DefaultLoginMaxAttempts   = 5
	DefaultLockoutDuration    = time.Hour
	DefaultMaxActiveSessions  = 5
	DefaultLoginHistoryLimit  = 20
	DefaultLogLevel           = "info"
)

type Config struct {
	Env                string
	Port               string
	DBURL              string
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	BcryptCost         int
	LoginMaxAttempts   int
	LockoutDuration    time.Duration
	MaxActiveSessions  int
	LoginHistoryLimit  int
	LogLevel           string
}

// Load reads .env if present, then the environment. Returns an error
// when a required value is missing or out of range.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine (e.g. CI)

	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", DefaultPort)
	v.SetDefault("DB_URL", "")
	v.SetDefault("ACCESS_TOKEN_SECRET", "")
	v.SetDefault("REFRESH_TOKEN_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_EXPIRY", DefaultAccessTokenExpiry.String())
	v.SetDefault("REFRESH_TOKEN_EXPIRY", DefaultRefreshTokenExpiry.String())
	v.SetDefault("BCRYPT_COST", DefaultBcryptCost)
	v.SetDefault("LOGIN_MAX_ATTEMPTS", DefaultLoginMaxAttempts)
	v.SetDefault("LOCKOUT_DURATION", DefaultLockoutDuration.String())
	v.SetDefault("MAX_ACTIVE_SESSIONS", DefaultMaxActiveSessions)
	v.SetDefault("LOGIN_HISTORY_LIMIT", DefaultLoginHistoryLimit)
	v.SetDefault("LOG_LEVEL", DefaultLogLevel)

	cfg := &Config{
		Env:                v.GetString("ENV"),
		Port:               v.GetString("PORT"),
		DBURL:              v.GetString("DB_URL"),
		AccessTokenSecret:  v.GetString("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: v.GetString("REFRESH_TOKEN_SECRET"),
		AccessTokenExpiry:  v.GetDuration("ACCESS_TOKEN_EXPIRY"),
		RefreshTokenExpiry: v.GetDuration("REFRESH_TOKEN_EXPIRY"),
		BcryptCost:         v.GetInt("BCRYPT_COST"),
		LoginMaxAttempts:   v.GetInt("LOGIN_MAX_ATTEMPTS"),
		LockoutDuration:    v.GetDuration("LOCKOUT_DURATION"),
		MaxActiveSessions:  v.GetInt("MAX_ACTIVE_SESSIONS"),
		LoginHistoryLimit:  v.GetInt("LOGIN_HISTORY_LIMIT"),
		LogLevel:           v.GetString("LOG_LEVEL"),
	}

	if cfg.DBURL == "" {
		return nil, errors.New("config: DB_URL must be set")
	}
	if cfg.AccessTokenSecret == "" {
		return nil, errors.New("config: ACCESS_TOKEN_SECRET must be set")
	}
	if cfg.RefreshTokenSecret == "" {
		return nil, errors.New("config: REFRESH_TOKEN_SECRET must be set")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, errors.New("config: access and refresh token secrets must differ")
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.AccessTokenExpiry <= 0 {
		cfg.AccessTokenExpiry = DefaultAccessTokenExpiry
	}
	if cfg.RefreshTokenExpiry <= 0 {
		cfg.RefreshTokenExpiry = DefaultRefreshTokenExpiry
	}
	if cfg.LoginMaxAttempts <= 0 {
		cfg.LoginMaxAttempts = DefaultLoginMaxAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = DefaultLockoutDuration
	}
	if cfg.MaxActiveSessions <= 0 {
		cfg.MaxActiveSessions = DefaultMaxActiveSessions
	}
	if cfg.LoginHistoryLimit <= 0 {
		cfg.LoginHistoryLimit = DefaultLoginHistoryLimit
	}

	return cfg, nil
}
