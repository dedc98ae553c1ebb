package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/devAO-bit/my-auth/config"
	"github.com/devAO-bit/my-auth/db"
	"github.com/devAO-bit/my-auth/internal/auth/handler"
	repo "github.com/devAO-bit/my-auth/internal/auth/repository/postgres"
	"github.com/devAO-bit/my-auth/internal/auth/service"
	"github.com/devAO-bit/my-auth/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	if err := db.Migrate(cfg.DBURL); err != nil {
		zapLogger.Fatal("failed to run migrations", zap.Error(err))
	}

	ctx := context.Background()
	dbPool, err := db.NewPostgresPool(ctx, cfg.DBURL)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	userRepo := repo.NewPostgresRepository(dbPool)
	tokenService := service.NewTokenService(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)
	userService := service.NewUserService(userRepo, tokenService, cfg, zapLogger)

	authHandler := handler.NewAuthHandler(userService, tokenService, zapLogger)
	authHandler.SecureCookies = cfg.Env == "production"

	app := fiber.New()
	app.Use(handler.RequestLogger(zapLogger))
	handler.RegisterRoutes(app, authHandler)

	zapLogger.Info("starting auth service", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
	if err := app.Listen(":" + cfg.Port); err != nil {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
}
