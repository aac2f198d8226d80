// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yieldtree/internal/app"
	"yieldtree/internal/config"
	"yieldtree/internal/handlers"
	"yieldtree/internal/logging"
	"yieldtree/internal/monitoring"
	"yieldtree/internal/repositories"
	"yieldtree/internal/routes"
	"yieldtree/internal/services/distribution"
	"yieldtree/internal/services/notification"
	"yieldtree/internal/services/otp"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	if err := logging.InitLogger(cfg.Server.Production); err != nil {
		panic(err)
	}
	log := logging.Logger

	err := run(cfg, log)
	if err != nil {
		log.Error("server exited", zap.Error(err))
	}
	logging.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run owns every resource the server opens and releases them through its
// defers before returning.
func run(cfg *config.Config, log *zap.Logger) error {
	if cfg.JWT.Secret == "" {
		return errors.New("JWT_SECRET must be set")
	}

	db, err := repositories.InitDB(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database initialisation failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			log.Warn("failed to close database connection", zap.Error(err))
		}
	}()

	cacheService := repositories.InitCache(cfg.Redis)
	defer func() {
		if err := cacheService.Close(); err != nil {
			log.Warn("failed to close redis connection", zap.Error(err))
		}
	}()
	if err := cacheService.HealthCheck(context.Background()); err != nil {
		log.Warn("redis unavailable at startup", zap.Error(err))
	}

	var otpStore otp.Store
	switch cfg.OTP.Store {
	case "memory":
		otpStore = otp.NewMemoryStore(nil)
	default:
		otpStore = otp.NewRedisStore(cacheService.Client())
	}

	var notifier otp.Notifier
	if cfg.SMTP.Enabled() {
		notifier = notification.NewEmailService(cfg.SMTP)
	} else {
		log.Warn("SMTP not configured, OTP codes will only be logged")
		notifier = notification.NewService(log.Named("notification"))
	}

	services, err := app.NewServices(cfg, app.Deps{
		Store:    repositories.NewStore(db),
		Cache:    cacheService,
		OTPStore: otpStore,
		Notifier: notifier,
		Metrics:  monitoring.NewCollector(),
		Log:      log,
	})
	if err != nil {
		return fmt.Errorf("service wiring failed: %w", err)
	}

	scheduler, err := distribution.NewScheduler(services.Distribution, cfg.Distribution, log.Named("scheduler"))
	if err != nil {
		return fmt.Errorf("scheduler setup failed: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := fiber.New(fiber.Config{
		AppName:      "yieldtree-api",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    8 * 1024 * 1024, // deposit screenshots are sent inline
	})

	server.Use(recover.New())
	server.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowCredentials: true,
	}))
	server.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	server.Use("/api/register", authLimiter())
	server.Use("/api/login", authLimiter())

	checks := map[string]handlers.Pinger{
		"database": handlers.PingFunc(sqlDB.PingContext),
		"redis":    handlers.PingFunc(cacheService.HealthCheck),
	}
	routes.SetupRoutes(server, services.Handlers(!cfg.Server.Production, checks, log.Named("http")))

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- server.Listen(":" + cfg.Server.Port)
	}()
	log.Info("server started", zap.String("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-listenErr:
		return fmt.Errorf("server stopped: %w", err)
	case <-quit:
	}

	log.Info("shutting down")
	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// authLimiter throttles credential endpoints per client IP.
func authLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        5,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	})
}
