package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go-inventory-tracker/internal/handler"
	"go-inventory-tracker/internal/model"
	"go-inventory-tracker/internal/repository"
	"go-inventory-tracker/internal/seed"
	"go-inventory-tracker/internal/service"
	"go-inventory-tracker/internal/ws"
	"go-inventory-tracker/pkg/cache"
	"go-inventory-tracker/pkg/config"
	"go-inventory-tracker/pkg/database"
	"go-inventory-tracker/pkg/jwt"
	"go-inventory-tracker/pkg/logger"
)

func main() {
	// 1. Load Env
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	appLog := logger.Setup(cfg.AppEnv)

	// 2. Setup Database
	db, err := database.Connect(cfg)
	if err != nil {
		appLog.Error("database connection failed", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	if err := model.AutoMigrate(db); err != nil {
		appLog.Error("auto-migrate failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 3. Optional Redis listing cache
	var listCache service.ListCache
	if cfg.RedisAddr != "" {
		c, err := cache.Connect(ctx, cfg.RedisAddr, "inventory:", cfg.CacheTTL)
		if err != nil {
			appLog.Warn("redis unavailable, listing cache disabled", "error", err)
		} else {
			defer c.Close()
			listCache = c
			appLog.Info("listing cache enabled", "addr", cfg.RedisAddr)
		}
	}

	// 4. Setup WebSocket Hub
	wsHub := ws.NewHub(appLog)
	go wsHub.Run(ctx)

	// 5. Dependency Injection (Wiring Layers)
	tokens, err := jwt.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		appLog.Error("jwt setup failed", "error", err)
		os.Exit(1)
	}

	productRepo := repository.NewProductRepo(db)
	historyRepo := repository.NewHistoryRepo(db)
	userRepo := repository.NewUserRepo(db)

	authService := service.NewAuthService(userRepo, tokens, appLog)
	invService := service.NewInventoryService(productRepo, historyRepo, listCache, wsHub, appLog, service.InventoryOptions{
		MaxPageSize:       cfg.MaxPageSize,
		ImportConcurrency: cfg.ImportConcurrency,
	})

	if err := seed.Run(ctx, cfg, authService, productRepo, appLog); err != nil {
		appLog.Error("seeding failed", "error", err)
		os.Exit(1)
	}

	// 6. Setup Fiber
	app := handler.NewApp(handler.AppConfig{
		Inventory:   invService,
		Auth:        authService,
		Hub:         wsHub,
		DB:          db,
		Log:         appLog,
		BodyLimitMB: cfg.MaxUploadMB,
		AccessLog:   true,
	})

	// 7. Graceful Shutdown
	go func() {
		appLog.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv, "db", cfg.DBDriver)
		if err := app.Listen(":" + cfg.Port); err != nil && !errors.Is(err, context.Canceled) {
			appLog.Error("server stopped", "error", err)
			stop()
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	appLog.Info("shutting down server")
	if err := app.Shutdown(); err != nil {
		appLog.Error("server forced to shutdown", "error", err)
	}
	stop()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	appLog.Info("server exited")
}
