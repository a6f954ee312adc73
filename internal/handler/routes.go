package handler

import (
	"log/slog"

	"go-inventory-tracker/internal/middleware"
	"go-inventory-tracker/internal/service"
	"go-inventory-tracker/internal/ws"
	"go-inventory-tracker/pkg/metrics"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

// AppConfig carries everything NewApp wires together.
type AppConfig struct {
	Inventory   service.InventoryService
	Auth        service.AuthService
	Hub         *ws.Hub
	DB          *gorm.DB
	Log         *slog.Logger
	BodyLimitMB int
	AccessLog   bool
}

// NewApp builds the fiber application with every route registered.
func NewApp(cfg AppConfig) *fiber.App {
	bodyLimit := cfg.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 10
	}

	app := fiber.New(fiber.Config{
		AppName:   "Inventory Tracker",
		BodyLimit: bodyLimit * 1024 * 1024,
	})

	// Middleware
	if cfg.AccessLog {
		app.Use(logger.New()) // Logging request
	}
	app.Use(recover.New()) // Panic recovery
	app.Use(cors.New())    // CORS
	app.Use(metrics.Middleware())

	invHandler := NewInventoryHandler(cfg.Inventory, cfg.Log)
	authHandler := NewAuthHandler(cfg.Auth, cfg.Log)
	healthHandler := NewHealthHandler(cfg.DB)
	requireAuth := middleware.RequireAuth(cfg.Auth)

	app.Get("/healthz", healthHandler.Healthz)
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api")

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Post("/reset-password", authHandler.ResetPassword)
	auth.Get("/me", requireAuth, authHandler.Me)

	// ============ PROTECTED ROUTES ============
	products := api.Group("/products", requireAuth)

	// static segments before /:id
	products.Get("/export", invHandler.ExportProducts)
	products.Post("/import", invHandler.ImportProducts)

	products.Get("/", invHandler.GetProducts)
	products.Post("/", invHandler.CreateProduct)
	products.Get("/:id", invHandler.GetProduct)
	products.Put("/:id", invHandler.UpdateProduct)
	products.Delete("/:id", invHandler.DeleteProduct)
	products.Get("/:id/history", invHandler.GetHistory)

	// WebSocket Route
	if cfg.Hub != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return c.SendStatus(fiber.StatusUpgradeRequired)
		}, requireAuth)
		app.Get("/ws", websocket.New(cfg.Hub.Serve))
	}

	return app
}
