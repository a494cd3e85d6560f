// Package app assembles the storefront HTTP application.
package app

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"gorm.io/gorm"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/repositories"
	"storefront/internal/services"
)

// Deps are the resources the application is built on. Publisher and Index are optional.
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Logger    *slog.Logger
	Publisher events.Publisher
	Index     services.ProductIndex
}

// New builds the Fiber app with every route registered.
func New(d Deps) *fiber.App {
	publisher := d.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := repositories.NewStore(d.DB)

	authService := services.NewAuthService(store.Users, d.Config.JWT.Secret, d.Config.JWT.TTL)
	productService := services.NewProductService(store, d.Index, publisher)
	cartService := services.NewCartService(store)
	orderService := services.NewOrderService(store, publisher)
	returnService := services.NewReturnService(store, publisher)
	dashboardService := services.NewDashboardService(store)

	authHandler := handlers.NewAuthHandler(authService)
	productHandler := handlers.NewProductHandler(productService)
	cartHandler := handlers.NewCartHandler(cartService)
	orderHandler := handlers.NewOrderHandler(orderService, returnService)
	sellerHandler := handlers.NewSellerHandler(productService, orderService, returnService, dashboardService, d.Config.App.MediaDir)

	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		BodyLimit:    20 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(logger))

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := database.HealthCheck(c.UserContext(), d.DB); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	app.Static("/media", d.Config.App.MediaDir)

	apiV1 := app.Group("/api/v1")

	// Public routes
	authHandler.RegisterRoutes(apiV1)
	productHandler.RegisterRoutes(apiV1)

	// Protected routes (require JWT authentication)
	protectedRoutes := apiV1.Group("", middleware.AuthRequired(authService))
	cartHandler.RegisterRoutes(protectedRoutes)
	orderHandler.RegisterRoutes(protectedRoutes)
	sellerHandler.RegisterRoutes(protectedRoutes)

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{
		"message": message,
		"error":   message,
	})
}
