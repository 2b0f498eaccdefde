package routes

import (
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"markets-engine/src/handlers"
	"markets-engine/src/middleware"
)

func SetupRoutes(app *fiber.App, marketHandler *handlers.MarketHandler) {
	rateLimitDisabled := os.Getenv("RATE_LIMIT_DISABLED") == "1"

	maxRequests := 100
	if envMax := os.Getenv("RATE_LIMIT_MAX"); envMax != "" {
		if parsed, err := strconv.Atoi(envMax); err == nil && parsed > 0 {
			maxRequests = parsed
		}
	}

	windowDuration := time.Second
	if envWindow := os.Getenv("RATE_LIMIT_WINDOW"); envWindow != "" {
		if parsed, err := time.ParseDuration(envWindow); err == nil && parsed > 0 {
			windowDuration = parsed
		}
	}

	serviceAvailability := middleware.DefaultServiceAvailability()
	app.Use(serviceAvailability.Middleware())
	app.Use(middleware.RequestLogger())

	if !rateLimitDisabled {
		rateLimiter := middleware.NewRateLimiter(maxRequests, windowDuration)
		app.Use(rateLimiter.Middleware())
	}

	users := app.Group("/users")
	users.Post("/", marketHandler.CreateUser)
	users.Get("/:id", marketHandler.GetUser)
	users.Get("/:id/trades", marketHandler.GetUserTrades)

	markets := app.Group("/markets")
	markets.Get("/", marketHandler.ListMarkets)
	markets.Post("/", marketHandler.CreateMarket)
	markets.Get("/:id", marketHandler.GetMarket)
	markets.Post("/:id/orders", marketHandler.CreateOrder)
	markets.Delete("/:id/orders/:orderID", marketHandler.CancelOrder)
	markets.Get("/:id/book", marketHandler.GetBook)
	markets.Get("/:id/trades", marketHandler.GetTrades)

	app.Get("/health", marketHandler.HealthCheck)
	app.Get("/metrics", marketHandler.Metrics)
}
