package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/craigfelt/zerobitone-ticket-service/internal/api/http/handlers"
	"github.com/craigfelt/zerobitone-ticket-service/internal/auth"
	"github.com/craigfelt/zerobitone-ticket-service/internal/observability"
)

// NewServer builds the fiber app with the global middlewares and routes.
func NewServer(appName string, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration, routes RouteConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, logger, metrics, timeout)
	RegisterRoutes(app, routes)
	return app
}

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Comments       *handlers.CommentsHandler
	Watchers       *handlers.WatchersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	api.Get("/metadata/tickets", cfg.Tickets.Metadata)

	tickets := api.Group("/tickets")
	tickets.Get("/statistics", cfg.Tickets.Statistics)
	tickets.Get("/number/:number", cfg.Tickets.GetTicketByNumber)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Put("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)

	tickets.Post("/:id/comments", cfg.Comments.AddComment)
	tickets.Put("/:id/comments/:commentId", cfg.Comments.UpdateComment)
	tickets.Delete("/:id/comments/:commentId", cfg.Comments.DeleteComment)

	tickets.Post("/:id/watchers", cfg.Watchers.AddWatcher)
	tickets.Delete("/:id/watchers/:userId", cfg.Watchers.RemoveWatcher)
}
