package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-ticket-service/internal/api/http/handlers"
	"github.com/spec-kit/support-ticket-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Owner          *handlers.OwnerTicketsHandler
	Staff          *handlers.StaffTicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	owner := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireOwnerRole())
	owner.Post("/", cfg.Owner.CreateTicket)
	owner.Get("/", cfg.Owner.ListTickets)
	owner.Get("/:id", cfg.Owner.GetTicket)
	owner.Post("/:id/messages", cfg.Owner.AppendMessage)
	owner.Get("/:id/history", cfg.Owner.ListHistory)

	staff := app.Group("/staff/tickets", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	staff.Get("/", cfg.Staff.ListTickets)
	staff.Get("/:id", cfg.Staff.GetTicket)
	staff.Post("/:id/messages", cfg.Staff.AppendMessage)
	staff.Post("/:id/status", cfg.Staff.TransitionStatus)
	staff.Get("/:id/history", cfg.Staff.ListHistory)
}
