package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/visitor-queue/internal/api/http/handlers"
	"github.com/spec-kit/visitor-queue/internal/auth"
	"github.com/spec-kit/visitor-queue/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware *auth.AuthMiddleware
	KioskLimiter   *IPRateLimiter
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	kiosk := app.Group("/kiosk")
	kiosk.Post("/tickets", RateLimit(cfg.KioskLimiter), cfg.Tickets.SubmitCase)
	kiosk.Get("/tickets/:number", cfg.Tickets.GetStatus)
	kiosk.Post("/tickets/:number/progress", cfg.Tickets.RecordProgress)

	authGroup := app.Group("/auth")
	authGroup.Post("/staff/login", cfg.Staff.Login)

	staff := app.Group("/staff", cfg.AuthMiddleware.Handle, auth.RequireStaffRole())
	staff.Get("/queue", cfg.StaffTickets.Snapshot)
	staff.Post("/queue/next", cfg.StaffTickets.PullNext)
	staff.Get("/tickets", cfg.StaffTickets.ListTickets)
	staff.Get("/tickets/:number", cfg.StaffTickets.GetTicket)
	staff.Post("/tickets/:number/complete", cfg.StaffTickets.Complete)
	staff.Post("/tickets/:number/cancel", cfg.StaffTickets.Cancel)
	staff.Post("/members", auth.RequireStaffRole(domain.StaffRoleAdmin), cfg.Staff.CreateMember)
}
