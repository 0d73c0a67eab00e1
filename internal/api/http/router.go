package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-workflow/internal/auth"
	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	WorkOrders     *handlers.WorkOrdersHandler
	Resources      *handlers.ResourcesHandler
	Ledger         *handlers.LedgerHandler
	DevTokens      *handlers.DevTokenHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	if cfg.DevTokens != nil {
		app.Post("/auth/dev-token", cfg.DevTokens.Issue)
	}

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireRole())

	tickets := api.Group("/tickets")
	tickets.Post("/repair", cfg.Tickets.CreateRepair)
	tickets.Post("/booking", cfg.Tickets.CreateBooking)
	tickets.Get("/", cfg.Tickets.List)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Get("/:id/actions", cfg.Tickets.Actions)
	tickets.Post("/:id/transitions", cfg.Tickets.Transition)
	tickets.Get("/:id/work-orders", cfg.WorkOrders.List)
	tickets.Post("/:id/work-orders", auth.RequireRole(domain.RoleTechnician, domain.RoleAdmin), cfg.WorkOrders.Create)
	tickets.Get("/:id/work-orders/readiness", cfg.WorkOrders.Readiness)

	api.Post("/work-orders/:id/transitions", auth.RequireRole(domain.RoleTechnician, domain.RoleAdmin), cfg.WorkOrders.Transition)

	resources := api.Group("/resources")
	resources.Get("/", cfg.Resources.List)
	resources.Post("/", auth.RequireRole(domain.RoleAdmin), cfg.Resources.Create)
	resources.Get("/:id", cfg.Resources.Get)
	resources.Patch("/:id", auth.RequireRole(domain.RoleAdmin), cfg.Resources.Update)
	resources.Get("/:id/events", cfg.Resources.Events)
	resources.Post("/:id/conflicts", cfg.Resources.CheckConflict)

	api.Get("/assets/:code/ledger", auth.RequireRole(domain.RoleTechnician, domain.RoleAdmin), cfg.Ledger.Get)
}

// NewApp builds the fiber app with middleware and routes registered.
func NewApp(appName string, logger *zap.Logger, metrics *observability.Metrics, mw MiddlewareConfig, routes RouteConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, logger, metrics, mw)
	RegisterRoutes(app, routes)
	return app
}
