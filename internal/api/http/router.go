package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Wildnerds/korrectNG-sub003/internal/api/http/handlers"
	"github.com/Wildnerds/korrectNG-sub003/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Disputes       *handlers.DisputesHandler
	Contracts      *handlers.ContractsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/customers/register", cfg.Auth.RegisterCustomer)
	authGroup.Post("/customers/login", cfg.Auth.LoginCustomer)
	authGroup.Post("/artisans/register", cfg.Auth.RegisterArtisan)
	authGroup.Post("/artisans/login", cfg.Auth.LoginArtisan)

	disputes := app.Group("/disputes", cfg.AuthMiddleware.Handle)
	disputes.Post("", auth.RequireCustomer(), cfg.Disputes.CreateDispute)
	disputes.Get("", auth.RequireAny(), cfg.Disputes.ListDisputes)
	disputes.Get("/key/:key", auth.RequireAny(), cfg.Disputes.GetDisputeByKey)
	disputes.Get("/:id", auth.RequireAny(), cfg.Disputes.GetDispute)
	disputes.Post("/:id/evidence", auth.RequireAny(), cfg.Disputes.AddEvidence)
	disputes.Post("/:id/respond", auth.RequireArtisan(), cfg.Disputes.Respond)
	disputes.Post("/:id/withdraw", auth.RequireCustomer(), cfg.Disputes.Withdraw)
	disputes.Post("/:id/resolve", auth.RequireAdmin(), cfg.Disputes.Resolve)
	disputes.Post("/:id/close", auth.RequireAdmin(), cfg.Disputes.Close)

	internal := app.Group("/internal", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	internal.Put("/contracts", cfg.Contracts.SyncContract)
}
