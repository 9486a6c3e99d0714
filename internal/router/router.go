package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sigap-app/sigap-api/internal/config"
	"github.com/sigap-app/sigap-api/internal/handler"
	"github.com/sigap-app/sigap-api/internal/middleware"
	"github.com/sigap-app/sigap-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ReportHandler   *handler.ReportHandler
	TrainingHandler *handler.TrainingHandler
	ProductHandler  *handler.ProductHandler
	SeedHandler     *handler.SeedHandler
	UploadHandler   *handler.UploadHandler
	JWTMiddleware   fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Reports
	if deps.ReportHandler != nil {
		reports := app.Group("/api/v1/reports", jwtMiddleware)
		deps.ReportHandler.Register(reports)
	}

	// Training sessions: token routes are public, issuing is admin-only.
	if deps.TrainingHandler != nil {
		sessions := app.Group("/api/v1/training-sessions")
		deps.TrainingHandler.Register(sessions, middleware.RateLimit("training_submit", 30, time.Minute))

		adminSessions := app.Group("/api/v1/admin/training-sessions", jwtMiddleware, middleware.RequireRole("admin", "trainer"))
		deps.TrainingHandler.RegisterAdmin(adminSessions)
	}

	// Product catalog
	if deps.ProductHandler != nil {
		products := app.Group("/api/v1/products")
		deps.ProductHandler.Register(products)
	}

	// Seeding (guarded by its own token, not JWT)
	if deps.SeedHandler != nil {
		admin := app.Group("/api/v1/admin")
		deps.SeedHandler.Register(admin)
	}

	// Uploads
	if deps.UploadHandler != nil {
		uploads := app.Group("/api/v1/uploads", jwtMiddleware)
		deps.UploadHandler.Register(uploads)
	}
}
