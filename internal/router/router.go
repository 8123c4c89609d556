package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/quizdeck/quizdeck-api/internal/config"
	"github.com/quizdeck/quizdeck-api/internal/handler"
	"github.com/quizdeck/quizdeck-api/internal/middleware"
	"github.com/quizdeck/quizdeck-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler       *handler.AuthHandler
	ClassHandler      *handler.ClassHandler
	QuizHandler       *handler.QuizHandler
	AssignmentHandler *handler.AssignmentHandler
	AttemptHandler    *handler.AttemptHandler
	ReportHandler     *handler.ReportHandler
	MonitorHandler    *handler.MonitorHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		auth := api.Group("/auth", middleware.RateLimit("auth", 10, time.Minute))
		deps.AuthHandler.Register(auth)
	}

	adminGuard := func(c *fiber.Ctx) error {
		return middleware.WithAuth(func(c *fiber.Ctx) error { return c.Next() },
			middleware.AuthOptions{Role: middleware.AuthRoleAdmin})(c)
	}
	candidateGuard := func(c *fiber.Ctx) error {
		return middleware.WithAuth(func(c *fiber.Ctx) error { return c.Next() },
			middleware.AuthOptions{Role: middleware.AuthRoleCandidate})(c)
	}

	admin := api.Group("/admin", jwtMiddleware, adminGuard)
	candidate := api.Group("/candidate", jwtMiddleware, candidateGuard)

	if deps.ClassHandler != nil {
		deps.ClassHandler.RegisterAdmin(admin.Group("/classes"))
		deps.ClassHandler.RegisterCandidate(candidate.Group("/classes"))
	}

	if deps.QuizHandler != nil {
		deps.QuizHandler.Register(admin.Group("/quizzes"))
	}

	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.RegisterAdmin(admin.Group("/assignments"))
		deps.AssignmentHandler.RegisterCandidate(candidate.Group("/assignments"))
	}

	if deps.AttemptHandler != nil {
		deps.AttemptHandler.Register(candidate.Group("", middleware.RateLimit("attempts", 60, time.Minute)))
	}

	if deps.ReportHandler != nil {
		deps.ReportHandler.Register(admin.Group("/reports"))
	}

	if deps.MonitorHandler != nil {
		deps.MonitorHandler.Register(admin.Group("/monitor"))
	}
}
