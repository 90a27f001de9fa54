package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/job-board/internal/api/http/handlers"
	"github.com/spec-kit/job-board/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health       *handlers.HealthHandler
	Auth         *handlers.AuthHandler
	Jobs         *handlers.JobsHandler
	Applications *handlers.ApplicationsHandler
	Recruiter    *handlers.RecruiterHandler
	Admin        *handlers.AdminHandler
	Metrics      http.Handler
	// AuthLimit throttles credential endpoints; nil disables it.
	AuthLimit fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	limited := cfg.AuthLimit
	if limited == nil {
		limited = func(c *fiber.Ctx) error { return c.Next() }
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", limited, cfg.Auth.Register)
	authGroup.Post("/login", limited, cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Post("/password/reset/request", limited, cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", limited, cfg.Auth.ConfirmPasswordReset)
	authGroup.Get("/me", auth.Require(auth.RequireAuthenticated), cfg.Auth.Me)
	authGroup.Post("/password/change", auth.Require(auth.RequireAuthenticated), cfg.Auth.ChangePassword)

	recruiterOrAdmin := auth.Require(auth.RequireRecruiterOrAdmin)
	applicant := auth.Require(auth.RequireApplicant)
	authenticated := auth.Require(auth.RequireAuthenticated)

	jobs := app.Group("/jobs")
	jobs.Get("", cfg.Jobs.ListJobs)
	jobs.Post("", recruiterOrAdmin, cfg.Jobs.CreateJob)
	jobs.Get("/:id", cfg.Jobs.GetJob)
	jobs.Delete("/:id", recruiterOrAdmin, cfg.Jobs.DeleteJob)
	jobs.Get("/:id/details", recruiterOrAdmin, cfg.Jobs.JobDetails)
	jobs.Get("/:id/cvs/download", recruiterOrAdmin, cfg.Jobs.DownloadCVs)
	jobs.Get("/:id/report.pdf", recruiterOrAdmin, cfg.Jobs.JobReport)
	jobs.Post("/:id/applications", applicant, cfg.Applications.Apply)

	apps := app.Group("/applications")
	apps.Get("/mine", applicant, cfg.Applications.ListMine)
	apps.Post("/bulk-status", recruiterOrAdmin, cfg.Applications.BulkUpdateStatus)
	apps.Get("/:id", authenticated, cfg.Applications.GetApplication)
	apps.Get("/:id/cv", authenticated, cfg.Applications.DownloadCV)
	apps.Post("/:id/withdraw", applicant, cfg.Applications.Withdraw)
	apps.Post("/:id/status", recruiterOrAdmin, cfg.Applications.UpdateStatus)
	apps.Post("/:id/score", recruiterOrAdmin, cfg.Applications.SetScore)
	apps.Post("/:id/notes", recruiterOrAdmin, cfg.Applications.SaveNotes)

	recruiter := app.Group("/recruiter", recruiterOrAdmin)
	recruiter.Get("/jobs", cfg.Recruiter.ListJobs)
	recruiter.Get("/stats", cfg.Recruiter.Stats)

	admin := app.Group("/admin", auth.Require(auth.RequireAdmin))
	admin.Get("/users", cfg.Admin.ListUsers)
	admin.Get("/users/:id", cfg.Admin.GetUser)
	admin.Put("/users/:id", cfg.Admin.UpdateUser)
	admin.Post("/users/:id/toggle-status", cfg.Admin.ToggleUserStatus)
	admin.Delete("/users/:id", cfg.Admin.DeleteUser)
	admin.Get("/jobs", cfg.Admin.ListJobs)
	admin.Get("/applications", cfg.Admin.ListApplications)
	admin.Delete("/applications/:id", cfg.Admin.DeleteApplication)
	admin.Get("/stats", cfg.Admin.Stats)
	admin.Post("/cvs/reconcile", cfg.Admin.ReconcileCVs)
}
