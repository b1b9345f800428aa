package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/config"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/civic-portal/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

var publicEntities = []string{
	"events", "jobs", "resources", "community-alerts", "special-events", "civic-organizations",
}

type Handlers struct {
	Auth       *handlers.AuthHandler
	Health     *handlers.HealthHandler
	Content    *handlers.ContentHandler
	Moderation *handlers.ModerationHandler
	Civic      *handlers.CivicHandler
	Agency     *handlers.AgencyHandler
}

func strictLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})
}

func Setup(
	app *fiber.App,
	cfg *config.Config,
	roles *services.RoleService,
	civicAuth *services.CivicAuthService,
	h Handlers,
) {
	app.Get("/metrics", metrics.Handler())
	app.Static("/storage", cfg.StorageDir)

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", h.Health.Check)

	// Admin auth: 10 req/min per IP (stricter)
	auth := api.Group("/auth", strictLimiter())
	auth.Post("/login", h.Auth.Login)
	auth.Post("/refresh", h.Auth.Refresh)
	auth.Post("/logout", h.Auth.Logout)
	auth.Post("/password-reset", h.Auth.SetPassword)

	// Public catalog. A bearer token is optional; admins see hidden rows.
	optional := []fiber.Handler{middleware.OptionalJWT(cfg), middleware.ResolveActor(roles)}
	api.Post("/agencies/search", strictLimiter(), h.Agency.Search)
	api.Post("/jobs/:id/reports", h.Moderation.CreateReport(services.ReportKindJob))
	api.Post("/resources/:id/reports", h.Moderation.CreateReport(services.ReportKindResource))
	api.Post("/submissions/:entity", optional[0], optional[1], h.Content.Create)
	for _, entity := range publicEntities {
		detail := h.Content.Get
		if entity == "civic-organizations" {
			// the public page bundles the org's own content
			detail = h.Civic.PublicProfile
		}
		api.Get("/"+entity, handlers.ForEntity(entity), h.Content.List)
		api.Get("/"+entity+"/categories", handlers.ForEntity(entity), h.Content.Categories)
		api.Get("/"+entity+"/:id", optional[0], optional[1], handlers.ForEntity(entity), detail)
	}

	// Civic organization gateway (session token, not JWT)
	civicAuthGroup := api.Group("/civic/auth", strictLimiter())
	civicAuthGroup.Post("/login", h.Civic.Login)
	civicAuthGroup.Post("/logout", h.Civic.Logout)
	civicAuthGroup.Post("/password-reset/request", h.Civic.RequestPasswordReset)
	civicAuthGroup.Post("/password-reset/confirm", h.Civic.ConfirmPasswordReset)

	civic := api.Group("/civic", middleware.CivicSession(civicAuth))
	civic.All("/content", h.Civic.Content)
	civic.Post("/gallery/upload", h.Civic.UploadGallery)

	// Admin dashboard (JWT + main_admin or sub_admin)
	admin := api.Group("/admin", middleware.JWTProtected(cfg), middleware.ResolveActor(roles), middleware.AdminRequired())
	admin.Get("/me", h.Auth.Me)
	admin.Get("/my-submissions", h.Moderation.MySubmissions)
	admin.Post("/uploads/:bucket", h.Content.Upload)
	admin.Get("/content/:entity", h.Content.AdminList)
	admin.Get("/content/:entity/:id", h.Content.Get)
	admin.Post("/content/:entity", h.Content.Create)
	admin.Put("/content/:entity/:id", h.Content.Update)
	admin.Delete("/content/:entity/:id", h.Content.Delete)

	// Review queues and account management (main_admin only)
	main := admin.Group("", middleware.MainAdminRequired())
	main.Get("/pending", h.Moderation.ListPending)
	main.Get("/pending/:type/:id", h.Moderation.GetPending)
	main.Post("/pending/:type/:id/approve", h.Moderation.Approve)
	main.Post("/pending/:type/:id/reject", h.Moderation.Reject)
	main.Get("/modifications", h.Moderation.ListModifications)
	main.Post("/modifications/:entity/:id/approve", h.Moderation.ApproveModification)
	main.Post("/modifications/:entity/:id/reject", h.Moderation.RejectModification)
	main.Get("/reports", h.Moderation.ListReports)
	main.Delete("/reports/:kind/:id", h.Moderation.DismissReport)
	main.Post("/reports/:kind/:id/remove-content", h.Moderation.RemoveReportedContent)
	main.Post("/invite", h.Auth.Invite)
	main.Post("/agency-documents", h.Agency.ProcessDocument)
}
