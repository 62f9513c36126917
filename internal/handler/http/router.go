package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sharp-crm/crm-sub000/internal/domain"
	"github.com/sharp-crm/crm-sub000/internal/service"
	"github.com/sharp-crm/crm-sub000/pkg/health"
	"github.com/sharp-crm/crm-sub000/pkg/middleware"
)

// recordRoutes maps each entity kind to its URL segment.
var recordRoutes = map[domain.RecordKind]string{
	domain.KindLead:       "leads",
	domain.KindDeal:       "deals",
	domain.KindContact:    "contacts",
	domain.KindDealer:     "dealers",
	domain.KindSubsidiary: "subsidiaries",
}

// NewRouter creates a chi router with all routes registered.
func NewRouter(
	userService *service.UserService,
	recordService *service.RecordService,
	authenticator *Authenticator,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig middleware.CORSConfig,
	pprofAllowedCIDRs []string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing("crm-api"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("crm"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Profiling endpoints, reachable only from allowed networks.
	middleware.RegisterPprof(r, pprofAllowedCIDRs, logger)

	authHandler := NewAuthHandler(userService, logger)

	// Auth endpoints (public)
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.RefreshToken)

		// Authenticated auth endpoints
		r.Group(func(r chi.Router) {
			r.Use(authenticator.Middleware)

			r.Post("/change-password", authHandler.ChangePassword)
			r.Get("/profile", authHandler.GetProfile)
			r.Put("/profile", authHandler.UpdateProfile)
		})
	})

	// User administration endpoints (auth required)
	userHandler := NewUserHandler(userService, logger)
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(authenticator.Middleware)

		r.Post("/", userHandler.Create)
		r.Get("/", userHandler.List)
		r.Delete("/{id}", userHandler.SoftDelete)
		r.Post("/{id}/restore", userHandler.Restore)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin))
			r.Delete("/{id}/purge", userHandler.Purge)
		})
	})

	// Tenant-scoped record endpoints, one mount per kind (auth required)
	for kind, segment := range recordRoutes {
		recordHandler := NewRecordHandler(recordService, kind, logger)
		r.Route("/api/v1/"+segment, func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Use(authenticator.Middleware)

			r.Post("/", recordHandler.Create)
			r.Get("/", recordHandler.List)
			r.Get("/{id}", recordHandler.Get)
			r.Patch("/{id}", recordHandler.Update)
			r.Delete("/{id}", recordHandler.SoftDelete)
			r.Post("/{id}/restore", recordHandler.Restore)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin))
				r.Delete("/{id}/purge", recordHandler.Purge)
			})
		})
	}

	return r
}
