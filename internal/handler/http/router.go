package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SultanSulimanSerj/portal/internal/domain"
	"github.com/SultanSulimanSerj/portal/internal/tenant"
	"github.com/SultanSulimanSerj/portal/pkg/health"
	"github.com/SultanSulimanSerj/portal/pkg/middleware"
)

const serviceName = "portal"

// RouterDeps collects everything the HTTP surface depends on.
type RouterDeps struct {
	Auth      AuthService
	Guard     *tenant.Guard
	Companies CompanyReader
	Members   MemberReader
	AuditLogs AuditReader
	Health    *health.Handler
	Logger    *slog.Logger
	Cookie    CookieConfig
	CORS      middleware.CORSConfig
	// PprofCIDRs enables /debug/pprof for the listed networks when non-empty.
	PprofCIDRs []string
}

// NewRouter creates a chi router with all routes registered.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(deps.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(RequestMetadata)

	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if len(deps.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, deps.PprofCIDRs, logger)
	}

	authHandler := NewAuthHandler(deps.Auth, deps.Cookie, logger)
	requireAuth := tenant.RequireAuth(deps.Auth, logger)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore)

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
		r.Post("/verify-email", authHandler.VerifyEmail)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/reset-password", authHandler.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/me", authHandler.Me)
			r.Post("/logout-all", authHandler.LogoutAll)
			r.Post("/change-password", authHandler.ChangePassword)
		})
	})

	companyHandler := NewCompanyHandler(deps.Companies, deps.Members, deps.AuditLogs, logger)

	r.Route("/api/v1/company", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(tenant.RequireTenant(deps.Guard, logger))

		r.Get("/", companyHandler.Get)
		r.Get("/members", companyHandler.ListMembers)
		r.Get("/members/{id}", companyHandler.GetMember)

		r.With(tenant.RequireAnyRole(logger, domain.RoleOwner, domain.RoleAdmin)).
			Get("/audit-logs", companyHandler.ListAuditLogs)
	})

	return r
}
