package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront-validation/internal/proxy"
	"github.com/utafrali/storefront-validation/internal/session"
	"github.com/utafrali/storefront-validation/pkg/health"
	"github.com/utafrali/storefront-validation/pkg/middleware"
)

const serviceName = "validation"

// countriesMaxAge is the client cache lifetime of the country list in seconds.
const countriesMaxAge = 3600

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	CORSAllowedOrigins []string
	RateLimit          middleware.RateLimitConfig
	PprofAllowedCIDRs  []string
}

// NewRouter creates a chi router with all validation service routes
// registered. ctx bounds background work of the middleware.
func NewRouter(
	ctx context.Context,
	cfg RouterConfig,
	proxyService *proxy.Service,
	sessions *session.Manager,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	cors := middleware.DefaultCORSConfig()
	if len(cfg.CORSAllowedOrigins) > 0 {
		cors.AllowedOrigins = cfg.CORSAllowedOrigins
	}
	cors.AllowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cors))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	proxyHandler := NewProxyHandler(proxyService, logger)
	sessionHandler := NewSessionHandler(sessions, proxyService, logger)

	// Provider proxy endpoints, limited per client IP.
	r.Route("/api/v1/loqate", func(r chi.Router) {
		r.Use(middleware.RateLimit(ctx, cfg.RateLimit, logger))
		r.Use(ContentTypeJSON)

		r.Get("/addresses", proxyHandler.LookupAddresses)
		r.Post("/verify", proxyHandler.VerifyAddress)
		r.Get("/country-by-ip", proxyHandler.CountryByIP)
		r.Get("/email", proxyHandler.ValidateEmail)
		r.Get("/phone", proxyHandler.ValidatePhone)
		r.Get("/settings", proxyHandler.GetSettings)
		r.Get("/restricted-countries", proxyHandler.GetRestrictedCountries)
	})

	r.With(middleware.CacheControl(countriesMaxAge)).Get("/api/v1/countries", proxyHandler.ListCountries)

	// Validation session endpoints
	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", sessionHandler.CreateSession)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", sessionHandler.GetSession)
			r.Delete("/", sessionHandler.DeleteSession)

			r.Patch("/draft", sessionHandler.UpdateDraft)
			r.Put("/country", sessionHandler.ChangeCountry)
			r.Post("/suggestions/{suggestionId}/select", sessionHandler.SelectSuggestion)
			r.Put("/surface", sessionHandler.ApplySurface)
			r.Patch("/enablement", sessionHandler.UpdateEnablement)

			r.Post("/verify", sessionHandler.Verify)
			r.Post("/submit", sessionHandler.Submit)
			r.Post("/bypass/{action}", sessionHandler.Bypass)

			r.Post("/email/validate", sessionHandler.ValidateEmail)
			r.Post("/phone/validate", sessionHandler.ValidatePhone)

			r.Get("/verifications", sessionHandler.ListVerifications)
		})
	})

	return r
}
