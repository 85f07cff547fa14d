package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/orthopulse/growth-platform/internal/accounts"
	"github.com/orthopulse/growth-platform/internal/billing"
	"github.com/orthopulse/growth-platform/internal/domaincheck"
	httpmiddleware "github.com/orthopulse/growth-platform/internal/http/middleware"
	"github.com/orthopulse/growth-platform/internal/notifications"
	"github.com/orthopulse/growth-platform/internal/oauthbridge"
	"github.com/orthopulse/growth-platform/internal/onboarding"
	"github.com/orthopulse/growth-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	// SessionSecret signs the session JWTs accepted on authenticated routes.
	SessionSecret string

	DomainCheck      *domaincheck.Handler
	Onboarding       *onboarding.Handler
	GoogleOAuth      *oauthbridge.Handler
	Accounts         *accounts.Handler
	Notifications    *notifications.Handler
	NotificationsHub *notifications.Hub
	BillingWebhook   *billing.WebhookHandler

	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// DomainCheckRate throttles the public domain availability endpoint.
	// Zero disables the limiter.
	DomainCheckRate  float64
	DomainCheckBurst int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: health, webhooks, metrics, the popup callback, and
	// the domain availability probe used while typing.
	r.Group(func(public chi.Router) {
		public.Get("/health", handleHealth)

		if cfg.DomainCheck != nil {
			domains := public
			if cfg.DomainCheckRate > 0 {
				domains = public.With(httpmiddleware.RateLimit(cfg.DomainCheckRate, cfg.DomainCheckBurst))
			}
			domains.Get("/domains/check", cfg.DomainCheck.CheckDomain)
		}
		if cfg.BillingWebhook != nil {
			public.Post("/webhooks/billing", cfg.BillingWebhook.Handle)
		}
		if cfg.GoogleOAuth != nil {
			// The provider redirects the popup here; it carries state, not a
			// session.
			public.Mount("/oauth", cfg.GoogleOAuth.Routes())
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Authenticated endpoints.
	r.Group(func(authed chi.Router) {
		authed.Use(httpmiddleware.SessionAuth(cfg.SessionSecret))

		if cfg.Accounts != nil {
			authed.Get("/me", cfg.Accounts.Me)
			authed.Put("/me", cfg.Accounts.UpdateMe)
		}
		if cfg.DomainCheck != nil {
			authed.Mount("/domains/live", cfg.DomainCheck.LiveRoutes())
		}
		if cfg.Onboarding != nil {
			authed.Mount("/onboarding", cfg.Onboarding.Routes())
		}
		if cfg.GoogleOAuth != nil {
			authed.Mount("/integrations/google", cfg.GoogleOAuth.AuthedRoutes())
		}
		if cfg.Notifications != nil {
			authed.Route("/orgs/{orgID}", func(org chi.Router) {
				org.Use(requireOrgAccess)
				if cfg.NotificationsHub != nil {
					org.Get("/notifications/stream", handleStream(cfg.NotificationsHub))
				}
				org.Mount("/notifications", cfg.Notifications.Routes())
			})
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleStream(hub *notifications.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hub.HandleStream(chi.URLParam(r, "orgID"), w, r)
	}
}
