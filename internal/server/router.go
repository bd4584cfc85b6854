// Package server assembles the HTTP router and the gRPC server.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	identityhandler "virtual-wallet/backend/internal/identity/handler"
	"virtual-wallet/backend/internal/server/middleware"
	"virtual-wallet/backend/internal/server/respond"
)

// RouterDeps holds the handlers and middleware dependencies for NewRouter. Optional fields may be nil.
type RouterDeps struct {
	// APIPrefix is mounted before every business route, e.g. /api/v1.
	APIPrefix string
	Auth      *identityhandler.AuthHandler
	Profile   *identityhandler.ProfileHandler
	// Health serves GET /health outside the prefix.
	Health http.Handler
	Tokens middleware.AccessValidator
	Logger *zap.Logger
	// Metrics instruments every request. MetricsHandler serves GET /metrics when set.
	Metrics        *middleware.Metrics
	MetricsHandler http.Handler
	TracerProvider trace.TracerProvider
	// AuthLimiter throttles the unauthenticated routes (/auth and /kyc/callback) per client IP.
	AuthLimiter *middleware.IPRateLimiter
	// TrustedProxies are the peers allowed to set X-Forwarded-For and X-Real-IP.
	TrustedProxies middleware.TrustedProxies
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// NewRouter returns the HTTP handler for the API.
func NewRouter(d RouterDeps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	prefix := d.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RealClientIP(d.TrustedProxies))
	if d.TracerProvider != nil {
		r.Use(middleware.Tracing(d.TracerProvider))
	}
	if d.Metrics != nil {
		r.Use(d.Metrics.Handler)
	}
	r.Use(middleware.AccessLog(log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", identityhandler.KYCSignatureHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(chimw.Timeout(timeout))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respond.Detail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respond.Detail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	if d.Health != nil {
		r.Method(http.MethodGet, "/health", d.Health)
	}
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}

	r.Route(prefix, func(api chi.Router) {
		api.Group(func(g chi.Router) {
			if d.AuthLimiter != nil {
				g.Use(d.AuthLimiter.Handler)
			}
			if d.Auth != nil {
				g.Post("/auth/register", d.Auth.Register)
				g.Post("/auth/login", d.Auth.Login)
				g.Post("/auth/mfa/verify", d.Auth.VerifyMFA)
			}
			if d.Profile != nil {
				g.Post("/kyc/callback", d.Profile.KYCCallback)
			}
		})
		if d.Profile != nil {
			api.Group(func(g chi.Router) {
				g.Use(middleware.RequireAccess(d.Tokens))
				g.Get("/users/me", d.Profile.Me)
				g.Put("/users/me/mfa", d.Profile.SetMFA)
			})
		}
	})
	return r
}
