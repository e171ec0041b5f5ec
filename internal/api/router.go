// Package api exposes the translator over HTTP
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/web/auth"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/web/middleware"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/web/ratelimit"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/web/response"
)

// Pinger reports database health
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options configures the router
type Options struct {
	Client *sqlbridge.Client
	Logger *zap.Logger
	// DB backs /healthz. Nil reports healthy without checking.
	DB Pinger
	// Auth validates bearer API keys. Nil serves the SQL endpoint unauthenticated
	// with service privileges.
	Auth *auth.AuthService
	// Limiter rate limits the SQL endpoint per API key. Nil disables it.
	Limiter ratelimit.RateLimiter
	// Prefix is prepended to /v1/sql, e.g. "/api"
	Prefix         string
	RequestTimeout time.Duration
}

// NewRouter builds the HTTP handler:
//
//	GET  /healthz
//	POST {prefix}/v1/sql
func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	h := &handler{client: opts.Client, logger: opts.Logger, authEnabled: opts.Auth != nil}

	r := chi.NewRouter()
	r.Use(middleware.NewChain(
		middleware.RequestID(),
		middleware.Logging(opts.Logger, "/healthz"),
		middleware.Recovery(opts.Logger),
		middleware.Timeout(opts.RequestTimeout),
	).Then)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.RenderError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.RenderError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", healthz(opts.DB))

	r.Route(opts.Prefix+"/v1", func(r chi.Router) {
		protected := middleware.NewChain()
		if opts.Auth != nil {
			protected = protected.Use(middleware.Auth(opts.Auth))
		}
		if opts.Limiter != nil {
			protected = protected.Use(middleware.RateLimit(opts.Limiter, middleware.SubjectKeyFunc, opts.Logger))
		}
		r.Use(protected.Then)
		r.Post("/sql", h.execSQL)
	})

	return r
}

func healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				response.RenderError(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
