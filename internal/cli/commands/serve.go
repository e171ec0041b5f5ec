package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Julianb233/sierra-fred-carey-sub003/internal/api"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/cli/config"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/web/auth"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/web/ratelimit"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/web/server"
)

var servePortFlag int

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the SQL endpoint over HTTP",
		Long: `Start the HTTP API:

  GET  /healthz
  POST {server.api_prefix}/v1/sql   {"query": "...", "params": [...]}

Requests carry a bearer API key signed with auth.jwt_secret. Keys with the
anon role may only run SELECT statements.`,
		RunE: runServe,
	}

	cmd.Flags().IntVarP(&servePortFlag, "port", "P", 0, "Port to listen on (overrides server.port)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	cfg := a.cfg
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePortFlag
	}

	opts := api.Options{
		Client:         a.client,
		Logger:         a.logger,
		DB:             a.db,
		Prefix:         cfg.Server.APIPrefix,
		RequestTimeout: cfg.Server.RequestTimeout,
	}

	if cfg.Auth.JWTSecret != "" {
		opts.Auth = auth.NewAuthService(cfg.Auth.JWTSecret, 0)
	} else {
		a.logger.Warn("auth.jwt_secret is not set; the SQL endpoint accepts unauthenticated requests")
	}

	var hooks []server.ShutdownHook
	if cfg.RateLimit.Enabled {
		limiter, hook := newLimiter(ctx, cfg.RateLimit, a.logger)
		opts.Limiter = limiter
		hooks = append(hooks, hook)
	}

	srv, err := server.New(&server.Config{
		Address:           cfg.Server.Addr(),
		Handler:           api.NewRouter(opts),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Database: &server.DatabaseConfig{
			DB:              a.db,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: 5 * time.Minute,
		},
	})
	if err != nil {
		a.Close()
		return err
	}

	gs := server.NewGracefulShutdown(srv, cfg.Server.ShutdownTimeout, a.logger)
	for _, hook := range hooks {
		gs.RegisterHook(hook)
	}
	gs.RegisterHook(func(context.Context) error { return a.Close() })

	color.New(color.FgGreen, color.Bold).Fprintf(cmd.ErrOrStderr(), "✓ sqlbridge listening on http://%s%s/v1/sql\n",
		cfg.Server.Addr(), cfg.Server.APIPrefix)
	return gs.Run(ctx)
}

// newLimiter prefers the shared Redis limiter and falls back to an in-process
// token bucket when Redis is unreachable
func newLimiter(ctx context.Context, cfg config.RateLimitConfig, logger *zap.Logger) (ratelimit.RateLimiter, server.ShutdownHook) {
	client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
	if err == nil {
		limiter, lerr := ratelimit.NewRedisRateLimiter(ratelimit.RedisRateLimiterConfig{
			Client: client,
			Limit:  cfg.Limit,
			Window: cfg.Window,
		})
		if lerr == nil {
			return limiter, closeRedis(client)
		}
		client.Close()
		err = lerr
	}

	logger.Warn("redis rate limiter unavailable, limiting per process", zap.Error(err))
	bucket := ratelimit.NewTokenBucketWithConfig(ratelimit.TokenBucketConfig{
		Capacity:        cfg.Limit,
		RefillRate:      cfg.Window,
		CleanupInterval: cfg.Window,
	})
	return bucket, func(context.Context) error { return bucket.Close() }
}

func closeRedis(client *redis.Client) server.ShutdownHook {
	return func(context.Context) error { return client.Close() }
}
