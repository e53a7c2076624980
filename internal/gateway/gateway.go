// ABOUTME: Gateway orchestrator wiring store, limiter, validator, token manager and HTTP server
// ABOUTME: Owns startup order, route registration and graceful shutdown

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hookgate/hookgate/internal/auth"
	"github.com/hookgate/hookgate/internal/config"
	"github.com/hookgate/hookgate/internal/dispatch"
	"github.com/hookgate/hookgate/internal/ratelimit"
	"github.com/hookgate/hookgate/internal/store"
	"github.com/hookgate/hookgate/internal/token"
	"github.com/hookgate/hookgate/internal/validate"
)

// Gateway is the assembled webhook gateway service.
type Gateway struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      store.Store
	limiter    ratelimit.Limiter
	redis      *ratelimit.RedisLimiter // nil unless backend is redis
	validator  *validate.Validator
	tokens     *token.Manager
	dispatcher *dispatch.Dispatcher
	server     *http.Server
}

// New assembles a gateway from configuration. The returned gateway is
// not serving yet; call Run.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	g := &Gateway{
		cfg:    cfg,
		logger: logger.With("component", "gateway"),
		store:  st,
	}

	switch cfg.RateLimit.Backend {
	case "redis":
		g.redis = ratelimit.NewRedisLimiter(cfg.RateLimit.RedisAddr, cfg.RateLimit.Window)
		g.limiter = g.redis
	default:
		g.limiter = ratelimit.NewStoreLimiter(st, cfg.RateLimit.Window, logger)
	}

	pepper := []byte(cfg.Auth.TokenPepper)
	g.validator = validate.New(st, st, g.limiter, pepper, cfg.Cache.CredentialTTL, logger)
	g.tokens = token.NewManager(st, pepper, g.validator, logger)
	g.dispatcher = dispatch.New(
		dispatch.NewHTTPExecutor(cfg.Executor.BaseURL),
		st,
		cfg.Executor.Timeout,
		logger,
	)

	g.server = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           g.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// routes builds the HTTP mux: the public webhook ingress, the
// JWT-protected management API, health, and optionally metrics.
func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhook/{agent_id}", g.handleWebhook)
	mux.HandleFunc("GET /health", g.handleHealth)

	if g.cfg.Metrics.Enabled {
		mux.Handle("GET "+g.cfg.Metrics.Path, promhttp.Handler())
	}

	api := g.apiRoutes()
	if g.cfg.Auth.JWTSecret != "" {
		mw := auth.NewMiddleware(auth.NewJWTVerifier([]byte(g.cfg.Auth.JWTSecret)), g.logger)
		mux.Handle("/api/", mw.Require(api))
	} else {
		g.logger.Warn("management API auth disabled: auth.jwt_secret not set")
		mux.Handle("/api/", api)
	}

	return mux
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// server fails, then shuts down gracefully.
func (g *Gateway) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("gateway listening",
			"addr", g.cfg.Server.HTTPAddr,
			"ratelimit_backend", g.cfg.RateLimit.Backend,
			"metrics", g.cfg.Metrics.Enabled,
		)
		if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		g.close()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		g.logger.Info("shutting down")
		return g.Shutdown()
	}
}

// Shutdown stops the HTTP server gracefully and releases resources.
func (g *Gateway) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := g.server.Shutdown(ctx)
	g.close()
	return err
}

func (g *Gateway) close() {
	g.validator.Close()
	if g.redis != nil {
		if err := g.redis.Close(); err != nil {
			g.logger.Warn("closing redis limiter", "error", err)
		}
	}
	if err := g.store.Close(); err != nil {
		g.logger.Warn("closing store", "error", err)
	}
}

// handleHealth reports liveness.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
