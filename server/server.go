// Package server exposes a registry-backed GraphQL schema over HTTP:
// the /graphql endpoint, token issuing, health probes, Prometheus
// metrics, and the middleware stack around them.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/graphql-go/graphql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/gqlcrud/config"
	"github.com/heartmarshall/gqlcrud/perm"
	"github.com/heartmarshall/gqlcrud/server/middleware"
)

// Server is the HTTP server wrapping the GraphQL schema.
type Server struct {
	cfg     config.Config
	log     *slog.Logger
	http    *http.Server
	limiter *middleware.RateLimiter
}

// TokenManager combines issuing and validating access tokens.
// *auth.JWTManager implements it.
type TokenManager interface {
	GenerateAccessToken(id perm.Identity) (string, error)
	ValidateAccessToken(token string) (perm.Identity, error)
}

// New assembles the server: routes, middleware chain and http.Server.
func New(
	cfg config.Config,
	schema graphql.Schema,
	loaders LoaderAttacher,
	tokens TokenManager,
	users Authenticator,
	db dbPinger,
	version string,
	logger *slog.Logger,
) *Server {
	s := &Server{cfg: cfg, log: logger}

	metrics := middleware.NewMetrics(prometheus.DefaultRegisterer)

	mux := http.NewServeMux()

	gql := NewGraphQLHandler(schema, loaders)
	mux.Handle("POST /graphql", gql)
	if cfg.GraphQL.PlaygroundEnabled {
		mux.Handle("GET /graphql", playgroundHandler())
	}

	health := NewHealthHandler(db, version)
	mux.HandleFunc("GET /healthz", health.Live)
	mux.HandleFunc("GET /readyz", health.Ready)
	mux.HandleFunc("GET /health", health.Health)

	token := NewTokenHandler(users, tokens, cfg.Auth.AccessTokenTTL, logger)
	mux.HandleFunc("POST /auth/token", token.Issue)

	mux.Handle("GET /metrics", promhttp.Handler())

	// Auth runs before Logger so request logs carry the user id.
	mws := []middleware.Middleware{
		middleware.RequestID,
		middleware.Recovery(logger),
		metrics.Observe(),
		middleware.CORS(cfg.CORS),
	}
	if !cfg.RateLimit.Disabled {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit.CleanupInterval)
		mws = append(mws, s.limiter.Limit(cfg.RateLimit.PerMinute))
	}
	mws = append(mws, middleware.Auth(tokens), middleware.Logger(logger))

	handler := middleware.Chain(mws...)(mux)

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// Run serves until ctx is canceled, then shuts down gracefully within the
// configured timeout.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("http server listening", slog.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		if s.limiter != nil {
			s.limiter.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()

		s.log.Info("shutting down http server")
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
