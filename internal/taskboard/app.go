package taskboard

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/gqlcrud/auth"
	"github.com/heartmarshall/gqlcrud/config"
	"github.com/heartmarshall/gqlcrud/graph"
	"github.com/heartmarshall/gqlcrud/perm"
	"github.com/heartmarshall/gqlcrud/postgres"
	"github.com/heartmarshall/gqlcrud/server"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run is the application entry point: load configuration, connect to
// Postgres, apply migrations, register the models, assemble the schema,
// and serve until ctx is canceled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting taskboard",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
	)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, cfg.Database.DSN, migrationsFS, "migrations"); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("migrations applied")
	}

	grants := perm.NewStore(pool)

	reg, err := NewRegistry(grants)
	if err != nil {
		return fmt.Errorf("register models: %w", err)
	}

	store := postgres.NewStore(pool)
	txm := postgres.NewTxManager(pool)

	builder := graph.New(reg, store, grants, txm, logger, graph.Options{
		SwallowPermissionDenied: cfg.GraphQL.SwallowPermissionDenied,
		MaxListLimit:            cfg.GraphQL.MaxListLimit,
	})
	RegisterOperations(builder, reg, store)
	schema, err := builder.Schema()
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}

	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)
	users := NewUserStore(pool)

	srv := server.New(*cfg, schema, builder, tokens, users, pool, BuildVersion(), logger)
	return srv.Run(ctx)
}
