// Command seed creates initial taskboard accounts and demo data. It is
// intended to be run once against a fresh database, not as part of the
// main server.
//
// Flags:
//
//	--admin-username  superuser account name (default: admin)
//	--admin-password  superuser password (required)
//	--demo            also create a demo user with a sample project
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/heartmarshall/gqlcrud/config"
	"github.com/heartmarshall/gqlcrud/internal/taskboard"
	"github.com/heartmarshall/gqlcrud/postgres"
)

func main() {
	adminUsername := flag.String("admin-username", "admin", "superuser account name")
	adminPassword := flag.String("admin-password", "", "superuser password (required)")
	demo := flag.Bool("demo", false, "also create a demo user with a sample project")
	flag.Parse()

	if *adminPassword == "" {
		log.Fatal("--admin-password is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := taskboard.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	seeder := taskboard.NewSeeder(pool, logger)
	if err := seeder.Run(ctx, taskboard.SeedParams{
		AdminUsername: *adminUsername,
		AdminPassword: *adminPassword,
		Demo:          *demo,
	}); err != nil {
		logger.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("seed completed")
}
