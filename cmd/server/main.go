// Command server runs the taskboard GraphQL server.
//
// Configuration loads from CONFIG_PATH (YAML) and environment variables;
// see the config package for the full list. The server stops gracefully
// on SIGINT/SIGTERM.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/heartmarshall/gqlcrud/internal/taskboard"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := taskboard.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
