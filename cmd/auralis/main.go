// Command auralis runs the recommendation engine API server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/auralis-fm/auralis/internal/config"
	"github.com/auralis-fm/auralis/internal/db"
	"github.com/auralis-fm/auralis/internal/recs"
	"github.com/auralis-fm/auralis/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	// Apply the configured listen-event retention policy once at startup.
	if cfg.Retention.ListenEvents > 0 {
		cutoff := time.Now().Add(-cfg.Retention.ListenEvents)
		pruned, err := database.Signals().PruneListensBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("pruning listen events: %w", err)
		}
		logger.Info().Int64("pruned", pruned).Time("cutoff", cutoff).Msg("applied listen-event retention")
	}

	engine := recs.New(cfg, logger, database.Catalog(), database.Signals(), database.Artifacts())

	server := web.NewServer(web.ServerConfig{
		Addr:   cfg.Addr,
		Engine: engine,
		Logger: logger,
	})
	return server.Run()
}
