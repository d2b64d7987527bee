// Package cli wires configuration, storage, workers and the HTTP server into
// the todod command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bryan-buckman/todod/internal/config"
	"github.com/bryan-buckman/todod/internal/database"
	"github.com/bryan-buckman/todod/internal/logger"
	"github.com/bryan-buckman/todod/internal/metrics"
	"github.com/bryan-buckman/todod/internal/repository"
	"github.com/bryan-buckman/todod/internal/server"
	"github.com/bryan-buckman/todod/internal/worker"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "todod:", err)
		os.Exit(1)
	}
}

// RootCmd builds the command tree. Running it without a subcommand serves.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "todod",
		Short:         "Todo CRUD service over SQLite or PostgreSQL",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(serveCmd(), migrateCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the todo API on " + config.ListenAddr,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			pool, err := database.Open(cmd.Context(), dbConfig(cfg), log)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			log.Info().Str("backend", pool.DatabaseType()).Msg("schema up to date")
			return pool.Close()
		},
	}
}

func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger.New(cfg.LogLevel, cfg.LogPretty), nil
}

func dbConfig(cfg *config.Config) database.Config {
	return database.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		AcquireTimeout:  cfg.AcquireTimeout,
		BusyTimeout:     cfg.BusyTimeout,
	}
}

func runServe(parent context.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Open(ctx, dbConfig(cfg), log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pool.Close()

	size := cfg.Workers
	if size == 0 {
		size = pool.Capacity()
	}
	workers := worker.New(size, log)

	m := metrics.New()
	m.RegisterDB(pool.DB(), "todos")
	m.RegisterWorkers(workers.Size(), workers.InFlight)

	srv := server.New(repository.New(pool, workers), pool, m, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(config.ListenAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
