package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/uimap/uimap-cli/internal/observability"
	"github.com/uimap/uimap-cli/internal/service"
	"github.com/uimap/uimap-cli/internal/store"
)

func newServeCommand() *cobra.Command {
	var listenAddr string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the locator repository over HTTP.",
		Long: `Serve runs the HTTP API in front of the Postgres store, so crawls
and downstream consumers can read and write locators without direct database
access. Shuts down gracefully on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), listenAddr)
		},
	}

	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "listen address (default from config, :8000)")
	return serveCmd
}

func runServe(ctx context.Context, listenAddr string) error {
	logger := observability.GetLogger()
	defer observability.Sync()

	if listenAddr == "" {
		listenAddr = cfg.API.ListenAddr
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("serve requires database.url to be configured")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("invalid database URL: %w", err)
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	st, err := store.New(ctx, pool, logger)
	if err != nil {
		return err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}

	return service.NewServer(st, listenAddr, logger).Run(ctx)
}
