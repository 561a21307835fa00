package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/uimap/uimap-cli/internal/observability"
	"github.com/uimap/uimap-cli/internal/store"
)

func newExportCommand() *cobra.Command {
	var sessionID string

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export a crawl session's screens and locators as JSON.",
		Long: `Export prints the nested screens-with-locators view of one
session, the same shape served by GET /session/:id. With no --session it
exports the most recent session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), sessionID)
		},
	}

	exportCmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id to export (default: latest)")
	return exportCmd
}

func runExport(ctx context.Context, sessionID string) error {
	logger := observability.GetLogger()
	defer observability.Sync()

	if cfg.Database.URL == "" {
		return fmt.Errorf("export requires database.url to be configured")
	}
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	st, err := store.New(ctx, pool, logger)
	if err != nil {
		return err
	}

	if sessionID == "" {
		sessions, err := st.ListSessions(ctx, 1)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			return fmt.Errorf("no crawl sessions recorded yet")
		}
		sessionID = sessions[0].SessionID
	}

	export, err := st.ExportContext(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("export session %s: %w", sessionID, err)
	}

	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(export)
}
