package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uimap/uimap-cli/api/schemas"
	"github.com/uimap/uimap-cli/internal/crawler"
	"github.com/uimap/uimap-cli/internal/observability"
	"github.com/uimap/uimap-cli/internal/service"
	"github.com/uimap/uimap-cli/internal/store"
)

func newCrawlCommand() *cobra.Command {
	var (
		startURL string
		apiBase  string
	)

	crawlCmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a web application and extract element locators.",
		Long: `Crawl drives a headless browser depth-first through the target
application, registers every distinct page it reaches, and persists a stable
locator for each visible interactive element. Results go to Postgres
directly, or through a running uimap serve instance when --api is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd.Context(), startURL, apiBase)
		},
	}

	crawlCmd.Flags().StringVarP(&startURL, "url", "u", "", "start URL (required)")
	crawlCmd.Flags().StringVar(&apiBase, "api", "", "base URL of a uimap serve instance (overrides direct database access)")
	crawlCmd.Flags().IntVar(&cfgOverrideDepth, "depth", 0, "override the maximum crawl depth")
	crawlCmd.Flags().BoolVar(&cfgOverrideHeadful, "headful", false, "run the browser with a visible window")
	_ = crawlCmd.MarkFlagRequired("url")
	return crawlCmd
}

var (
	cfgOverrideDepth   int
	cfgOverrideHeadful bool
)

func runCrawl(ctx context.Context, startURL, apiBase string) error {
	logger := observability.GetLogger()
	defer observability.Sync()

	if cfgOverrideDepth > 0 {
		cfg.Crawler.MaxDepth = cfgOverrideDepth
	}
	if cfgOverrideHeadful {
		cfg.Browser.Headless = false
	}
	if apiBase == "" {
		apiBase = cfg.API.BaseURL
	}

	// Resolve the storage collaborator: remote service or direct Postgres.
	var (
		locatorStore schemas.LocatorStore
		repo         schemas.Repository
	)
	if apiBase != "" {
		client := service.NewClient(apiBase, nil)
		if err := client.Health(ctx); err != nil {
			return fmt.Errorf("uimap serve instance at %s is unreachable: %w", apiBase, err)
		}
		locatorStore = client
		logger.Info("Persisting through API", zap.String("base_url", apiBase))
	} else {
		if cfg.Database.URL == "" {
			return fmt.Errorf("no database.url configured and no --api given")
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
		locatorStore, repo = st, st
	}

	scope, err := crawler.NewDomainScope(startURL, cfg.Crawler.IncludeSubdomains)
	if err != nil {
		return fmt.Errorf("could not establish crawl scope: %w", err)
	}

	var seeds []string
	if cfg.Crawler.SeedSitemaps {
		seeds = crawler.NewSeeder(nil, scope, logger).Seed(ctx, startURL)
	}

	page, err := crawler.NewChromePage(ctx, cfg.Browser, cfg.Crawler.ClickTimeout, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := page.Close(); err != nil {
			logger.Warn("Failed to close browser cleanly", zap.Error(err))
		}
	}()

	var login crawler.LoginStrategy
	if cfg.Auth.Username != "" {
		login = &crawler.FormLoginStrategy{Wait: cfg.Crawler.LoginWait, Logger: logger}
	}

	explorer := crawler.NewExplorer(page, locatorStore, scope, login,
		cfg.Crawler, cfg.Auth, seeds, logger)

	summary, runErr := explorer.Run(ctx, startURL)

	if repo != nil && summary != nil {
		// Detached context so an aborted crawl still gets its record written.
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := repo.SaveSummary(saveCtx, *summary); err != nil {
			logger.Warn("Failed to persist crawl summary", zap.Error(err))
		}
		cancel()
	}

	if summary != nil {
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			logger.Warn("Failed to print crawl summary", zap.Error(err))
		}
	}
	return runErr
}
