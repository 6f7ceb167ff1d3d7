package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/newsdesk/internal/config"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "newsdesk",
		Short: "Newsdesk: news listing ingestion and article extraction service",
		Long: `Newsdesk renders news listing pages, extracts article teasers, stores
new ones, and turns individual articles into clean markdown, HTML, or text.

Commands:
  serve     run the HTTP API and the periodic ingestion scheduler
  crawl     fetch one page and print or save its HTML
  extract   extract article teasers from a listing page
  ingest    run one ingestion cycle against the configured source
  process   normalize one article page with the AI normalizer`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig loads and validates configuration and builds the logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, setupLogger(cfg.Logging), nil
}

// setupLogger creates a structured logger from the logging config.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("newsdesk %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Server:\n")
			fmt.Printf("  Addr:              %s\n", cfg.Server.Addr)
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Type:              %s\n", cfg.Fetcher.Type)
			fmt.Printf("  Default Timeout:   %s\n", cfg.Fetcher.DefaultTimeout)
			fmt.Printf("  Detail Timeout:    %s\n", cfg.Fetcher.DetailTimeout)
			fmt.Printf("  Browser Headless:  %v\n", cfg.Browser.Headless)
			fmt.Printf("\nExtractor:\n")
			fmt.Printf("  Origin:            %s\n", cfg.Extractor.Origin)
			fmt.Printf("  Selectors:         %d configured\n", len(cfg.Extractor.Selectors))
			fmt.Printf("\nScheduler:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Scheduler.Enabled)
			fmt.Printf("  Source URL:        %s\n", cfg.Scheduler.SourceURL)
			fmt.Printf("  Interval:          %s\n", cfg.Scheduler.Interval)
			fmt.Printf("  Max Items:         %d (manual %d)\n", cfg.Scheduler.MaxItems, cfg.Scheduler.ManualMaxItems)
			fmt.Printf("  Alert After:       %d failures\n", cfg.Scheduler.MaxConsecutiveFailures)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:              %s\n", cfg.Storage.Type)
			fmt.Printf("  Database:          %s\n", cfg.Storage.Database)
			fmt.Printf("\nAI:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.AI.Enabled)
			fmt.Printf("  Provider:          %s\n", cfg.AI.Provider)
			fmt.Printf("  Model:             %s\n", cfg.AI.Model)
			fmt.Printf("\nLock:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Lock.Enabled)
			fmt.Printf("  Addr:              %s\n", cfg.Lock.Addr)
			fmt.Printf("\nEvents:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Events.Enabled)
			fmt.Printf("  URL:               %s\n", cfg.Events.URL)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Path:              %s\n", cfg.Metrics.Path)
			return nil
		},
	}
}
