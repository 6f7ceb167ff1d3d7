package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/newsdesk/internal/config"
	"github.com/IshaanNene/newsdesk/internal/crawler"
	"github.com/IshaanNene/newsdesk/internal/engine"
	"github.com/IshaanNene/newsdesk/internal/fetcher"
	"github.com/IshaanNene/newsdesk/internal/storage"
	"github.com/IshaanNene/newsdesk/internal/types"
)

var (
	useBrowser   bool
	timeout      time.Duration
	outputPath   string
	outputFormat string
	maxArticles  int
	language     string
	format       string
	extractOnly  bool
)

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url]",
		Short: "Fetch a page and print or save its rendered HTML",
		Args:  cobra.ExactArgs(1),
		RunE:  runCrawl,
	}
	cmd.Flags().BoolVar(&useBrowser, "browser", true, "render with the headless browser")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "fetch timeout (0 = fetcher.default_timeout)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "directory to save the page into (default: stdout)")
	return cmd
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.ValidateURL(args[0]); err != nil {
		return fmt.Errorf("invalid URL %q: %w", args[0], err)
	}

	f, err := fetcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer f.Close()
	svc := crawler.New(cfg, f, nil, logger)

	opts := &types.FetchOptions{URL: args[0], UseBrowser: useBrowser, Timeout: timeout}
	dl, err := svc.CrawlForDownload(cmd.Context(), opts, "")
	if err != nil {
		return err
	}

	if outputPath == "" {
		fmt.Print(dl.HTML)
		return nil
	}
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outputPath, dl.Filename)
	if err := os.WriteFile(path, []byte(dl.HTML), 0o644); err != nil {
		return fmt.Errorf("write page: %w", err)
	}
	fmt.Printf("Saved %s (%d bytes, %s, %s)\n", path, len(dl.HTML), dl.Result.Method, dl.Result.Duration.Round(time.Millisecond))
	return nil
}

// extractCmd creates the "extract" subcommand.
func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [url]",
		Short: "Extract article teasers from a listing page",
		Args:  cobra.ExactArgs(1),
		RunE:  runExtract,
	}
	cmd.Flags().BoolVar(&useBrowser, "browser", true, "render with the headless browser")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "fetch timeout (0 = fetcher.default_timeout)")
	cmd.Flags().IntVarP(&maxArticles, "max", "m", 20, "maximum teasers to extract")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "directory to export teasers into (default: stdout as JSON)")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "export format: json, jsonl, csv")
	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.ValidateURL(args[0]); err != nil {
		return fmt.Errorf("invalid URL %q: %w", args[0], err)
	}

	f, err := fetcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer f.Close()
	svc := crawler.New(cfg, f, nil, logger)

	res, err := svc.ExtractArticles(cmd.Context(), crawler.ExtractRequest{
		Fetch: types.FetchOptions{
			URL:                args[0],
			UseBrowser:         useBrowser,
			Timeout:            timeout,
			WaitForNetworkIdle: true,
			WaitForImages:      true,
			ScrollToBottom:     true,
		},
		MaxArticles: maxArticles,
	})
	if err != nil {
		return err
	}

	if outputPath == "" {
		return printJSON(res)
	}

	exp, err := storage.NewExporter(outputFormat, outputPath, logger)
	if err != nil {
		return err
	}
	if err := exp.Write(res.Teasers); err != nil {
		exp.Close()
		return fmt.Errorf("export teasers: %w", err)
	}
	if err := exp.Close(); err != nil {
		return fmt.Errorf("export teasers: %w", err)
	}
	fmt.Printf("Extracted %d articles from %s into %s (%s)\n", res.Total, res.URL, outputPath, exp.Name())
	return nil
}

// ingestCmd creates the "ingest" subcommand.
func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion cycle against scheduler.source_url",
		Args:  cobra.NoArgs,
		RunE:  runIngest,
	}
	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := buildApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.scheduler.RunCycle(cmd.Context(), engine.TriggerManual)
	if res != nil {
		fmt.Printf("Source:     %s\n", res.URL)
		fmt.Printf("Extracted:  %d (%d dropped)\n", res.Extracted, res.Dropped)
		fmt.Printf("New:        %d (%d duplicates)\n", res.New, res.Duplicates)
		fmt.Printf("Saved:      %d in %s\n", res.Saved, res.Duration.Round(time.Millisecond))
	}
	return err
}

// processCmd creates the "process" subcommand.
func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process [url]",
		Short: "Crawl an article page and normalize it into clean content",
		Args:  cobra.ExactArgs(1),
		RunE:  runProcess,
	}
	cmd.Flags().StringVar(&language, "language", "vi", "output language: vi, en")
	cmd.Flags().StringVar(&format, "format", "markdown", "output format: markdown, html, text")
	cmd.Flags().BoolVar(&extractOnly, "extract-only", false, "skip the LLM and use basic extraction")
	return cmd
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.ValidateURL(args[0]); err != nil {
		return fmt.Errorf("invalid URL %q: %w", args[0], err)
	}

	a, err := buildApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	article, existed, err := a.processor.ProcessWithAI(cmd.Context(), args[0], engine.ProcessOptions{
		Language:    language,
		Format:      format,
		ExtractOnly: extractOnly,
	})
	if err != nil {
		return err
	}
	if existed {
		logger.Info("article already processed", "id", article.ID)
	}
	return printJSON(article)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
