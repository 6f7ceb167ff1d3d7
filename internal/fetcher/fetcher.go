// Package fetcher retrieves rendered page markup with a headless browser or
// plain HTTP.
package fetcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/IshaanNene/newsdesk/internal/config"
	"github.com/IshaanNene/newsdesk/internal/types"
)

// Fetcher is the interface for all page fetcher implementations.
type Fetcher interface {
	// Fetch retrieves the markup at opts.URL.
	Fetch(ctx context.Context, opts *types.FetchOptions) (*types.FetchResult, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// Defaults fills unset options from configuration.
func Defaults(cfg *config.Config, opts *types.FetchOptions) {
	if opts.Timeout <= 0 {
		opts.Timeout = cfg.Fetcher.DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = cfg.Fetcher.UserAgent
	}
	if opts.MaxScrolls <= 0 {
		opts.MaxScrolls = cfg.Browser.MaxScrolls
	}
}

// FallbackFetcher renders with the browser when asked to and falls back
// once to plain HTTP on any browser failure.
type FallbackFetcher struct {
	browser Fetcher
	http    Fetcher
	cfg     *config.Config
	logger  *slog.Logger
}

// NewFallbackFetcher combines a browser and an HTTP fetcher. browser may be
// nil, in which case every fetch uses HTTP.
func NewFallbackFetcher(cfg *config.Config, browser, http Fetcher, logger *slog.Logger) *FallbackFetcher {
	return &FallbackFetcher{
		browser: browser,
		http:    http,
		cfg:     cfg,
		logger:  logger.With("component", "fetcher"),
	}
}

// New builds the fetcher stack described by cfg.
func New(cfg *config.Config, logger *slog.Logger) (*FallbackFetcher, error) {
	httpFetcher, err := NewHTTPFetcher(cfg, logger)
	if err != nil {
		return nil, err
	}
	var browser Fetcher
	if cfg.Fetcher.Type == "browser" {
		browser = NewBrowserFetcher(cfg, logger)
	}
	return NewFallbackFetcher(cfg, browser, httpFetcher, logger), nil
}

// Fetch implements Fetcher.
func (f *FallbackFetcher) Fetch(ctx context.Context, opts *types.FetchOptions) (*types.FetchResult, error) {
	if opts == nil || opts.URL == "" {
		return nil, &types.FetchError{Code: types.CodeInvalidURL, Err: types.ErrInvalidURL}
	}
	if err := config.ValidateURL(opts.URL); err != nil {
		return nil, &types.FetchError{URL: opts.URL, Code: types.CodeInvalidURL, Err: err}
	}
	Defaults(f.cfg, opts)

	if opts.UseBrowser && f.browser != nil {
		res, err := f.browser.Fetch(ctx, opts)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, Classify(opts.URL, ctx.Err())
		}
		f.logger.Warn("browser fetch failed, falling back to http", "url", opts.URL, "error", err)
	}

	start := time.Now()
	res, err := f.http.Fetch(ctx, opts)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("fetched", "url", opts.URL, "method", res.Method, "status", res.StatusCode, "duration", time.Since(start))
	return res, nil
}

// Close releases both fetchers.
func (f *FallbackFetcher) Close() error {
	var firstErr error
	if f.browser != nil {
		firstErr = f.browser.Close()
	}
	if err := f.http.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Type returns the fetcher type identifier.
func (f *FallbackFetcher) Type() string { return "fallback" }
