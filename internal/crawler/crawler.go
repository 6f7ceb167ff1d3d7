// Package crawler combines the page fetcher and the DOM extractor into the
// crawl operations exposed by the API, the CLI and the scheduler.
package crawler

import (
	"context"
	"log/slog"
	"time"

	"github.com/IshaanNene/newsdesk/internal/config"
	"github.com/IshaanNene/newsdesk/internal/fetcher"
	"github.com/IshaanNene/newsdesk/internal/observability"
	"github.com/IshaanNene/newsdesk/internal/parser"
	"github.com/IshaanNene/newsdesk/internal/types"
)

// PageFetcher retrieves page markup.
type PageFetcher interface {
	Fetch(ctx context.Context, opts *types.FetchOptions) (*types.FetchResult, error)
}

// Service runs crawl and extraction operations.
type Service struct {
	cfg     *config.Config
	fetcher PageFetcher
	teasers *parser.TeaserExtractor
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a crawl Service. metrics may be nil.
func New(cfg *config.Config, f PageFetcher, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		fetcher: f,
		teasers: parser.NewTeaserExtractor(cfg.Extractor, logger),
		metrics: metrics,
		logger:  logger.With("component", "crawler"),
		now:     time.Now,
	}
}

// Selectors returns the configured card selectors in priority order.
func (s *Service) Selectors() []string { return s.teasers.Selectors() }

// CrawlURL fetches the raw markup of one page.
func (s *Service) CrawlURL(ctx context.Context, opts *types.FetchOptions) (*types.FetchResult, error) {
	fetcher.Defaults(s.cfg, opts)
	start := s.now()

	res, err := s.fetcher.Fetch(ctx, opts)
	if err != nil {
		fe := fetcher.Classify(opts.URL, err)
		s.metrics.RecordFetch(methodFor(opts), string(fe.Code), time.Since(start))
		s.logger.Warn("crawl failed", "url", opts.URL, "code", fe.Code, "error", err)
		return nil, fe
	}
	s.metrics.RecordFetch(res.Method, "", time.Since(start))
	s.logger.Info("crawled",
		"url", opts.URL,
		"method", res.Method,
		"status", res.StatusCode,
		"content_length", res.ContentLength,
		"title", res.Title,
	)
	return res, nil
}

// Download is the result of CrawlForDownload.
type Download struct {
	HTML     string
	Filename string
	Result   *types.FetchResult
}

// CrawlForDownload fetches a page and names it for saving to disk.
func (s *Service) CrawlForDownload(ctx context.Context, opts *types.FetchOptions, customName string) (*Download, error) {
	res, err := s.CrawlURL(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Download{
		HTML:     res.HTML,
		Filename: GenerateFilename(opts.URL, res.HTML, customName, s.now()),
		Result:   res,
	}, nil
}

// DetailOptions returns the fetch options used for single-article pages:
// browser rendering with the detail timeout, images awaited and the page
// scrolled so lazy content is present.
func (s *Service) DetailOptions(url string) *types.FetchOptions {
	return &types.FetchOptions{
		URL:                url,
		Timeout:            s.cfg.Fetcher.DetailTimeout,
		UseBrowser:         true,
		WaitForNetworkIdle: true,
		WaitForImages:      true,
		ScrollToBottom:     true,
		MaxScrolls:         s.cfg.Browser.MaxScrolls,
	}
}

// CrawlArticleDetail fetches one article page in detail mode.
func (s *Service) CrawlArticleDetail(ctx context.Context, url string) (*types.FetchResult, error) {
	return s.CrawlURL(ctx, s.DetailOptions(url))
}

// ExtractRequest describes a listing extraction.
type ExtractRequest struct {
	Fetch       types.FetchOptions
	Selector    string
	MaxArticles int
}

// ExtractResult is the outcome of a listing extraction.
type ExtractResult struct {
	URL        string         `json:"url"`
	Teasers    []types.Teaser `json:"articles"`
	Total      int            `json:"totalArticles"`
	Method     string         `json:"method"`
	StatusCode int            `json:"statusCode"`
	CrawlTime  int64          `json:"crawlTime"`
}

// ExtractArticles fetches a listing page and extracts its teasers. An
// empty result is not an error.
func (s *Service) ExtractArticles(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	start := s.now()
	opts := req.Fetch
	res, err := s.CrawlURL(ctx, &opts)
	if err != nil {
		return nil, err
	}

	maxItems := req.MaxArticles
	if maxItems <= 0 {
		maxItems = s.cfg.Extractor.MaxItems
	}
	teasers, err := s.teasers.Extract(res.HTML, req.Selector, maxItems)
	if err != nil {
		return nil, &types.ParseError{URL: opts.URL, Err: err}
	}
	if teasers == nil {
		teasers = []types.Teaser{}
	}

	s.logger.Info("teasers extracted", "url", opts.URL, "count", len(teasers), "selector_override", req.Selector != "")
	return &ExtractResult{
		URL:        opts.URL,
		Teasers:    teasers,
		Total:      len(teasers),
		Method:     res.Method,
		StatusCode: res.StatusCode,
		CrawlTime:  time.Since(start).Milliseconds(),
	}, nil
}

func methodFor(opts *types.FetchOptions) string {
	if opts.UseBrowser {
		return types.MethodBrowser
	}
	return types.MethodHTTP
}
