package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/newsdesk/internal/ai"
	"github.com/IshaanNene/newsdesk/internal/events"
	"github.com/IshaanNene/newsdesk/internal/observability"
	"github.com/IshaanNene/newsdesk/internal/storage"
	"github.com/IshaanNene/newsdesk/internal/types"
)

// DetailCrawler fetches a single article page.
type DetailCrawler interface {
	CrawlArticleDetail(ctx context.Context, url string) (*types.FetchResult, error)
}

// ContentNormalizer rewrites article markup.
type ContentNormalizer interface {
	Normalize(ctx context.Context, markup string, opts ai.NormalizeOptions) *ai.Result
	Provider() string
	Model() string
}

// ProcessOptions selects the output of ProcessWithAI.
type ProcessOptions struct {
	Language    string
	Format      string
	ExtractOnly bool
}

// Processor turns one article URL into a stored ProcessedArticle.
type Processor struct {
	crawler    DetailCrawler
	normalizer ContentNormalizer
	store      storage.ProcessedStore
	events     events.Publisher
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewProcessor creates a Processor. publisher and metrics may be nil.
func NewProcessor(c DetailCrawler, n ContentNormalizer, store storage.ProcessedStore, publisher events.Publisher, metrics *observability.Metrics, logger *slog.Logger) *Processor {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Processor{
		crawler:    c,
		normalizer: n,
		store:      store,
		events:     publisher,
		metrics:    metrics,
		logger:     logger.With("component", "processor"),
	}
}

// ProcessWithAI returns the processed article for url, creating it if
// needed. existed reports that a stored record was returned unchanged, in
// which case nothing was fetched and the model was not called.
func (p *Processor) ProcessWithAI(ctx context.Context, url string, opts ProcessOptions) (article *types.ProcessedArticle, existed bool, err error) {
	logger := p.logger.With("url", url)

	found, err := p.store.FindByOriginalURL(ctx, url)
	switch {
	case err == nil:
		logger.Info("article already processed", "id", found.ID)
		p.metrics.RecordProcessed("existing")
		return found, true, nil
	case !errors.Is(err, types.ErrNotFound):
		return nil, false, &types.StorageError{Backend: "processed", Err: err}
	}

	start := time.Now()
	page, err := p.crawler.CrawlArticleDetail(ctx, url)
	if err != nil {
		p.metrics.RecordProcessed("fetch_failed")
		return nil, false, err
	}

	res := p.normalizer.Normalize(ctx, page.HTML, ai.NormalizeOptions{
		ExtractOnly: opts.ExtractOnly,
		Language:    opts.Language,
		Format:      opts.Format,
		BaseURL:     url,
	})
	res.Metadata["tier"] = res.Tier

	language, format := opts.Language, opts.Format
	if language == "" {
		language = ai.LanguageVI
	}
	if format == "" {
		format = ai.FormatMarkdown
	}
	article = &types.ProcessedArticle{
		Title:          res.Title,
		Image:          res.Image,
		Content:        res.Content,
		Summary:        res.Summary,
		Tags:           res.Tags,
		OriginalURL:    url,
		Status:         types.StatusProcessed,
		Language:       language,
		Format:         format,
		ProcessingTime: time.Since(start).Milliseconds(),
		AIProvider:     p.normalizer.Provider(),
		AIModel:        p.normalizer.Model(),
		Metadata:       res.Metadata,
	}

	if err := p.store.Create(ctx, article); err != nil {
		if !errors.Is(err, types.ErrAlreadyExists) {
			p.metrics.RecordProcessed("store_failed")
			return nil, false, &types.StorageError{Backend: "processed", Err: err}
		}
		// Lost a race with a concurrent request for the same URL.
		winner, ferr := p.store.FindByOriginalURL(ctx, url)
		if ferr != nil {
			return nil, false, fmt.Errorf("load concurrently processed article: %w", ferr)
		}
		p.metrics.RecordProcessed("existing")
		return winner, true, nil
	}

	p.metrics.RecordProcessed("created")
	logger.Info("article processed",
		"id", article.ID,
		"tier", res.Tier,
		"format", format,
		"language", language,
		"processing_ms", article.ProcessingTime,
	)
	if err := p.events.Publish(ctx, events.NewEvent(events.TypeArticleProcessed, map[string]any{
		"id":          article.ID,
		"originalUrl": url,
		"tier":        res.Tier,
	})); err != nil {
		logger.Warn("event publish failed", "error", err)
	}
	return article, false, nil
}
