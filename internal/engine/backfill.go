package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/newsdesk/internal/parser"
	"github.com/IshaanNene/newsdesk/internal/types"
)

const backfillConcurrency = 2

// DetailStore is the part of the article store the backfill touches.
type DetailStore interface {
	FindByID(ctx context.Context, id string) (*types.StoredArticle, error)
	FindPendingDetail(ctx context.Context, limit int) ([]*types.StoredArticle, error)
	UpdateDetail(ctx context.Context, id, content string, at time.Time) error
}

// BackfillFailure records one article the backfill could not complete.
type BackfillFailure struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Error string `json:"error"`
}

// BackfillResult summarizes a batch backfill.
type BackfillResult struct {
	Requested int               `json:"requested"`
	Succeeded int               `json:"succeeded"`
	Failed    []BackfillFailure `json:"failed"`
}

// Backfiller fills StoredArticle.DetailContent from the article page.
type Backfiller struct {
	crawler DetailCrawler
	store   DetailStore
	logger  *slog.Logger
	now     func() time.Time
}

// NewBackfiller creates a Backfiller.
func NewBackfiller(c DetailCrawler, store DetailStore, logger *slog.Logger) *Backfiller {
	return &Backfiller{
		crawler: c,
		store:   store,
		logger:  logger.With("component", "backfill"),
		now:     time.Now,
	}
}

// CrawlDetail backfills one article and returns the updated row.
func (b *Backfiller) CrawlDetail(ctx context.Context, id string) (*types.StoredArticle, error) {
	article, err := b.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.fill(ctx, article); err != nil {
		return nil, err
	}
	return b.store.FindByID(ctx, id)
}

// CrawlPending backfills up to limit articles lacking detail content.
// Individual failures are reported, not returned.
func (b *Backfiller) CrawlPending(ctx context.Context, limit int) (*BackfillResult, error) {
	pending, err := b.store.FindPendingDetail(ctx, limit)
	if err != nil {
		return nil, &types.StorageError{Backend: "articles", Err: err}
	}

	res := &BackfillResult{Requested: len(pending), Failed: []BackfillFailure{}}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(backfillConcurrency)
	for _, a := range pending {
		g.Go(func() error {
			err := b.fill(ctx, a)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed = append(res.Failed, BackfillFailure{ID: a.ID, URL: a.URL, Error: err.Error()})
				return nil
			}
			res.Succeeded++
			return nil
		})
	}
	_ = g.Wait()

	b.logger.Info("detail backfill complete", "requested", res.Requested, "succeeded", res.Succeeded, "failed", len(res.Failed))
	return res, nil
}

func (b *Backfiller) fill(ctx context.Context, a *types.StoredArticle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	page, err := b.crawler.CrawlArticleDetail(ctx, a.URL)
	if err != nil {
		b.logger.Warn("detail crawl failed", "id", a.ID, "url", a.URL, "error", err)
		return err
	}

	content := parser.ExtractMainContent(page.HTML)
	if content == "" {
		content = parser.BodyText(page.HTML)
	}
	if content == "" {
		return &types.ParseError{URL: a.URL, Selector: "main content", Err: types.ErrEmptyResponse}
	}

	if err := b.store.UpdateDetail(ctx, a.ID, content, b.now()); err != nil {
		return fmt.Errorf("update detail %s: %w", a.ID, err)
	}
	b.logger.Debug("detail content stored", "id", a.ID, "length", len(content))
	return nil
}
