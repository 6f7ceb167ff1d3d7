// Package engine runs the ingestion cycle and the article workflows built
// on top of the crawler: de-duplication, scheduling, AI processing and
// detail backfill.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/IshaanNene/newsdesk/internal/crawler"
	"github.com/IshaanNene/newsdesk/internal/pipeline"
	"github.com/IshaanNene/newsdesk/internal/types"
)

// TeaserSource extracts teasers from a listing page.
type TeaserSource interface {
	ExtractArticles(ctx context.Context, req crawler.ExtractRequest) (*crawler.ExtractResult, error)
}

// ArticleSink is the part of the article store ingestion writes to.
type ArticleSink interface {
	URLLookup
	SaveMany(ctx context.Context, articles []*types.StoredArticle) ([]*types.StoredArticle, error)
}

// CycleOptions parameterizes one ingestion cycle.
type CycleOptions struct {
	URL        string
	MaxItems   int
	Timeout    time.Duration
	UseBrowser bool
}

// CycleResult counts one cycle's outcome.
type CycleResult struct {
	URL        string        `json:"url"`
	Extracted  int           `json:"extracted"`
	Dropped    int           `json:"dropped"`
	New        int           `json:"new"`
	Duplicates int           `json:"duplicates"`
	Saved      int           `json:"saved"`
	Duration   time.Duration `json:"duration"`
}

// Ingestor runs extract, clean, filter, persist for one listing page.
type Ingestor struct {
	source   TeaserSource
	pipeline *pipeline.Pipeline
	store    ArticleSink
	logger   *slog.Logger
	now      func() time.Time
}

// NewIngestor creates an Ingestor.
func NewIngestor(source TeaserSource, p *pipeline.Pipeline, store ArticleSink, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		source:   source,
		pipeline: p,
		store:    store,
		logger:   logger.With("component", "ingestor"),
		now:      time.Now,
	}
}

// Run executes one cycle. Running it twice over the same page stores
// nothing the second time. A page yielding no teasers is a successful cycle
// with zero counts.
func (in *Ingestor) Run(ctx context.Context, opts CycleOptions) (*CycleResult, error) {
	start := in.now()
	res := &CycleResult{URL: opts.URL}

	extracted, err := in.source.ExtractArticles(ctx, crawler.ExtractRequest{
		Fetch: types.FetchOptions{
			URL:                opts.URL,
			Timeout:            opts.Timeout,
			UseBrowser:         opts.UseBrowser,
			WaitForNetworkIdle: true,
			WaitForImages:      true,
			ScrollToBottom:     true,
		},
		MaxArticles: opts.MaxItems,
	})
	if err != nil {
		return res, err
	}
	res.Extracted = len(extracted.Teasers)
	if res.Extracted == 0 {
		res.Duration = time.Since(start)
		in.logger.Warn("no teasers extracted, zero new articles",
			"url", opts.URL,
			"extracted", 0,
			"new", 0,
			"saved", 0,
			"duration", res.Duration,
		)
		return res, nil
	}

	cleaned, dropped := in.pipeline.ProcessAll(extracted.Teasers)
	res.Dropped = dropped

	fresh, stats, err := FilterNew(ctx, cleaned, in.store)
	if err != nil {
		return res, &types.StorageError{Backend: "articles", Err: err}
	}
	res.Dropped += stats.MissingURL
	res.New = stats.New
	res.Duplicates = stats.Duplicates()

	if len(fresh) > 0 {
		now := in.now()
		source := hostOf(opts.URL)
		rows := make([]*types.StoredArticle, len(fresh))
		for i, t := range fresh {
			rows[i] = types.NewStoredArticle(t, source, now)
		}
		saved, err := in.store.SaveMany(ctx, rows)
		res.Saved = len(saved)
		if err != nil {
			return res, &types.StorageError{Backend: "articles", Err: err}
		}
		// Rows lost to a concurrent insert are duplicates too.
		res.Duplicates += len(rows) - len(saved)
	}

	res.Duration = time.Since(start)
	in.logger.Info("ingestion cycle complete",
		"url", opts.URL,
		"extracted", res.Extracted,
		"dropped", res.Dropped,
		"new", res.New,
		"duplicates", res.Duplicates,
		"saved", res.Saved,
		"duration", res.Duration,
	)
	return res, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

// errorCode labels err for logs and events.
func errorCode(err error) string {
	var fe *types.FetchError
	switch {
	case errors.As(err, &fe):
		return string(fe.Code)
	case errors.Is(err, types.ErrCycleLocked):
		return "locked"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		var se *types.StorageError
		if errors.As(err, &se) {
			return "storage"
		}
		return "internal"
	}
}
