// Package storage persists stored and processed articles.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/newsdesk/internal/config"
	"github.com/IshaanNene/newsdesk/internal/types"
)

// ArticleStore persists ingested articles. URL is unique; inserting an
// existing URL is skipped, never an error.
type ArticleStore interface {
	// SaveMany inserts articles and returns the ones actually written.
	SaveMany(ctx context.Context, articles []*types.StoredArticle) ([]*types.StoredArticle, error)

	// ExistingURLs returns the subset of urls already stored.
	ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error)

	FindByID(ctx context.Context, id string) (*types.StoredArticle, error)
	FindByURL(ctx context.Context, url string) (*types.StoredArticle, error)
	ExistsByURL(ctx context.Context, url string) (bool, error)
	FindPaginated(ctx context.Context, page, limit int) (types.Page[*types.StoredArticle], error)
	FindLatest(ctx context.Context, limit int) ([]*types.StoredArticle, error)

	// FindPendingDetail returns articles whose detail content has not been
	// crawled yet, newest first.
	FindPendingDetail(ctx context.Context, limit int) ([]*types.StoredArticle, error)
	UpdateDetail(ctx context.Context, id, content string, at time.Time) error

	IncrementViewCount(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// ProcessedStore persists AI-normalized articles. OriginalURL is unique.
type ProcessedStore interface {
	// Create inserts a processed article. A duplicate OriginalURL returns
	// types.ErrAlreadyExists.
	Create(ctx context.Context, article *types.ProcessedArticle) error

	FindByID(ctx context.Context, id string) (*types.ProcessedArticle, error)
	FindByOriginalURL(ctx context.Context, url string) (*types.ProcessedArticle, error)
	ExistsByURL(ctx context.Context, url string) (bool, error)
	FindPaginated(ctx context.Context, page, limit int) (types.Page[*types.ProcessedArticle], error)
	FindLatest(ctx context.Context, limit int) ([]*types.ProcessedArticle, error)
	Search(ctx context.Context, query string, limit int) ([]*types.ProcessedArticle, error)
	FindByTags(ctx context.Context, tags []string, limit int) ([]*types.ProcessedArticle, error)
	IncrementViewCount(ctx context.Context, id string) error
	Stats(ctx context.Context) (types.ProcessedStats, error)
}

// Store bundles both collections of one backend.
type Store struct {
	Articles  ArticleStore
	Processed ProcessedStore
	backend   string
	close     func() error
}

// Name returns the backend identifier.
func (s *Store) Name() string { return s.backend }

// Close releases backend resources.
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open connects the backend selected by cfg.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "mongodb":
		m, err := NewMongoStore(ctx, cfg, logger)
		if err != nil {
			return nil, &types.StorageError{Backend: "mongodb", Err: err}
		}
		return &Store{Articles: m.Articles(), Processed: m.Processed(), backend: "mongodb", close: m.Close}, nil
	case "postgres":
		p, err := NewPostgresStore(ctx, cfg, logger)
		if err != nil {
			return nil, &types.StorageError{Backend: "postgres", Err: err}
		}
		return &Store{Articles: p.Articles(), Processed: p.Processed(), backend: "postgres", close: p.Close}, nil
	}
	return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
}

// prepareArticle fills identity and timestamps before insert.
func prepareArticle(a *types.StoredArticle, now time.Time) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	if a.Status == "" {
		a.Status = types.StatusPublished
	}
}

func prepareProcessed(p *types.ProcessedArticle, now time.Time) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if p.Status == "" {
		p.Status = types.StatusProcessed
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
}

// normalizePage clamps pagination arguments and returns the row offset.
func normalizePage(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit, (page - 1) * limit
}
