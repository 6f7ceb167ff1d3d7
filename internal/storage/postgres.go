package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/IshaanNene/newsdesk/internal/config"
	"github.com/IshaanNene/newsdesk/internal/types"
)

// DB is the subset of a pgx pool used by the postgres store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS articles (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	content           TEXT NOT NULL DEFAULT '',
	detail_content    TEXT NOT NULL DEFAULT '',
	is_crawled_detail BOOLEAN NOT NULL DEFAULT FALSE,
	crawled_detail_at TIMESTAMPTZ,
	image             TEXT NOT NULL DEFAULT '',
	url               TEXT NOT NULL UNIQUE,
	date              TEXT NOT NULL DEFAULT '',
	category          TEXT NOT NULL DEFAULT '',
	source            TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'published',
	view_count        BIGINT NOT NULL DEFAULT 0,
	metadata          JSONB,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_articles_title ON articles (title);
CREATE INDEX IF NOT EXISTS idx_articles_date ON articles (date);
CREATE INDEX IF NOT EXISTS idx_articles_status ON articles (status);
CREATE INDEX IF NOT EXISTS idx_articles_detail ON articles (is_crawled_detail);
CREATE INDEX IF NOT EXISTS idx_articles_created ON articles (created_at DESC);

CREATE TABLE IF NOT EXISTS processed_articles (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	image           TEXT NOT NULL DEFAULT '',
	content         TEXT NOT NULL,
	summary         TEXT NOT NULL DEFAULT '',
	tags            TEXT[] NOT NULL DEFAULT '{}',
	original_url    TEXT NOT NULL UNIQUE,
	status          TEXT NOT NULL DEFAULT 'processed',
	language        TEXT NOT NULL DEFAULT 'vi',
	format          TEXT NOT NULL DEFAULT 'markdown',
	processing_time BIGINT NOT NULL DEFAULT 0,
	ai_provider     TEXT NOT NULL DEFAULT '',
	ai_model        TEXT NOT NULL DEFAULT '',
	view_count      BIGINT NOT NULL DEFAULT 0,
	metadata        JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_processed_title ON processed_articles (title);
CREATE INDEX IF NOT EXISTS idx_processed_status ON processed_articles (status);
CREATE INDEX IF NOT EXISTS idx_processed_created ON processed_articles (created_at DESC);
`

// PostgresStore holds the pool and both tables.
type PostgresStore struct {
	pool      *pgxpool.Pool
	articles  *PostgresArticles
	processed *PostgresProcessed
	logger    *slog.Logger
}

// NewPostgresStore connects to PostgreSQL and bootstraps the schema.
func NewPostgresStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	s := &PostgresStore{
		pool:      pool,
		articles:  NewPostgresArticles(pool),
		processed: NewPostgresProcessed(pool),
		logger:    logger.With("component", "postgres_storage"),
	}
	s.logger.Info("postgres storage ready")
	return s, nil
}

// Articles returns the stored-article table.
func (s *PostgresStore) Articles() *PostgresArticles { return s.articles }

// Processed returns the processed-article table.
func (s *PostgresStore) Processed() *PostgresProcessed { return s.processed }

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalMetadata(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func rowNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return types.ErrNotFound
	}
	return err
}

// PostgresArticles is an ArticleStore backed by the articles table.
type PostgresArticles struct {
	db DB
}

// NewPostgresArticles wraps a pool or mock.
func NewPostgresArticles(db DB) *PostgresArticles { return &PostgresArticles{db: db} }

const articleColumns = `id, title, content, detail_content, is_crawled_detail, crawled_detail_at, image, url, date, category, source, status, view_count, metadata, created_at, updated_at`

const insertArticleSQL = `INSERT INTO articles (` + articleColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (url) DO NOTHING
RETURNING id`

func scanArticle(row pgx.Row) (*types.StoredArticle, error) {
	var a types.StoredArticle
	var meta []byte
	err := row.Scan(&a.ID, &a.Title, &a.Content, &a.DetailContent, &a.IsCrawledDetail, &a.CrawledDetailAt,
		&a.Image, &a.URL, &a.Date, &a.Category, &a.Source, &a.Status, &a.ViewCount, &meta, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if a.Metadata, err = unmarshalMetadata(meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &a, nil
}

func collectArticles(rows pgx.Rows) ([]*types.StoredArticle, error) {
	defer rows.Close()
	out := []*types.StoredArticle{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SaveMany inserts each article with ON CONFLICT DO NOTHING; a conflict
// yields no returned row and the article is left out of the result.
func (p *PostgresArticles) SaveMany(ctx context.Context, articles []*types.StoredArticle) ([]*types.StoredArticle, error) {
	now := time.Now()
	saved := make([]*types.StoredArticle, 0, len(articles))
	for _, a := range articles {
		prepareArticle(a, now)
		meta, err := marshalMetadata(a.Metadata)
		if err != nil {
			return saved, fmt.Errorf("encode metadata: %w", err)
		}
		var id string
		err = p.db.QueryRow(ctx, insertArticleSQL,
			a.ID, a.Title, a.Content, a.DetailContent, a.IsCrawledDetail, a.CrawledDetailAt,
			a.Image, a.URL, a.Date, a.Category, a.Source, a.Status, a.ViewCount, meta, a.CreatedAt, a.UpdatedAt,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return saved, fmt.Errorf("insert article %s: %w", a.URL, err)
		}
		saved = append(saved, a)
	}
	return saved, nil
}

func (p *PostgresArticles) ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(urls) == 0 {
		return out, nil
	}
	rows, err := p.db.Query(ctx, `SELECT url FROM articles WHERE url = ANY($1)`, urls)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out[u] = true
	}
	return out, rows.Err()
}

func (p *PostgresArticles) FindByID(ctx context.Context, id string) (*types.StoredArticle, error) {
	a, err := scanArticle(p.db.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id))
	return a, rowNotFound(err)
}

func (p *PostgresArticles) FindByURL(ctx context.Context, url string) (*types.StoredArticle, error) {
	a, err := scanArticle(p.db.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE url = $1`, url))
	return a, rowNotFound(err)
}

func (p *PostgresArticles) ExistsByURL(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM articles WHERE url = $1)`, url).Scan(&exists)
	return exists, err
}

func (p *PostgresArticles) FindPaginated(ctx context.Context, page, limit int) (types.Page[*types.StoredArticle], error) {
	page, limit, offset := normalizePage(page, limit)
	result := types.Page[*types.StoredArticle]{Page: page, Limit: limit}

	if err := p.db.QueryRow(ctx, `SELECT count(*) FROM articles`).Scan(&result.Total); err != nil {
		return result, err
	}
	rows, err := p.db.Query(ctx, `SELECT `+articleColumns+` FROM articles ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return result, err
	}
	result.Items, err = collectArticles(rows)
	return result, err
}

func (p *PostgresArticles) FindLatest(ctx context.Context, limit int) ([]*types.StoredArticle, error) {
	rows, err := p.db.Query(ctx, `SELECT `+articleColumns+` FROM articles ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectArticles(rows)
}

func (p *PostgresArticles) FindPendingDetail(ctx context.Context, limit int) ([]*types.StoredArticle, error) {
	rows, err := p.db.Query(ctx, `SELECT `+articleColumns+` FROM articles WHERE is_crawled_detail = FALSE ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectArticles(rows)
}

func (p *PostgresArticles) UpdateDetail(ctx context.Context, id, content string, at time.Time) error {
	tag, err := p.db.Exec(ctx,
		`UPDATE articles SET detail_content = $2, is_crawled_detail = TRUE, crawled_detail_at = $3, updated_at = $3 WHERE id = $1`,
		id, content, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (p *PostgresArticles) IncrementViewCount(ctx context.Context, id string) error {
	tag, err := p.db.Exec(ctx, `UPDATE articles SET view_count = view_count + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (p *PostgresArticles) Count(ctx context.Context) (int64, error) {
	var n int64
	err := p.db.QueryRow(ctx, `SELECT count(*) FROM articles`).Scan(&n)
	return n, err
}

// PostgresProcessed is a ProcessedStore backed by the processed_articles table.
type PostgresProcessed struct {
	db DB
}

// NewPostgresProcessed wraps a pool or mock.
func NewPostgresProcessed(db DB) *PostgresProcessed { return &PostgresProcessed{db: db} }

const processedColumns = `id, title, image, content, summary, tags, original_url, status, language, format, processing_time, ai_provider, ai_model, view_count, metadata, created_at, updated_at`

func scanProcessed(row pgx.Row) (*types.ProcessedArticle, error) {
	var a types.ProcessedArticle
	var meta []byte
	err := row.Scan(&a.ID, &a.Title, &a.Image, &a.Content, &a.Summary, &a.Tags, &a.OriginalURL, &a.Status,
		&a.Language, &a.Format, &a.ProcessingTime, &a.AIProvider, &a.AIModel, &a.ViewCount, &meta, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if a.Metadata, err = unmarshalMetadata(meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &a, nil
}

func collectProcessed(rows pgx.Rows) ([]*types.ProcessedArticle, error) {
	defer rows.Close()
	out := []*types.ProcessedArticle{}
	for rows.Next() {
		a, err := scanProcessed(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *PostgresProcessed) Create(ctx context.Context, a *types.ProcessedArticle) error {
	prepareProcessed(a, time.Now())
	meta, err := marshalMetadata(a.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	tag, err := p.db.Exec(ctx, `INSERT INTO processed_articles (`+processedColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (original_url) DO NOTHING`,
		a.ID, a.Title, a.Image, a.Content, a.Summary, a.Tags, a.OriginalURL, a.Status, a.Language, a.Format,
		a.ProcessingTime, a.AIProvider, a.AIModel, a.ViewCount, meta, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return types.ErrAlreadyExists
	}
	return nil
}

func (p *PostgresProcessed) FindByID(ctx context.Context, id string) (*types.ProcessedArticle, error) {
	a, err := scanProcessed(p.db.QueryRow(ctx, `SELECT `+processedColumns+` FROM processed_articles WHERE id = $1`, id))
	return a, rowNotFound(err)
}

func (p *PostgresProcessed) FindByOriginalURL(ctx context.Context, url string) (*types.ProcessedArticle, error) {
	a, err := scanProcessed(p.db.QueryRow(ctx, `SELECT `+processedColumns+` FROM processed_articles WHERE original_url = $1`, url))
	return a, rowNotFound(err)
}

func (p *PostgresProcessed) ExistsByURL(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM processed_articles WHERE original_url = $1)`, url).Scan(&exists)
	return exists, err
}

func (p *PostgresProcessed) FindPaginated(ctx context.Context, page, limit int) (types.Page[*types.ProcessedArticle], error) {
	page, limit, offset := normalizePage(page, limit)
	result := types.Page[*types.ProcessedArticle]{Page: page, Limit: limit}

	if err := p.db.QueryRow(ctx, `SELECT count(*) FROM processed_articles`).Scan(&result.Total); err != nil {
		return result, err
	}
	rows, err := p.db.Query(ctx, `SELECT `+processedColumns+` FROM processed_articles ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return result, err
	}
	result.Items, err = collectProcessed(rows)
	return result, err
}

func (p *PostgresProcessed) FindLatest(ctx context.Context, limit int) ([]*types.ProcessedArticle, error) {
	rows, err := p.db.Query(ctx, `SELECT `+processedColumns+` FROM processed_articles ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectProcessed(rows)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (p *PostgresProcessed) Search(ctx context.Context, query string, limit int) ([]*types.ProcessedArticle, error) {
	pattern := "%" + likeEscaper.Replace(query) + "%"
	rows, err := p.db.Query(ctx, `SELECT `+processedColumns+` FROM processed_articles
WHERE title ILIKE $1 OR content ILIKE $1 ORDER BY created_at DESC LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, err
	}
	return collectProcessed(rows)
}

func (p *PostgresProcessed) FindByTags(ctx context.Context, tags []string, limit int) ([]*types.ProcessedArticle, error) {
	rows, err := p.db.Query(ctx, `SELECT `+processedColumns+` FROM processed_articles
WHERE tags && $1 ORDER BY created_at DESC LIMIT $2`, tags, limit)
	if err != nil {
		return nil, err
	}
	return collectProcessed(rows)
}

func (p *PostgresProcessed) IncrementViewCount(ctx context.Context, id string) error {
	tag, err := p.db.Exec(ctx, `UPDATE processed_articles SET view_count = view_count + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (p *PostgresProcessed) groupCount(ctx context.Context, column string) (map[string]int64, error) {
	rows, err := p.db.Query(ctx, `SELECT `+column+`, count(*) FROM processed_articles GROUP BY `+column)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}

func (p *PostgresProcessed) Stats(ctx context.Context) (types.ProcessedStats, error) {
	var stats types.ProcessedStats
	if err := p.db.QueryRow(ctx, `SELECT count(*) FROM processed_articles`).Scan(&stats.Total); err != nil {
		return stats, err
	}
	var err error
	if stats.ByProvider, err = p.groupCount(ctx, "ai_provider"); err != nil {
		return stats, err
	}
	if stats.ByFormat, err = p.groupCount(ctx, "format"); err != nil {
		return stats, err
	}
	return stats, nil
}
