package types

import (
	"time"
)

// Teaser is a candidate article summary lifted from one listing-page
// container. It is only ever produced with a title and at least one of
// image or content.
type Teaser struct {
	Image    string `json:"image"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	URL      string `json:"url,omitempty"`
	Date     string `json:"date,omitempty"`
	Category string `json:"category,omitempty"`
}

// Valid reports whether the teaser satisfies the extraction invariant.
func (t Teaser) Valid() bool {
	return t.Title != "" && (t.Image != "" || t.Content != "")
}

// Article status values.
const (
	StatusPublished = "published"
	StatusPending   = "pending"
	StatusFailed    = "failed"
	StatusProcessed = "processed"
)

// StoredArticle is a persisted teaser plus bookkeeping. URL is unique.
type StoredArticle struct {
	ID              string         `json:"id"              bson:"_id"`
	Title           string         `json:"title"           bson:"title"`
	Content         string         `json:"content"         bson:"content"`
	DetailContent   string         `json:"detailContent,omitempty" bson:"detail_content,omitempty"`
	IsCrawledDetail bool           `json:"isCrawledDetail" bson:"is_crawled_detail"`
	CrawledDetailAt *time.Time     `json:"crawledDetailAt,omitempty" bson:"crawled_detail_at,omitempty"`
	Image           string         `json:"image,omitempty" bson:"image,omitempty"`
	URL             string         `json:"url"             bson:"url"`
	Date            string         `json:"date,omitempty"  bson:"date,omitempty"`
	Category        string         `json:"category,omitempty" bson:"category,omitempty"`
	Source          string         `json:"source"          bson:"source"`
	Status          string         `json:"status"          bson:"status"`
	ViewCount       int64          `json:"viewCount"       bson:"view_count"`
	Metadata        map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"       bson:"created_at"`
	UpdatedAt       time.Time      `json:"updatedAt"       bson:"updated_at"`
}

// NewStoredArticle builds a new row from a teaser. The caller assigns ID.
func NewStoredArticle(t Teaser, source string, now time.Time) *StoredArticle {
	return &StoredArticle{
		Title:    t.Title,
		Content:  t.Content,
		Image:    t.Image,
		URL:      t.URL,
		Date:     t.Date,
		Category: t.Category,
		Source:   source,
		Status:   StatusPublished,
		Metadata: map[string]any{
			"crawledAt":    now.UTC().Format(time.RFC3339),
			"originalData": t,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ProcessedArticle is an AI-normalized article. OriginalURL is unique.
type ProcessedArticle struct {
	ID             string         `json:"id"             bson:"_id"`
	Title          string         `json:"title"          bson:"title"`
	Image          string         `json:"image,omitempty" bson:"image,omitempty"`
	Content        string         `json:"content"        bson:"content"`
	Summary        string         `json:"summary,omitempty" bson:"summary,omitempty"`
	Tags           []string       `json:"tags"           bson:"tags"`
	OriginalURL    string         `json:"originalUrl"    bson:"original_url"`
	Status         string         `json:"status"         bson:"status"`
	Language       string         `json:"language"       bson:"language"`
	Format         string         `json:"format"         bson:"format"`
	ProcessingTime int64          `json:"processingTime" bson:"processing_time"`
	AIProvider     string         `json:"aiProvider"     bson:"ai_provider"`
	AIModel        string         `json:"aiModel"        bson:"ai_model"`
	ViewCount      int64          `json:"viewCount"      bson:"view_count"`
	Metadata       map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"      bson:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt"      bson:"updated_at"`
}

// ProcessedStats summarizes the processed-article collection.
type ProcessedStats struct {
	Total      int64            `json:"total"`
	ByProvider map[string]int64 `json:"byProvider"`
	ByFormat   map[string]int64 `json:"byFormat"`
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// TotalPages returns the number of pages for the listing.
func (p Page[T]) TotalPages() int {
	if p.Limit <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Limit) - 1) / int64(p.Limit))
}
