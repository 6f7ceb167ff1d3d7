package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/IshaanNene/newsdesk/internal/types"
)

// NewMemoryStore returns an in-process store. It is the default backend
// and the one used by tests.
func NewMemoryStore() *Store {
	return &Store{
		Articles:  &MemoryArticles{byID: map[string]*types.StoredArticle{}, byURL: map[string]string{}},
		Processed: &MemoryProcessed{byID: map[string]*types.ProcessedArticle{}, byURL: map[string]string{}},
		backend:   "memory",
	}
}

// MemoryArticles is an ArticleStore backed by maps.
type MemoryArticles struct {
	mu    sync.RWMutex
	byID  map[string]*types.StoredArticle
	byURL map[string]string
	order []string
}

func cloneArticle(a *types.StoredArticle) *types.StoredArticle {
	c := *a
	return &c
}

func (m *MemoryArticles) SaveMany(_ context.Context, articles []*types.StoredArticle) ([]*types.StoredArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var saved []*types.StoredArticle
	for _, a := range articles {
		if a == nil || a.URL == "" {
			continue
		}
		if _, exists := m.byURL[a.URL]; exists {
			continue
		}
		prepareArticle(a, now)
		m.byID[a.ID] = cloneArticle(a)
		m.byURL[a.URL] = a.ID
		m.order = append(m.order, a.ID)
		saved = append(saved, a)
	}
	return saved, nil
}

func (m *MemoryArticles) ExistingURLs(_ context.Context, urls []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool)
	for _, u := range urls {
		if _, ok := m.byURL[u]; ok {
			out[u] = true
		}
	}
	return out, nil
}

func (m *MemoryArticles) FindByID(_ context.Context, id string) (*types.StoredArticle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return cloneArticle(a), nil
}

func (m *MemoryArticles) FindByURL(ctx context.Context, url string) (*types.StoredArticle, error) {
	m.mu.RLock()
	id, ok := m.byURL[url]
	m.mu.RUnlock()
	if !ok {
		return nil, types.ErrNotFound
	}
	return m.FindByID(ctx, id)
}

func (m *MemoryArticles) ExistsByURL(_ context.Context, url string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byURL[url]
	return ok, nil
}

// newestFirst returns articles ordered by CreatedAt descending, ties broken
// by most recent insertion.
func (m *MemoryArticles) newestFirst() []*types.StoredArticle {
	out := make([]*types.StoredArticle, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.byID[m.order[i]])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MemoryArticles) FindPaginated(_ context.Context, page, limit int) (types.Page[*types.StoredArticle], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	page, limit, offset := normalizePage(page, limit)
	all := m.newestFirst()
	result := types.Page[*types.StoredArticle]{Items: []*types.StoredArticle{}, Total: int64(len(all)), Page: page, Limit: limit}
	for i := offset; i < len(all) && i < offset+limit; i++ {
		result.Items = append(result.Items, cloneArticle(all[i]))
	}
	return result, nil
}

func (m *MemoryArticles) FindLatest(ctx context.Context, limit int) ([]*types.StoredArticle, error) {
	p, err := m.FindPaginated(ctx, 1, limit)
	return p.Items, err
}

func (m *MemoryArticles) FindPendingDetail(_ context.Context, limit int) ([]*types.StoredArticle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.StoredArticle
	for _, a := range m.newestFirst() {
		if len(out) >= limit {
			break
		}
		if !a.IsCrawledDetail {
			out = append(out, cloneArticle(a))
		}
	}
	return out, nil
}

func (m *MemoryArticles) UpdateDetail(_ context.Context, id, content string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return types.ErrNotFound
	}
	a.DetailContent = content
	a.IsCrawledDetail = true
	a.CrawledDetailAt = &at
	a.UpdatedAt = at
	return nil
}

func (m *MemoryArticles) IncrementViewCount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return types.ErrNotFound
	}
	a.ViewCount++
	return nil
}

func (m *MemoryArticles) Count(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.byID)), nil
}

// MemoryProcessed is a ProcessedStore backed by maps.
type MemoryProcessed struct {
	mu    sync.RWMutex
	byID  map[string]*types.ProcessedArticle
	byURL map[string]string
	order []string
}

func cloneProcessed(p *types.ProcessedArticle) *types.ProcessedArticle {
	c := *p
	c.Tags = append([]string(nil), p.Tags...)
	return &c
}

func (m *MemoryProcessed) Create(_ context.Context, p *types.ProcessedArticle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byURL[p.OriginalURL]; exists {
		return types.ErrAlreadyExists
	}
	prepareProcessed(p, time.Now())
	m.byID[p.ID] = cloneProcessed(p)
	m.byURL[p.OriginalURL] = p.ID
	m.order = append(m.order, p.ID)
	return nil
}

func (m *MemoryProcessed) FindByID(_ context.Context, id string) (*types.ProcessedArticle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return cloneProcessed(p), nil
}

func (m *MemoryProcessed) FindByOriginalURL(ctx context.Context, url string) (*types.ProcessedArticle, error) {
	m.mu.RLock()
	id, ok := m.byURL[url]
	m.mu.RUnlock()
	if !ok {
		return nil, types.ErrNotFound
	}
	return m.FindByID(ctx, id)
}

func (m *MemoryProcessed) ExistsByURL(_ context.Context, url string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byURL[url]
	return ok, nil
}

func (m *MemoryProcessed) newestFirst() []*types.ProcessedArticle {
	out := make([]*types.ProcessedArticle, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.byID[m.order[i]])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MemoryProcessed) filter(limit int, keep func(*types.ProcessedArticle) bool) []*types.ProcessedArticle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*types.ProcessedArticle{}
	for _, p := range m.newestFirst() {
		if limit > 0 && len(out) >= limit {
			break
		}
		if keep(p) {
			out = append(out, cloneProcessed(p))
		}
	}
	return out
}

func (m *MemoryProcessed) FindPaginated(_ context.Context, page, limit int) (types.Page[*types.ProcessedArticle], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	page, limit, offset := normalizePage(page, limit)
	all := m.newestFirst()
	result := types.Page[*types.ProcessedArticle]{Items: []*types.ProcessedArticle{}, Total: int64(len(all)), Page: page, Limit: limit}
	for i := offset; i < len(all) && i < offset+limit; i++ {
		result.Items = append(result.Items, cloneProcessed(all[i]))
	}
	return result, nil
}

func (m *MemoryProcessed) FindLatest(_ context.Context, limit int) ([]*types.ProcessedArticle, error) {
	return m.filter(limit, func(*types.ProcessedArticle) bool { return true }), nil
}

func (m *MemoryProcessed) Search(_ context.Context, query string, limit int) ([]*types.ProcessedArticle, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	return m.filter(limit, func(p *types.ProcessedArticle) bool {
		return strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Content), q)
	}), nil
}

func (m *MemoryProcessed) FindByTags(_ context.Context, tags []string, limit int) ([]*types.ProcessedArticle, error) {
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}
	return m.filter(limit, func(p *types.ProcessedArticle) bool {
		for _, t := range p.Tags {
			if want[t] {
				return true
			}
		}
		return false
	}), nil
}

func (m *MemoryProcessed) IncrementViewCount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return types.ErrNotFound
	}
	p.ViewCount++
	return nil
}

func (m *MemoryProcessed) Stats(context.Context) (types.ProcessedStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := types.ProcessedStats{ByProvider: map[string]int64{}, ByFormat: map[string]int64{}}
	for _, p := range m.byID {
		stats.Total++
		stats.ByProvider[p.AIProvider]++
		stats.ByFormat[p.Format]++
	}
	return stats, nil
}
