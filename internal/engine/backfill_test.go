package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/newsdesk/internal/storage"
	"github.com/IshaanNene/newsdesk/internal/types"
)

var detailPage = `<html><body><nav>Home</nav><article>` +
	`<p>` + strings.Repeat("Thị trường tiền mã hoá biến động mạnh trong tuần qua. ", 4) + `</p>` +
	`</article></body></html>`

func seedArticles(t *testing.T, store *storage.Store, urls ...string) []*types.StoredArticle {
	t.Helper()
	rows := make([]*types.StoredArticle, len(urls))
	for i, u := range urls {
		rows[i] = &types.StoredArticle{Title: u, URL: u}
	}
	saved, err := store.Articles.SaveMany(context.Background(), rows)
	require.NoError(t, err)
	return saved
}

func TestBackfillCrawlDetail(t *testing.T) {
	store := storage.NewMemoryStore()
	rows := seedArticles(t, store, "https://n.example/1")
	b := NewBackfiller(&fakeCrawler{pages: map[string]string{"https://n.example/1": detailPage}}, store.Articles, testLogger)

	got, err := b.CrawlDetail(context.Background(), rows[0].ID)
	require.NoError(t, err)
	assert.True(t, got.IsCrawledDetail)
	assert.NotNil(t, got.CrawledDetailAt)
	assert.Contains(t, got.DetailContent, "Thị trường tiền mã hoá")
	assert.NotContains(t, got.DetailContent, "Home")
}

func TestBackfillCrawlDetailUnknownID(t *testing.T) {
	store := storage.NewMemoryStore()
	b := NewBackfiller(&fakeCrawler{}, store.Articles, testLogger)
	_, err := b.CrawlDetail(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestBackfillCrawlPending(t *testing.T) {
	store := storage.NewMemoryStore()
	seedArticles(t, store, "https://n.example/1", "https://n.example/2", "https://n.example/3")
	c := &fakeCrawler{pages: map[string]string{
		"https://n.example/1": detailPage,
		"https://n.example/3": detailPage,
	}}
	b := NewBackfiller(c, store.Articles, testLogger)
	ctx := context.Background()

	res, err := b.CrawlPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Requested)
	assert.Equal(t, 2, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "https://n.example/2", res.Failed[0].URL)

	pending, err := store.Articles.FindPendingDetail(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "https://n.example/2", pending[0].URL)
}
