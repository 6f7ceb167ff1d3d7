package storage

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/IshaanNene/newsdesk/internal/config"
	"github.com/IshaanNene/newsdesk/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func article(url string, created time.Time) *types.StoredArticle {
	a := types.NewStoredArticle(types.Teaser{Title: "T " + url, Content: "body", URL: url}, "https://example.com", created)
	return a
}

func TestMemorySaveManySkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	saved, err := s.Articles.SaveMany(ctx, []*types.StoredArticle{article("/a", now), article("/b", now)})
	require.NoError(t, err)
	assert.Len(t, saved, 2)
	assert.NotEmpty(t, saved[0].ID)

	saved, err = s.Articles.SaveMany(ctx, []*types.StoredArticle{article("/a", now), article("/c", now)})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "/c", saved[0].URL)

	n, err := s.Articles.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	existing, err := s.Articles.ExistingURLs(ctx, []string{"/a", "/x", "/c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"/a": true, "/c": true}, existing)
}

func TestMemoryPaginationNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var batch []*types.StoredArticle
	for i := 0; i < 5; i++ {
		batch = append(batch, article("/"+string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute)))
	}
	_, err := s.Articles.SaveMany(ctx, batch)
	require.NoError(t, err)

	page, err := s.Articles.FindPaginated(ctx, 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages())
	require.Len(t, page.Items, 2)
	assert.Equal(t, "/c", page.Items[0].URL)
	assert.Equal(t, "/b", page.Items[1].URL)

	latest, err := s.Articles.FindLatest(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "/e", latest[0].URL)

	clamped, err := s.Articles.FindPaginated(ctx, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, clamped.Page)
	assert.Equal(t, 100, clamped.Limit)
}

func TestMemoryDetailAndViews(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	saved, err := s.Articles.SaveMany(ctx, []*types.StoredArticle{article("/a", time.Now())})
	require.NoError(t, err)
	id := saved[0].ID

	pending, err := s.Articles.FindPendingDetail(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	at := time.Now()
	require.NoError(t, s.Articles.UpdateDetail(ctx, id, "full text", at))
	require.NoError(t, s.Articles.IncrementViewCount(ctx, id))

	got, err := s.Articles.FindByURL(ctx, "/a")
	require.NoError(t, err)
	assert.True(t, got.IsCrawledDetail)
	assert.Equal(t, "full text", got.DetailContent)
	assert.EqualValues(t, 1, got.ViewCount)

	pending, err = s.Articles.FindPendingDetail(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.ErrorIs(t, s.Articles.IncrementViewCount(ctx, "missing"), types.ErrNotFound)
	_, err = s.Articles.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestMemoryProcessed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p := &types.ProcessedArticle{Title: "Bitcoin rallies", Content: "BTC went up", OriginalURL: "/a", Tags: []string{"btc"}, AIProvider: "openai", Format: "markdown"}
	require.NoError(t, s.Processed.Create(ctx, p))
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, types.StatusProcessed, p.Status)

	dup := &types.ProcessedArticle{Title: "x", Content: "y", OriginalURL: "/a"}
	assert.ErrorIs(t, s.Processed.Create(ctx, dup), types.ErrAlreadyExists)

	require.NoError(t, s.Processed.Create(ctx, &types.ProcessedArticle{Title: "Ether", Content: "ETH", OriginalURL: "/b", Tags: []string{"eth"}, AIProvider: "none", Format: "html"}))

	found, err := s.Processed.Search(ctx, "BITCOIN", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "/a", found[0].OriginalURL)

	tagged, err := s.Processed.FindByTags(ctx, []string{"eth", "sol"}, 10)
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "/b", tagged[0].OriginalURL)

	stats, err := s.Processed.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 1, stats.ByProvider["openai"])
	assert.EqualValues(t, 1, stats.ByFormat["html"])

	byURL, err := s.Processed.FindByOriginalURL(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byURL.ID)
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Type: "cassandra"}, testLogger)
	assert.Error(t, err)

	s, err := Open(context.Background(), config.StorageConfig{Type: "memory"}, testLogger)
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Name())
	assert.NoError(t, s.Close())
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresSaveManySkipsConflicts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresArticles(mock)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO articles").
		WithArgs(anyArgs(16)...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("id-1"))
	mock.ExpectQuery("INSERT INTO articles").
		WithArgs(anyArgs(16)...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	saved, err := store.SaveMany(context.Background(), []*types.StoredArticle{article("/new", now), article("/dup", now)})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "/new", saved[0].URL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExistingURLs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	urls := []string{"/a", "/b"}
	mock.ExpectQuery("SELECT url FROM articles WHERE url = ANY").
		WithArgs(urls).
		WillReturnRows(pgxmock.NewRows([]string{"url"}).AddRow("/b"))

	existing, err := NewPostgresArticles(mock).ExistingURLs(context.Background(), urls)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"/b": true}, existing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIncrementViewCountMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE articles SET view_count").
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = NewPostgresArticles(mock).IncrementViewCount(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProcessedCreateConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO processed_articles").
		WithArgs(anyArgs(17)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err = NewPostgresProcessed(mock).Create(context.Background(), &types.ProcessedArticle{Title: "t", Content: "c", OriginalURL: "/a"})
	assert.ErrorIs(t, err, types.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM processed_articles WHERE id").
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err = NewPostgresProcessed(mock).FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestExporters(t *testing.T) {
	dir := t.TempDir()
	teasers := []types.Teaser{
		{Title: "One", Content: "first, with comma", URL: "/1"},
		{Title: "Two", Image: "https://img/2.jpg", URL: "/2"},
	}

	jsonl, err := NewExporter("jsonl", dir, testLogger)
	require.NoError(t, err)
	require.NoError(t, jsonl.Write(teasers))
	require.NoError(t, jsonl.Close())

	f, err := os.Open(filepath.Join(dir, "teasers.jsonl"))
	require.NoError(t, err)
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
	}
	assert.Equal(t, 2, lines)

	csvExp, err := NewExporter("csv", dir, testLogger)
	require.NoError(t, err)
	require.NoError(t, csvExp.Write(teasers))
	require.NoError(t, csvExp.Close())

	cf, err := os.Open(filepath.Join(dir, "teasers.csv"))
	require.NoError(t, err)
	defer cf.Close()
	records, err := csv.NewReader(cf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, teaserHeaders, records[0])
	assert.Equal(t, "first, with comma", records[1][3])

	_, err = NewExporter("xml", dir, testLogger)
	assert.Error(t, err)
}

func TestExistsByURL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Articles.SaveMany(ctx, []*types.StoredArticle{article("/a", time.Now())})
	require.NoError(t, err)

	ok, err := s.Articles.ExistsByURL(ctx, "/a")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Processed.ExistsByURL(ctx, "/a")
	require.NoError(t, err)
	assert.False(t, ok)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("/a").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err = NewPostgresArticles(mock).ExistsByURL(ctx, "/a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func bulkWriteError(codes map[int]int) error {
	bwe := mongo.BulkWriteException{}
	for index, code := range codes {
		bwe.WriteErrors = append(bwe.WriteErrors, mongo.BulkWriteError{
			WriteError: mongo.WriteError{Index: index, Code: code, Message: "write failed"},
		})
	}
	return bwe
}

func TestMongoInsertedArticles(t *testing.T) {
	now := time.Now()
	rows := []*types.StoredArticle{
		article("https://n.example/1", now),
		article("https://n.example/2", now),
		article("https://n.example/3", now),
	}

	saved, err := insertedArticles(rows, nil)
	require.NoError(t, err)
	assert.Len(t, saved, 3)

	saved, err = insertedArticles(rows, bulkWriteError(map[int]int{0: duplicateKeyCode, 2: duplicateKeyCode}))
	require.NoError(t, err, "duplicate keys are skipped")
	require.Len(t, saved, 1)
	assert.Equal(t, "https://n.example/2", saved[0].URL)

	saved, err = insertedArticles(rows, bulkWriteError(map[int]int{0: duplicateKeyCode, 1: 121}))
	require.Error(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "https://n.example/3", saved[0].URL)

	saved, err = insertedArticles(rows, mongo.BulkWriteException{
		WriteConcernError: &mongo.WriteConcernError{Code: 64, Message: "waiting for replication timed out"},
	})
	require.Error(t, err)
	assert.Nil(t, saved)

	saved, err = insertedArticles(rows, errors.New("server selection timeout"))
	require.Error(t, err)
	assert.Nil(t, saved)
}
