package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/newsdesk/internal/config"
	"github.com/IshaanNene/newsdesk/internal/types"
)

const duplicateKeyCode = 11000

// MongoStore holds the MongoDB client and both collections.
type MongoStore struct {
	client    *mongo.Client
	articles  *MongoArticles
	processed *MongoProcessed
	logger    *slog.Logger
}

// NewMongoStore connects to MongoDB and ensures indexes.
func NewMongoStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &MongoStore{
		client:    client,
		articles:  &MongoArticles{coll: db.Collection(cfg.ArticlesCollection)},
		processed: &MongoProcessed{coll: db.Collection(cfg.ProcessedCollection)},
		logger:    logger.With("component", "mongo_storage"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	s.logger.Info("mongodb storage ready", "database", cfg.Database)
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.articles.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "url", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "title", Value: 1}}},
		{Keys: bson.D{{Key: "date", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "is_crawled_detail", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create article indexes: %w", err)
	}
	_, err = s.processed.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "original_url", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "title", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create processed indexes: %w", err)
	}
	return nil
}

// Articles returns the stored-article collection.
func (s *MongoStore) Articles() *MongoArticles { return s.articles }

// Processed returns the processed-article collection.
func (s *MongoStore) Processed() *MongoProcessed { return s.processed }

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var newestFirstSort = bson.D{{Key: "created_at", Value: -1}}

func decodeAll[T any](ctx context.Context, cur *mongo.Cursor) ([]*T, error) {
	defer cur.Close(ctx)
	out := []*T{}
	for cur.Next(ctx) {
		var v T
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, cur.Err()
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.ErrNotFound
	}
	return err
}

// MongoArticles is an ArticleStore backed by a MongoDB collection.
type MongoArticles struct {
	coll *mongo.Collection
}

func (m *MongoArticles) SaveMany(ctx context.Context, articles []*types.StoredArticle) ([]*types.StoredArticle, error) {
	if len(articles) == 0 {
		return nil, nil
	}
	now := time.Now()
	docs := make([]any, len(articles))
	for i, a := range articles {
		prepareArticle(a, now)
		docs[i] = a
	}

	_, err := m.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return insertedArticles(articles, err)
}

// insertedArticles maps the outcome of an unordered InsertMany onto the
// articles actually written. Duplicate-key rejections are skipped silently;
// any other write error is returned together with the rows that did land.
func insertedArticles(articles []*types.StoredArticle, err error) ([]*types.StoredArticle, error) {
	if err == nil {
		return articles, nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || bwe.WriteConcernError != nil {
		return nil, fmt.Errorf("mongodb insert: %w", err)
	}
	rejected := make(map[int]bool, len(bwe.WriteErrors))
	var failure error
	for _, we := range bwe.WriteErrors {
		rejected[we.Index] = true
		if we.Code != duplicateKeyCode && failure == nil {
			failure = fmt.Errorf("mongodb insert: %w", err)
		}
	}
	saved := make([]*types.StoredArticle, 0, len(articles))
	for i, a := range articles {
		if !rejected[i] {
			saved = append(saved, a)
		}
	}
	return saved, failure
}

func (m *MongoArticles) ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(urls) == 0 {
		return out, nil
	}
	cur, err := m.coll.Find(ctx,
		bson.M{"url": bson.M{"$in": urls}},
		options.Find().SetProjection(bson.M{"url": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var doc struct {
			URL string `bson:"url"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out[doc.URL] = true
	}
	return out, cur.Err()
}

func (m *MongoArticles) findOne(ctx context.Context, filter bson.M) (*types.StoredArticle, error) {
	var a types.StoredArticle
	if err := m.coll.FindOne(ctx, filter).Decode(&a); err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (m *MongoArticles) FindByID(ctx context.Context, id string) (*types.StoredArticle, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *MongoArticles) FindByURL(ctx context.Context, url string) (*types.StoredArticle, error) {
	return m.findOne(ctx, bson.M{"url": url})
}

func (m *MongoArticles) ExistsByURL(ctx context.Context, url string) (bool, error) {
	n, err := m.coll.CountDocuments(ctx, bson.M{"url": url}, options.Count().SetLimit(1))
	return n > 0, err
}

func (m *MongoArticles) FindPaginated(ctx context.Context, page, limit int) (types.Page[*types.StoredArticle], error) {
	page, limit, offset := normalizePage(page, limit)
	result := types.Page[*types.StoredArticle]{Page: page, Limit: limit}

	total, err := m.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return result, err
	}
	cur, err := m.coll.Find(ctx, bson.M{},
		options.Find().SetSort(newestFirstSort).SetSkip(int64(offset)).SetLimit(int64(limit)))
	if err != nil {
		return result, err
	}
	items, err := decodeAll[types.StoredArticle](ctx, cur)
	if err != nil {
		return result, err
	}
	result.Items, result.Total = items, total
	return result, nil
}

func (m *MongoArticles) FindLatest(ctx context.Context, limit int) ([]*types.StoredArticle, error) {
	cur, err := m.coll.Find(ctx, bson.M{}, options.Find().SetSort(newestFirstSort).SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	return decodeAll[types.StoredArticle](ctx, cur)
}

func (m *MongoArticles) FindPendingDetail(ctx context.Context, limit int) ([]*types.StoredArticle, error) {
	cur, err := m.coll.Find(ctx, bson.M{"is_crawled_detail": false},
		options.Find().SetSort(newestFirstSort).SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	return decodeAll[types.StoredArticle](ctx, cur)
}

func (m *MongoArticles) UpdateDetail(ctx context.Context, id, content string, at time.Time) error {
	res, err := m.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"detail_content":    content,
		"is_crawled_detail": true,
		"crawled_detail_at": at,
		"updated_at":        at,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (m *MongoArticles) IncrementViewCount(ctx context.Context, id string) error {
	res, err := m.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"view_count": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (m *MongoArticles) Count(ctx context.Context) (int64, error) {
	return m.coll.CountDocuments(ctx, bson.M{})
}

// MongoProcessed is a ProcessedStore backed by a MongoDB collection.
type MongoProcessed struct {
	coll *mongo.Collection
}

func (m *MongoProcessed) Create(ctx context.Context, p *types.ProcessedArticle) error {
	prepareProcessed(p, time.Now())
	if _, err := m.coll.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (m *MongoProcessed) findOne(ctx context.Context, filter bson.M) (*types.ProcessedArticle, error) {
	var p types.ProcessedArticle
	if err := m.coll.FindOne(ctx, filter).Decode(&p); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (m *MongoProcessed) FindByID(ctx context.Context, id string) (*types.ProcessedArticle, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *MongoProcessed) FindByOriginalURL(ctx context.Context, url string) (*types.ProcessedArticle, error) {
	return m.findOne(ctx, bson.M{"original_url": url})
}

func (m *MongoProcessed) ExistsByURL(ctx context.Context, url string) (bool, error) {
	n, err := m.coll.CountDocuments(ctx, bson.M{"original_url": url}, options.Count().SetLimit(1))
	return n > 0, err
}

func (m *MongoProcessed) find(ctx context.Context, filter bson.M, limit int) ([]*types.ProcessedArticle, error) {
	opts := options.Find().SetSort(newestFirstSort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll[types.ProcessedArticle](ctx, cur)
}

func (m *MongoProcessed) FindPaginated(ctx context.Context, page, limit int) (types.Page[*types.ProcessedArticle], error) {
	page, limit, offset := normalizePage(page, limit)
	result := types.Page[*types.ProcessedArticle]{Page: page, Limit: limit}

	total, err := m.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return result, err
	}
	cur, err := m.coll.Find(ctx, bson.M{},
		options.Find().SetSort(newestFirstSort).SetSkip(int64(offset)).SetLimit(int64(limit)))
	if err != nil {
		return result, err
	}
	items, err := decodeAll[types.ProcessedArticle](ctx, cur)
	if err != nil {
		return result, err
	}
	result.Items, result.Total = items, total
	return result, nil
}

func (m *MongoProcessed) FindLatest(ctx context.Context, limit int) ([]*types.ProcessedArticle, error) {
	return m.find(ctx, bson.M{}, limit)
}

func (m *MongoProcessed) Search(ctx context.Context, query string, limit int) ([]*types.ProcessedArticle, error) {
	pattern := bson.M{"$regex": regexp.QuoteMeta(query), "$options": "i"}
	return m.find(ctx, bson.M{"$or": bson.A{
		bson.M{"title": pattern},
		bson.M{"content": pattern},
	}}, limit)
}

func (m *MongoProcessed) FindByTags(ctx context.Context, tags []string, limit int) ([]*types.ProcessedArticle, error) {
	return m.find(ctx, bson.M{"tags": bson.M{"$in": tags}}, limit)
}

func (m *MongoProcessed) IncrementViewCount(ctx context.Context, id string) error {
	res, err := m.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"view_count": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (m *MongoProcessed) groupCount(ctx context.Context, field string) (map[string]int64, error) {
	cur, err := m.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + field},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make(map[string]int64)
	for cur.Next(ctx) {
		var row struct {
			Key   string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.Key] = row.Count
	}
	return out, cur.Err()
}

func (m *MongoProcessed) Stats(ctx context.Context) (types.ProcessedStats, error) {
	var stats types.ProcessedStats
	total, err := m.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, err
	}
	stats.Total = total
	if stats.ByProvider, err = m.groupCount(ctx, "ai_provider"); err != nil {
		return stats, err
	}
	if stats.ByFormat, err = m.groupCount(ctx, "format"); err != nil {
		return stats, err
	}
	return stats, nil
}
