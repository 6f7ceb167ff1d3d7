// Package api exposes crawling, ingestion and article reads over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/IshaanNene/newsdesk/internal/config"
	"github.com/IshaanNene/newsdesk/internal/crawler"
	"github.com/IshaanNene/newsdesk/internal/engine"
	"github.com/IshaanNene/newsdesk/internal/observability"
	"github.com/IshaanNene/newsdesk/internal/storage"
	"github.com/IshaanNene/newsdesk/internal/types"
)

// Crawler is the crawl surface the API drives.
type Crawler interface {
	CrawlURL(ctx context.Context, opts *types.FetchOptions) (*types.FetchResult, error)
	CrawlForDownload(ctx context.Context, opts *types.FetchOptions, customName string) (*crawler.Download, error)
	CrawlArticleDetail(ctx context.Context, url string) (*types.FetchResult, error)
	DetailOptions(url string) *types.FetchOptions
	ExtractArticles(ctx context.Context, req crawler.ExtractRequest) (*crawler.ExtractResult, error)
}

// Ingestion controls the scheduler.
type Ingestion interface {
	Trigger(ctx context.Context) (*engine.CycleResult, error)
	Status() engine.Status
}

// ArticleProcessor rewrites one article.
type ArticleProcessor interface {
	ProcessWithAI(ctx context.Context, url string, opts engine.ProcessOptions) (*types.ProcessedArticle, bool, error)
}

// DetailBackfill fills article detail content.
type DetailBackfill interface {
	CrawlDetail(ctx context.Context, id string) (*types.StoredArticle, error)
	CrawlPending(ctx context.Context, limit int) (*engine.BackfillResult, error)
}

// Deps are the services behind the routes. Metrics may be nil.
type Deps struct {
	Crawler    Crawler
	Ingestion  Ingestion
	Processor  ArticleProcessor
	Backfill   DetailBackfill
	Articles   storage.ArticleStore
	Processed  storage.ProcessedStore
	Metrics    *observability.Metrics
	MetricsCfg config.MetricsConfig
}

// Server is the HTTP API.
type Server struct {
	cfg     config.ServerConfig
	deps    Deps
	echo    *echo.Echo
	logger  *slog.Logger
	started time.Time
}

// NewServer creates the API server and registers its routes.
func NewServer(cfg config.ServerConfig, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		echo:    echo.New(),
		logger:  logger.With("component", "api_server"),
		started: time.Now(),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Validator = newRequestValidator()
	s.echo.HTTPErrorHandler = s.errorHandler
	s.echo.Server.ReadTimeout = cfg.ReadTimeout
	s.echo.Server.WriteTimeout = cfg.WriteTimeout

	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requestLogger())
	s.echo.Use(middleware.CORS())

	s.registerRoutes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) registerRoutes() {
	e := s.echo

	e.GET("/health", s.handleHealth)
	if s.deps.MetricsCfg.Enabled && s.deps.Metrics != nil {
		path := s.deps.MetricsCfg.Path
		if path == "" {
			path = "/metrics"
		}
		e.GET(path, echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	cr := e.Group("/crawler")
	cr.POST("/crawl-html", s.handleCrawlHTML)
	cr.GET("/download-html", s.handleDownloadHTML)
	cr.POST("/extract-articles", s.handleExtractArticles)
	cr.POST("/trigger", s.handleTrigger)
	cr.GET("/status", s.handleStatus)

	ar := e.Group("/articles")
	ar.GET("", s.handleListArticles)
	ar.GET("/latest", s.handleLatestArticles)
	ar.GET("/crawl-url", s.handleCrawlArticle)
	ar.GET("/download-html", s.handleDownloadArticle)
	ar.POST("/process-with-ai", s.handleProcessWithAI)
	ar.POST("/crawl-details", s.handleCrawlDetails)
	ar.GET("/:id", s.handleGetArticle)
	ar.POST("/:id/crawl-detail", s.handleCrawlDetail)

	pr := e.Group("/processed-articles")
	pr.GET("", s.handleListProcessed)
	pr.GET("/search", s.handleSearchProcessed)
	pr.GET("/stats", s.handleProcessedStats)
	pr.GET("/:id", s.handleGetProcessed)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", s.cfg.Addr)
		if err := s.echo.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("API server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// requestLogger logs each request and records HTTP metrics.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRoutePath: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			route := v.RoutePath
			if route == "" {
				route = "unmatched"
			}
			s.deps.Metrics.RecordHTTP(v.Method, route, statusLabel(v.Status), v.Latency)
			s.logger.Debug("request completed",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
			)
			return nil
		},
	})
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return respond(c, http.StatusOK, "OK", map[string]any{
		"status":  "ok",
		"version": config.Version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}
