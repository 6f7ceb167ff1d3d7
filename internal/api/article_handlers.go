package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/IshaanNene/newsdesk/internal/types"
)

type pageResponse[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

func newPageResponse[T any](p types.Page[T]) pageResponse[T] {
	items := p.Items
	if items == nil {
		items = []T{}
	}
	return pageResponse[T]{Items: items, Total: p.Total, Page: p.Page, Limit: p.Limit, TotalPages: p.TotalPages()}
}

func (s *Server) handleListArticles(c echo.Context) error {
	var q pageQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	page, limit := q.values()
	res, err := s.deps.Articles.FindPaginated(c.Request().Context(), page, limit)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Articles retrieved", newPageResponse(res))
}

func (s *Server) handleLatestArticles(c echo.Context) error {
	var q limitQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	items, err := s.deps.Articles.FindLatest(c.Request().Context(), q.value(10))
	if err != nil {
		return err
	}
	if items == nil {
		items = []*types.StoredArticle{}
	}
	return respond(c, http.StatusOK, "Latest articles retrieved", items)
}

func (s *Server) handleGetArticle(c echo.Context) error {
	var p idParam
	if err := bind(c, &p); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := s.deps.Articles.IncrementViewCount(ctx, p.ID); err != nil {
		return err
	}
	a, err := s.deps.Articles.FindByID(ctx, p.ID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Article retrieved", a)
}

func (s *Server) handleCrawlArticle(c echo.Context) error {
	var q urlQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	res, err := s.deps.Crawler.CrawlArticleDetail(c.Request().Context(), q.URL)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Article crawled successfully", res)
}

func (s *Server) handleDownloadArticle(c echo.Context) error {
	var q urlQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	dl, err := s.deps.Crawler.CrawlForDownload(c.Request().Context(), s.deps.Crawler.DetailOptions(q.URL), q.Filename)
	if err != nil {
		return err
	}
	return sendHTML(c, dl, true)
}

func (s *Server) handleProcessWithAI(c echo.Context) error {
	var req processRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	article, existed, err := s.deps.Processor.ProcessWithAI(c.Request().Context(), req.URL, req.options())
	if err != nil {
		return err
	}
	if existed {
		return respond(c, http.StatusOK, "Article already processed", article)
	}
	return respond(c, http.StatusCreated, "Article processed successfully", article)
}

func (s *Server) handleCrawlDetail(c echo.Context) error {
	var p idParam
	if err := bind(c, &p); err != nil {
		return err
	}
	a, err := s.deps.Backfill.CrawlDetail(c.Request().Context(), p.ID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Article detail crawled", a)
}

func (s *Server) handleCrawlDetails(c echo.Context) error {
	var q limitQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	res, err := s.deps.Backfill.CrawlPending(c.Request().Context(), q.value(10))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Article details crawled", res)
}

func (s *Server) handleListProcessed(c echo.Context) error {
	var q pageQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	page, limit := q.values()
	res, err := s.deps.Processed.FindPaginated(c.Request().Context(), page, limit)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Processed articles retrieved", newPageResponse(res))
}

func (s *Server) handleSearchProcessed(c echo.Context) error {
	var q searchQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	limit := q.Limit
	if limit == 0 {
		limit = 10
	}
	items, err := s.deps.Processed.Search(c.Request().Context(), q.Q, limit)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*types.ProcessedArticle{}
	}
	return respond(c, http.StatusOK, "Search results", items)
}

func (s *Server) handleProcessedStats(c echo.Context) error {
	stats, err := s.deps.Processed.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Processed article statistics", stats)
}

func (s *Server) handleGetProcessed(c echo.Context) error {
	var p idParam
	if err := bind(c, &p); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := s.deps.Processed.IncrementViewCount(ctx, p.ID); err != nil {
		return err
	}
	a, err := s.deps.Processed.FindByID(ctx, p.ID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Processed article retrieved", a)
}
