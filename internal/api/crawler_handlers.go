package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/IshaanNene/newsdesk/internal/crawler"
)

func (s *Server) handleCrawlHTML(c echo.Context) error {
	var req crawlRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	start := time.Now()
	res, err := s.deps.Crawler.CrawlURL(c.Request().Context(), req.fetchOptions())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "HTML crawled successfully", map[string]any{
		"url":           res.URL,
		"html":          res.HTML,
		"title":         res.Title,
		"statusCode":    res.StatusCode,
		"contentLength": res.ContentLength,
		"method":        res.Method,
		"timestamp":     res.Timestamp,
		"crawlTime":     time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleDownloadHTML(c echo.Context) error {
	var req downloadRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	dl, err := s.deps.Crawler.CrawlForDownload(c.Request().Context(), req.fetchOptions(), req.Filename)
	if err != nil {
		return err
	}
	return sendHTML(c, dl, boolOr(req.Download, false))
}

// sendHTML writes raw markup, as an attachment when download is set.
func sendHTML(c echo.Context, dl *crawler.Download, download bool) error {
	disposition := "inline"
	if download {
		disposition = "attachment"
	}
	h := c.Response().Header()
	h.Set(echo.HeaderContentDisposition, fmt.Sprintf("%s; filename=%q", disposition, dl.Filename))
	h.Set("X-Crawl-Method", dl.Result.Method)
	return c.Blob(http.StatusOK, "text/html; charset=utf-8", []byte(dl.HTML))
}

func (s *Server) handleExtractArticles(c echo.Context) error {
	var req extractRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.deps.Crawler.ExtractArticles(c.Request().Context(), req.toCrawler())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, fmt.Sprintf("Extracted %d articles", res.Total), res)
}

func (s *Server) handleTrigger(c echo.Context) error {
	res, err := s.deps.Ingestion.Trigger(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Ingestion cycle completed", res)
}

func (s *Server) handleStatus(c echo.Context) error {
	return respond(c, http.StatusOK, "Scheduler status", s.deps.Ingestion.Status())
}
