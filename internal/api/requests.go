package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/IshaanNene/newsdesk/internal/crawler"
	"github.com/IshaanNene/newsdesk/internal/engine"
	"github.com/IshaanNene/newsdesk/internal/types"
)

// crawlRequest carries the options shared by every crawl endpoint. Times
// are in milliseconds.
type crawlRequest struct {
	URL                string            `json:"url"                query:"url"                validate:"required,crawlurl"`
	Timeout            int               `json:"timeout"            query:"timeout"            validate:"omitempty,min=5000,max=120000"`
	UserAgent          string            `json:"userAgent"          query:"userAgent"`
	Headers            map[string]string `json:"headers"`
	UsePuppeteer       optionalBool      `json:"usePuppeteer"       query:"usePuppeteer"`
	WaitForSelector    string            `json:"waitForSelector"    query:"waitForSelector"`
	WaitTime           int               `json:"waitTime"           query:"waitTime"           validate:"min=0,max=30000"`
	WaitForNetworkIdle optionalBool      `json:"waitForNetworkIdle" query:"waitForNetworkIdle"`
}

func (r *crawlRequest) fetchOptions() *types.FetchOptions {
	opts := &types.FetchOptions{
		URL:                r.URL,
		Timeout:            time.Duration(r.Timeout) * time.Millisecond,
		UserAgent:          r.UserAgent,
		UseBrowser:         boolOr(r.UsePuppeteer, true),
		WaitForSelector:    r.WaitForSelector,
		WaitTime:           time.Duration(r.WaitTime) * time.Millisecond,
		WaitForNetworkIdle: boolOr(r.WaitForNetworkIdle, true),
	}
	if len(r.Headers) > 0 {
		opts.Headers = make(http.Header, len(r.Headers))
		for k, v := range r.Headers {
			opts.Headers.Set(k, v)
		}
	}
	return opts
}

type downloadRequest struct {
	crawlRequest
	Download optionalBool `query:"download"`
	Filename string       `query:"filename" validate:"max=200"`
}

type extractRequest struct {
	crawlRequest
	WaitForImages   optionalBool `json:"waitForImages"`
	ScrollToBottom  optionalBool `json:"scrollToBottom"`
	MaxScrolls      int          `json:"maxScrolls"      validate:"omitempty,min=1,max=20"`
	ArticleSelector string       `json:"articleSelector"`
	MaxArticles     int          `json:"maxArticles"     validate:"omitempty,min=1,max=100"`
}

func (r *extractRequest) toCrawler() crawler.ExtractRequest {
	opts := r.fetchOptions()
	opts.WaitForImages = boolOr(r.WaitForImages, true)
	opts.ScrollToBottom = boolOr(r.ScrollToBottom, true)
	opts.MaxScrolls = r.MaxScrolls
	return crawler.ExtractRequest{
		Fetch:       *opts,
		Selector:    r.ArticleSelector,
		MaxArticles: r.MaxArticles,
	}
}

type urlQuery struct {
	URL      string `query:"url"      validate:"required,crawlurl"`
	Filename string `query:"filename" validate:"max=200"`
}

type processRequest struct {
	URL     string         `json:"url"     validate:"required,crawlurl"`
	Options processOptions `json:"options"`
}

// processOptions is the optional "options" object of a process request.
type processOptions struct {
	ExtractOnly bool   `json:"extractOnly"`
	Language    string `json:"language"    validate:"omitempty,oneof=vi en"`
	Format      string `json:"format"      validate:"omitempty,oneof=markdown html text"`
}

func (r *processRequest) options() engine.ProcessOptions {
	return engine.ProcessOptions{
		Language:    r.Options.Language,
		Format:      r.Options.Format,
		ExtractOnly: r.Options.ExtractOnly,
	}
}

type pageQuery struct {
	Page  int `query:"page"  validate:"omitempty,min=1"`
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

func (q pageQuery) values() (int, int) {
	page, limit := q.Page, q.Limit
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = 10
	}
	return page, limit
}

type limitQuery struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

func (q limitQuery) value(def int) int {
	if q.Limit == 0 {
		return def
	}
	return q.Limit
}

type searchQuery struct {
	Q     string `query:"q"     validate:"required"`
	Limit int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

type idParam struct {
	ID string `param:"id" validate:"required"`
}

// optionalBool distinguishes an absent flag from an explicit false.
type optionalBool struct {
	set   bool
	value bool
}

func (b *optionalBool) UnmarshalParam(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b = optionalBool{set: true, value: v}
	return nil
}

func (b *optionalBool) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = optionalBool{set: true, value: v}
	return nil
}

func boolOr(b optionalBool, def bool) bool {
	if !b.set {
		return def
	}
	return b.value
}

var binder = &echo.DefaultBinder{}

// bind decodes path, query and body into dst, then validates it. Query
// parameters are bound for every method.
func bind(c echo.Context, dst any) error {
	if err := binder.BindPathParams(c, dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed request: "+bindMessage(err))
	}
	if err := binder.BindQueryParams(c, dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed request: "+bindMessage(err))
	}
	if err := binder.BindBody(c, dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed request: "+bindMessage(err))
	}
	return c.Validate(dst)
}

func bindMessage(err error) string {
	if he, ok := err.(*echo.HTTPError); ok {
		if s, ok := he.Message.(string); ok {
			return s
		}
	}
	return err.Error()
}
