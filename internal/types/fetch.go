package types

import (
	"net/http"
	"time"
)

// Fetch methods reported in FetchResult.Method.
const (
	MethodBrowser = "browser"
	MethodHTTP    = "http"
)

// FetchOptions describes one page fetch.
type FetchOptions struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
	Headers   http.Header

	// UseBrowser selects the headless browser path. On browser failure the
	// fetch falls back to plain HTTP once.
	UseBrowser bool

	WaitForSelector    string
	WaitTime           time.Duration
	WaitForNetworkIdle bool
	WaitForImages      bool
	ScrollToBottom     bool
	MaxScrolls         int
}

// FetchResult is the rendered markup of one page.
type FetchResult struct {
	URL           string        `json:"url"`
	HTML          string        `json:"html"`
	StatusCode    int           `json:"statusCode"`
	Title         string        `json:"title,omitempty"`
	ContentLength int           `json:"contentLength"`
	Timestamp     time.Time     `json:"timestamp"`
	Method        string        `json:"method"`
	Duration      time.Duration `json:"-"`
}

// NewFetchResult fills the derived fields of a result.
func NewFetchResult(url, html string, status int, method string, started time.Time) *FetchResult {
	return &FetchResult{
		URL:           url,
		HTML:          html,
		StatusCode:    status,
		ContentLength: len(html),
		Timestamp:     time.Now(),
		Method:        method,
		Duration:      time.Since(started),
	}
}
