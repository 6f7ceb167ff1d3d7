package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/go-rod/rod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/newsdesk/internal/config"
	"github.com/IshaanNene/newsdesk/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Fetcher.Type = "http"
	return cfg
}

func newHTTP(t *testing.T) *HTTPFetcher {
	t.Helper()
	f, err := NewHTTPFetcher(testConfig(), testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestHTTPFetcherReturnsMarkupAndTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "vi-VN,vi;q=0.9,en;q=0.8", r.Header.Get("Accept-Language"))
		assert.Equal(t, "custom-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Hello</title></head><body>ok</body></html>`))
	}))
	defer srv.Close()

	res, err := newHTTP(t).Fetch(context.Background(), &types.FetchOptions{URL: srv.URL, UserAgent: "custom-agent", Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, "Hello", res.Title)
	assert.Equal(t, types.MethodHTTP, res.Method)
	assert.Equal(t, len(res.HTML), res.ContentLength)
}

func TestHTTPFetcherDecodesBrotli(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	_, err := bw.Write([]byte(`<html><head><title>Compressed</title></head></html>`))
	require.NoError(t, err)
	require.NoError(t, bw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	res, err := newHTTP(t).Fetch(context.Background(), &types.FetchOptions{URL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "Compressed", res.Title)
}

func TestHTTPFetcherBodyLimitAppliesToDecodedSize(t *testing.T) {
	page := []byte("<html><head><title>Big</title></head><body>" + strings.Repeat("a", 4096) + "</body></html>")
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write(page)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.Less(t, gz.Len(), 1024, "fixture must compress below the limit")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gzip":
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write(gz.Bytes())
		default:
			_, _ = w.Write(page)
		}
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Fetcher.MaxBodySize = 1024
	f, err := NewHTTPFetcher(cfg, testLogger)
	require.NoError(t, err)
	defer f.Close()

	for _, path := range []string{"/plain", "/gzip"} {
		_, err := f.Fetch(context.Background(), &types.FetchOptions{URL: srv.URL + path, Timeout: 5 * time.Second})
		require.Error(t, err, path)
		assert.ErrorIs(t, err, types.ErrBodyTooLarge, path)
	}

	cfg.Fetcher.MaxBodySize = int64(len(page))
	f, err = NewHTTPFetcher(cfg, testLogger)
	require.NoError(t, err)
	defer f.Close()

	res, err := f.Fetch(context.Background(), &types.FetchOptions{URL: srv.URL + "/gzip", Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "Big", res.Title)
	assert.Equal(t, len(page), res.ContentLength)
}

func TestHTTPFetcherStatusHandling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := newHTTP(t)

	res, err := f.Fetch(context.Background(), &types.FetchOptions{URL: srv.URL + "/missing", Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	_, err = f.Fetch(context.Background(), &types.FetchOptions{URL: srv.URL + "/broken", Timeout: 5 * time.Second})
	fe, ok := types.AsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, types.CodeHTTPStatus, fe.Code)
	assert.Equal(t, http.StatusBadGateway, fe.StatusCode)
	assert.True(t, fe.IsClientError())
}

func TestHTTPFetcherTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(3 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := newHTTP(t).Fetch(context.Background(), &types.FetchOptions{URL: srv.URL, Timeout: 100 * time.Millisecond})
	fe, ok := types.AsFetchError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, types.CodeTimeout, fe.Code)
	assert.True(t, fe.IsClientError())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHTTPFetcherConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = newHTTP(t).Fetch(context.Background(), &types.FetchOptions{URL: "http://" + addr, Timeout: 5 * time.Second})
	fe, ok := types.AsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, types.CodeUnreachable, fe.Code)
}

func TestUnreachableHostIsClientError(t *testing.T) {
	cfg := testConfig()
	f, err := New(cfg, testLogger)
	require.NoError(t, err)
	defer f.Close()

	start := time.Now()
	_, err = f.Fetch(context.Background(), &types.FetchOptions{
		URL:     "https://definitely-invalid-domain-xyz.test",
		Timeout: 5 * time.Second,
	})
	require.Error(t, err)
	fe, ok := types.AsFetchError(err)
	require.True(t, ok)
	assert.True(t, fe.IsClientError(), "code %s", fe.Code)
	assert.Less(t, time.Since(start), 6*time.Second)
}

func TestFallbackRejectsInvalidURL(t *testing.T) {
	f, err := New(testConfig(), testLogger)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Fetch(context.Background(), &types.FetchOptions{URL: "not a url"})
	fe, ok := types.AsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, types.CodeInvalidURL, fe.Code)
}

type failingFetcher struct{ calls int }

func (f *failingFetcher) Fetch(context.Context, *types.FetchOptions) (*types.FetchResult, error) {
	f.calls++
	return nil, &types.FetchError{Code: types.CodeRender, Err: errors.New("chromium crashed")}
}
func (f *failingFetcher) Close() error { return nil }
func (f *failingFetcher) Type() string { return "failing" }

func TestFallbackUsesHTTPAfterBrowserFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<title>Fallback</title>`))
	}))
	defer srv.Close()

	cfg := testConfig()
	browser := &failingFetcher{}
	f := NewFallbackFetcher(cfg, browser, newHTTP(t), testLogger)

	res, err := f.Fetch(context.Background(), &types.FetchOptions{URL: srv.URL, UseBrowser: true})
	require.NoError(t, err)
	assert.Equal(t, 1, browser.calls)
	assert.Equal(t, types.MethodHTTP, res.Method)
	assert.Equal(t, "Fallback", res.Title)

	_, err = f.Fetch(context.Background(), &types.FetchOptions{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, 1, browser.calls, "browser must not run when not requested")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.FetchCode
	}{
		{"dns", &net.DNSError{Err: "no such host", Name: "x.test", IsNotFound: true}, types.CodeUnreachable},
		{"deadline", context.DeadlineExceeded, types.CodeTimeout},
		{"nav name", &rod.NavigationError{Reason: "net::ERR_NAME_NOT_RESOLVED"}, types.CodeUnreachable},
		{"nav timeout", &rod.NavigationError{Reason: "net::ERR_TIMED_OUT"}, types.CodeTimeout},
		{"nav other", &rod.NavigationError{Reason: "net::ERR_ABORTED"}, types.CodeRender},
		{"other", errors.New("weird"), types.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify("https://x.test", tt.err).Code)
		})
	}
}

func TestRetryStopsAfterAttempts(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, time.Millisecond, func(int) error {
		calls++
		return errors.New("nav failed")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retry(context.Background(), 3, time.Millisecond, func(attempt int) error {
		calls++
		if attempt < 2 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	_ = retry(context.Background(), 3, time.Millisecond, func(int) error {
		calls++
		return &types.FetchError{Code: types.CodeUnreachable, Err: errors.New("dns")}
	})
	assert.Equal(t, 1, calls)
}

func TestWaitForImagesCompletes(t *testing.T) {
	polls := 0
	check := func(context.Context) (imageProgress, error) {
		polls++
		return imageProgress{Settled: polls, Total: 3}, nil
	}
	p, complete, err := waitForImages(context.Background(), check, time.Second, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, 3, p.Settled)
}

func TestWaitForImagesIsBounded(t *testing.T) {
	check := func(context.Context) (imageProgress, error) {
		return imageProgress{Settled: 1, Total: 5}, nil
	}
	start := time.Now()
	p, complete, err := waitForImages(context.Background(), check, 50*time.Millisecond, 5*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, complete)
	assert.Equal(t, 1, p.Settled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestScrollUntilStable(t *testing.T) {
	heights := []int{1000, 2000, 3000, 3000}
	i := 0
	height := func() (int, error) {
		h := heights[min(i, len(heights)-1)]
		return h, nil
	}
	scroll := func() error { i++; return nil }

	n, err := scrollUntilStable(context.Background(), height, scroll, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	i = 0
	n, err = scrollUntilStable(context.Background(), height, scroll, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
