package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/IshaanNene/newsdesk/internal/ai"
	"github.com/IshaanNene/newsdesk/internal/crawler"
	"github.com/IshaanNene/newsdesk/internal/events"
	"github.com/IshaanNene/newsdesk/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeSource serves a fixed teaser list.
type fakeSource struct {
	mu       sync.Mutex
	teasers  []types.Teaser
	err      error
	requests []crawler.ExtractRequest
}

func (f *fakeSource) ExtractArticles(_ context.Context, req crawler.ExtractRequest) (*crawler.ExtractResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	out := append([]types.Teaser(nil), f.teasers...)
	return &crawler.ExtractResult{URL: req.Fetch.URL, Teasers: out, Total: len(out)}, nil
}

// fakeCrawler serves article pages by URL.
type fakeCrawler struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (f *fakeCrawler) CrawlArticleDetail(_ context.Context, url string) (*types.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	html, ok := f.pages[url]
	if !ok {
		return nil, &types.FetchError{URL: url, Code: types.CodeUnreachable, Err: errors.New("no such host")}
	}
	return &types.FetchResult{URL: url, HTML: html, StatusCode: 200, Method: types.MethodBrowser}, nil
}

// fakeNormalizer echoes a fixed result.
type fakeNormalizer struct {
	calls int
	opts  ai.NormalizeOptions
}

func (f *fakeNormalizer) Normalize(_ context.Context, _ string, opts ai.NormalizeOptions) *ai.Result {
	f.calls++
	f.opts = opts
	return &ai.Result{
		Title:    "Rewritten",
		Content:  "## Body",
		Summary:  "Short",
		Tags:     []string{"crypto"},
		Metadata: map[string]any{"aiProcessed": true},
		Tier:     ai.TierAI,
	}
}

func (f *fakeNormalizer) Provider() string { return "openai" }
func (f *fakeNormalizer) Model() string    { return "gpt-test" }

// recordingPublisher keeps published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func teaser(title, url string) types.Teaser {
	return types.Teaser{Title: title, URL: url, Content: "Summary of " + title, Image: "https://cdn.example.com/" + title + ".jpg"}
}
