package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/newsdesk/internal/config"
	"github.com/IshaanNene/newsdesk/internal/parser"
	"github.com/IshaanNene/newsdesk/internal/types"
)

const (
	imagesJS       = `() => { const imgs = Array.from(document.images); return { total: imgs.length, settled: imgs.filter(i => i.complete).length }; }`
	scrollHeightJS = `() => document.body ? document.body.scrollHeight : 0`
	scrollBottomJS = `() => window.scrollTo(0, document.body ? document.body.scrollHeight : 0)`
	imagePollEvery = 250 * time.Millisecond
)

// BrowserFetcher implements Fetcher using a headless browser via Rod.
// One Chromium process is shared; every fetch runs in its own incognito
// context which is disposed when the fetch returns.
type BrowserFetcher struct {
	cfg    *config.Config
	logger *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
	closed  bool
}

// NewBrowserFetcher creates a browser fetcher. Chromium is launched on the
// first fetch.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger) *BrowserFetcher {
	return &BrowserFetcher{
		cfg:    cfg,
		logger: logger.With("component", "browser_fetcher"),
	}
}

// launchBrowser starts a Chromium instance with appropriate flags.
func (bf *BrowserFetcher) launchBrowser() (string, error) {
	l := launcher.New().
		Headless(bf.cfg.Browser.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", fmt.Sprintf("%d,%d", bf.cfg.Browser.ViewportWidth, bf.cfg.Browser.ViewportHeight))

	if bf.cfg.Browser.NoSandbox {
		l = l.NoSandbox(true)
	}
	if bf.cfg.Browser.Bin != "" {
		l = l.Bin(bf.cfg.Browser.Bin)
	}
	return l.Launch()
}

func (bf *BrowserFetcher) ensureBrowser() (*rod.Browser, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if bf.closed {
		return nil, types.ErrBrowserClosed
	}
	if bf.browser != nil {
		return bf.browser, nil
	}

	launchURL, err := bf.launchBrowser()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	bf.browser = browser
	bf.logger.Info("browser ready", "stealth", bf.cfg.Browser.Stealth, "headless", bf.cfg.Browser.Headless)
	return browser, nil
}

// Fetch navigates to a URL and returns the rendered markup.
func (bf *BrowserFetcher) Fetch(ctx context.Context, opts *types.FetchOptions) (*types.FetchResult, error) {
	start := time.Now()
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = bf.cfg.Fetcher.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	browser, err := bf.ensureBrowser()
	if err != nil {
		return nil, &types.FetchError{URL: opts.URL, Code: types.CodeRender, Err: err}
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, &types.FetchError{URL: opts.URL, Code: types.CodeRender, Err: fmt.Errorf("incognito context: %w", err)}
	}
	defer func() {
		if cerr := incognito.Close(); cerr != nil {
			bf.logger.Debug("dispose browser context", "error", cerr)
		}
	}()

	page, err := bf.newPage(incognito)
	if err != nil {
		return nil, &types.FetchError{URL: opts.URL, Code: types.CodeRender, Err: err}
	}
	page = page.Context(ctx)

	profile := pageProfile{
		UserAgent:      opts.UserAgent,
		AcceptLanguage: bf.cfg.Fetcher.AcceptLanguage,
		ViewportWidth:  bf.cfg.Browser.ViewportWidth,
		ViewportHeight: bf.cfg.Browser.ViewportHeight,
		Headers:        opts.Headers,
	}
	if err := profile.apply(page); err != nil {
		bf.logger.Warn("failed to apply page profile", "url", opts.URL, "error", err)
	}

	status, err := bf.navigate(ctx, page, opts)
	if err != nil {
		return nil, Classify(opts.URL, err)
	}

	bf.settle(ctx, page, opts)

	markup, err := page.HTML()
	if err != nil {
		return nil, Classify(opts.URL, err)
	}

	res := types.NewFetchResult(opts.URL, markup, status, types.MethodBrowser, start)
	res.Title = parser.ExtractTitle(markup)

	bf.logger.Debug("browser fetch complete",
		"url", opts.URL,
		"status", status,
		"size", res.ContentLength,
		"duration", res.Duration,
	)
	return res, nil
}

func (bf *BrowserFetcher) newPage(b *rod.Browser) (*rod.Page, error) {
	if bf.cfg.Browser.Stealth {
		page, err := stealth.Page(b)
		if err != nil {
			return nil, fmt.Errorf("stealth page: %w", err)
		}
		return page, nil
	}
	return b.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

// navigate loads the URL with bounded retries and returns the status code
// of the main document response.
func (bf *BrowserFetcher) navigate(ctx context.Context, page *rod.Page, opts *types.FetchOptions) (int, error) {
	var status atomic.Int64
	status.Store(200)

	if err := (proto.NetworkEnable{}).Call(page); err == nil {
		go page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
			if e.Type == proto.NetworkResourceTypeDocument {
				status.Store(int64(e.Response.Status))
				return true
			}
			return false
		})()
	}

	lifecycle := proto.PageLifecycleEventNameDOMContentLoaded
	if opts.WaitForNetworkIdle {
		lifecycle = proto.PageLifecycleEventNameNetworkAlmostIdle
	}

	err := retry(ctx, bf.cfg.Browser.NavigationRetries, bf.cfg.Browser.RetryDelay, func(attempt int) error {
		wait := page.WaitNavigation(lifecycle)
		if err := page.Navigate(opts.URL); err != nil {
			bf.logger.Warn("navigation failed", "url", opts.URL, "attempt", attempt, "error", err)
			var navErr *rod.NavigationError
			if errors.As(err, &navErr) && navigationCode(navErr.Reason) == types.CodeUnreachable {
				return &types.FetchError{URL: opts.URL, Code: types.CodeUnreachable, Err: err}
			}
			return err
		}
		wait()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(status.Load()), nil
}

// settle runs the optional post-navigation waits. None of them is fatal.
func (bf *BrowserFetcher) settle(ctx context.Context, page *rod.Page, opts *types.FetchOptions) {
	if opts.WaitForSelector != "" {
		if _, err := page.Timeout(bf.cfg.Browser.SelectorTimeout).Element(opts.WaitForSelector); err != nil {
			bf.logger.Warn("selector wait timed out", "selector", opts.WaitForSelector, "error", err)
		}
	}

	if opts.WaitTime > 0 {
		_ = sleepCtx(ctx, opts.WaitTime)
	}

	if opts.WaitForImages {
		check := func(ctx context.Context) (imageProgress, error) {
			res, err := page.Context(ctx).Eval(imagesJS)
			if err != nil {
				return imageProgress{}, err
			}
			return imageProgress{
				Settled: res.Value.Get("settled").Int(),
				Total:   res.Value.Get("total").Int(),
			}, nil
		}
		progress, complete, err := waitForImages(ctx, check, bf.cfg.Browser.ImageWaitCap, imagePollEvery)
		if err != nil {
			bf.logger.Warn("image wait failed", "url", opts.URL, "error", err)
		} else if !complete {
			bf.logger.Debug("image wait capped", "url", opts.URL, "settled", progress.Settled, "total", progress.Total)
		}
	}

	if opts.ScrollToBottom {
		height := func() (int, error) {
			res, err := page.Eval(scrollHeightJS)
			if err != nil {
				return 0, err
			}
			return res.Value.Int(), nil
		}
		scroll := func() error {
			_, err := page.Eval(scrollBottomJS)
			return err
		}
		n, err := scrollUntilStable(ctx, height, scroll, opts.MaxScrolls, bf.cfg.Browser.ScrollPause)
		if err != nil {
			bf.logger.Warn("scroll interrupted", "url", opts.URL, "scrolls", n, "error", err)
		}
	}
}

// Close shuts down the browser.
func (bf *BrowserFetcher) Close() error {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	bf.closed = true
	if bf.browser != nil {
		err := bf.browser.Close()
		bf.browser = nil
		return err
	}
	return nil
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return types.MethodBrowser
}
