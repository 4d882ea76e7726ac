// Package slowengine is the Slow HTTP Engine: a shared headless-browser
// process used to render JavaScript-heavy pages the fast engine's plain
// HTTP client can't execute.
//
// Grounded on original_source/src/engine/slow_path.rs (stealth payload,
// console-capture script, blocked-extension list, timeout/cleanup
// discipline) and the other_examples rod-based scraper
// (d8821d0c_Easonliuliang-purify__scraper-page.go.go) for the Go driver
// idiom: page pooling, hijack router, WaitDOMStable, deferred
// about:blank cleanup.
package slowengine

import (
	"context"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// ConsoleLogEntry is one captured console call or uncaught error.
type ConsoleLogEntry struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
}

// RenderResult is what a successful render produces.
type RenderResult struct {
	FinalURL    string
	HTML        string
	ConsoleLogs []ConsoleLogEntry
}

// Renderer owns a single lazily-launched browser process and a bounded
// pool of pages. A fresh page is borrowed per render and always returned
// (navigated to about:blank first) regardless of outcome.
type Renderer struct {
	pageTimeout time.Duration
	poolSize    int

	browser *rod.Browser
	pages   chan *rod.Page
}

// New constructs a Renderer. The browser itself is not launched until the
// first Render call.
func New(pageTimeout time.Duration, poolSize int) *Renderer {
	if poolSize <= 0 {
		poolSize = 4
	}
	return &Renderer{pageTimeout: pageTimeout, poolSize: poolSize}
}

func (r *Renderer) ensureBrowser() (*rod.Browser, error) {
	if r.browser != nil {
		return r.browser, nil
	}
	browser := rod.New()
	if err := browser.Connect(); err != nil {
		return nil, &RenderError{Op: "launch", Err: err}
	}
	r.browser = browser
	r.pages = make(chan *rod.Page, r.poolSize)
	return browser, nil
}

func (r *Renderer) acquirePage(browser *rod.Browser) (*rod.Page, error) {
	select {
	case page := <-r.pages:
		return page, nil
	default:
	}
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, &RenderError{Op: "acquire_page", Err: err}
	}
	return page, nil
}

// releasePage resets the page to a blank document and returns it to the
// pool, or drops it silently if the pool is full.
func (r *Renderer) releasePage(page *rod.Page) {
	_ = page.Navigate("about:blank")
	select {
	case r.pages <- page:
	default:
		_ = page.Close()
	}
}

// Render loads url in a fresh tab under ctx's deadline (bounded further by
// the configured page timeout), with stealth injection, console capture,
// and media/font/css resources hijacked off, and returns the settled HTML.
func (r *Renderer) Render(ctx context.Context, url string) (RenderResult, error) {
	browser, err := r.ensureBrowser()
	if err != nil {
		return RenderResult{}, err
	}

	page, err := r.acquirePage(browser)
	if err != nil {
		return RenderResult{}, err
	}
	defer r.releasePage(page)

	renderCtx, cancel := context.WithTimeout(ctx, r.pageTimeout)
	defer cancel()
	page = page.Context(renderCtx)

	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		return RenderResult{}, &RenderError{Op: "stealth_inject", Err: err}
	}
	if _, err := page.EvalOnNewDocument(automationIndicatorCleanupJS); err != nil {
		return RenderResult{}, &RenderError{Op: "stealth_inject", Err: err}
	}
	if _, err := page.EvalOnNewDocument(consoleCaptureJS); err != nil {
		return RenderResult{}, &RenderError{Op: "console_capture_inject", Err: err}
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(ctx *rod.Hijack) {
		if shouldBlockResource(ctx.Request.URL().String()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	defer router.MustStop()

	if err := page.Navigate(url); err != nil {
		if renderCtx.Err() != nil {
			return RenderResult{}, &RenderError{Op: "navigate", Err: renderCtx.Err(), Timeout: true}
		}
		return RenderResult{}, &RenderError{Op: "navigate", Err: err}
	}

	if err := page.WaitDOMStable(300*time.Millisecond, 0.1); err != nil && renderCtx.Err() != nil {
		return RenderResult{}, &RenderError{Op: "wait_dom_stable", Err: renderCtx.Err(), Timeout: true}
	}

	time.Sleep(500 * time.Millisecond)

	html, err := page.HTML()
	if err != nil {
		return RenderResult{}, &RenderError{Op: "extract_html", Err: err}
	}

	finalURL := url
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	return RenderResult{
		FinalURL:    finalURL,
		HTML:        html,
		ConsoleLogs: extractConsoleLogs(page),
	}, nil
}

func extractConsoleLogs(page *rod.Page) []ConsoleLogEntry {
	res, err := page.Eval(collectConsoleLogsJS)
	if err != nil {
		return nil
	}
	var entries []ConsoleLogEntry
	if err := decodeConsoleLogs(res.Value, &entries); err != nil {
		return nil
	}
	return entries
}

func decodeConsoleLogs(value gson.JSON, out *[]ConsoleLogEntry) error {
	for _, item := range value.Arr() {
		*out = append(*out, ConsoleLogEntry{
			Type:      item.Get("type").Str(),
			Timestamp: item.Get("timestamp").Int64(),
			Message:   item.Get("message").Str(),
		})
	}
	return nil
}

func shouldBlockResource(url string) bool {
	lower := strings.ToLower(url)
	for _, ext := range blockedResourceExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

// Shutdown closes the shared browser process. Safe to call on a Renderer
// that never launched a browser.
func (r *Renderer) Shutdown() error {
	if r.browser == nil {
		return nil
	}
	return r.browser.Close()
}
