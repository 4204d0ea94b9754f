// Package browser drives a headless Chrome instance for the two operations
// that need a real page load: expanding shortened URLs through their redirect
// chains and observing runtime behavior (background requests, dialogs,
// downloads) for the behavior stage.
package browser

import (
	"context"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Browser wraps a headless Chrome allocator. A fresh tab context is created
// per operation so a crashed page never poisons later detections.
type Browser struct {
	timeout   time.Duration
	userAgent string
}

// New returns a browser wrapper with the given per-operation timeout.
func New(timeout time.Duration, userAgent string) *Browser {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Browser{timeout: timeout, userAgent: userAgent}
}

func (b *Browser) allocate(ctx context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if b.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.userAgent))
	}

	timeoutCtx, timeoutCancel := context.WithTimeout(ctx, b.timeout)
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	cancel := func() {
		tabCancel()
		allocCancel()
		timeoutCancel()
	}
	return tabCtx, cancel
}

// ExpansionResult describes where a URL actually leads.
type ExpansionResult struct {
	FinalURL    string `json:"final_url"`
	Unreachable bool   `json:"unreachable"`
	Error       string `json:"error,omitempty"`
}

// ExpandURL loads the URL and reports the address the browser ends up on.
// A navigation failure marks the link unreachable; for shortened links an
// expired or taken-down destination is itself a phishing signal.
func (b *Browser) ExpandURL(ctx context.Context, rawURL string) ExpansionResult {
	tabCtx, cancel := b.allocate(ctx)
	defer cancel()

	var finalURL string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		log.Printf("[Browser] expand %s failed: %v", rawURL, err)
		return ExpansionResult{FinalURL: rawURL, Unreachable: true, Error: err.Error()}
	}
	return ExpansionResult{FinalURL: finalURL}
}

// PageBehavior is what the behavior stage observed during a page load.
type PageBehavior struct {
	FinalURL           string   `json:"final_url"`
	RedirectCount      int      `json:"redirect_count"`
	BackgroundRequests int      `json:"background_requests"`
	ExternalDomains    []string `json:"external_domains,omitempty"`
	DialogOpened       bool     `json:"dialog_opened"`
	DownloadStarted    bool     `json:"download_started"`
	Error              string   `json:"error,omitempty"`
}

// ObservePage loads the URL with network instrumentation enabled and records
// redirects, cross-domain background requests, JavaScript dialogs, and
// download attempts.
func (b *Browser) ObservePage(ctx context.Context, rawURL string) PageBehavior {
	tabCtx, cancel := b.allocate(ctx)
	defer cancel()

	originalHost := hostOf(rawURL)
	behavior := PageBehavior{FinalURL: rawURL}

	var mu sync.Mutex
	externalDomains := make(map[string]bool)

	chromedp.ListenTarget(tabCtx, func(ev any) {
		mu.Lock()
		defer mu.Unlock()
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			behavior.BackgroundRequests++
			if e.RedirectResponse != nil {
				behavior.RedirectCount++
			}
			if h := hostOf(e.Request.URL); h != "" && h != originalHost {
				externalDomains[h] = true
			}
		case *page.EventJavascriptDialogOpening:
			behavior.DialogOpened = true
			// Dismiss so the load can finish.
			go func() {
				_ = chromedp.Run(tabCtx, page.HandleJavaScriptDialog(false))
			}()
		case *browser.EventDownloadWillBegin:
			behavior.DownloadStarted = true
		}
	})

	var finalURL string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorDeny),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(2*time.Second), // let late background requests fire
		chromedp.Location(&finalURL),
	)

	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		behavior.Error = err.Error()
		return behavior
	}
	behavior.FinalURL = finalURL
	for d := range externalDomains {
		behavior.ExternalDomains = append(behavior.ExternalDomains, d)
	}
	return behavior
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
