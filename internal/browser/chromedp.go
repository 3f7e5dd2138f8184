// internal/browser/chromedp.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// LoadState is one of the ordered page-readiness conditions the fetcher
// tries in sequence (spec §4.3 step 1).
type LoadState string

const (
	LoadStateNetworkIdle      LoadState = "networkidle"
	LoadStateDOMContentLoaded LoadState = "domcontentloaded"
	LoadStateLoad             LoadState = "load"
)

// DefaultLoadStateOrder is the ordered set the fetcher tries, accepting the
// first that succeeds. Every state is awaited the same way (the body element
// becoming ready); the state name only labels a failure.
var DefaultLoadStateOrder = []LoadState{LoadStateNetworkIdle, LoadStateDOMContentLoaded, LoadStateLoad}

// WaitSpec describes the ordered, all-optional wait conditions of spec
// §4.3: a load state, a CSS selector, a polled predicate expression, and a
// fixed settle delay. Every one that is set must eventually be satisfied or
// time out.
type WaitSpec struct {
	LoadStates  []LoadState
	Selector    string
	Predicate   string
	SettleDelay time.Duration
}

// RenderResult is what a single render call yields.
type RenderResult struct {
	HTML     string
	FinalURL string
}

// Renderer opens one browser context per call and closes it unconditionally
// on every exit path (spec §4.3, §5 "scoped-acquisition idiom"), unlike the
// teacher's ChromeClient which kept one long-lived context across many
// Navigate calls. The underlying Chrome process comes from an AllocatorPool
// so repeated requests don't pay full process startup cost, but the
// navigation context itself is always fresh and never shared.
type Renderer struct {
	cfg  *BrowserConfig
	pool *AllocatorPool
}

func NewRenderer(cfg *BrowserConfig) (*Renderer, error) {
	if cfg == nil {
		cfg = DefaultBrowserConfig()
	}
	pool, err := NewAllocatorPool(cfg)
	if err != nil {
		return nil, err
	}
	return &Renderer{cfg: cfg, pool: pool}, nil
}

// Close releases every pooled Chrome process.
func (r *Renderer) Close() error {
	return r.pool.Close()
}

// Render navigates to url in a fresh tab, applies the wait chain, extracts
// the outer HTML, and closes the tab before returning — regardless of
// success, retryable error, or cancellation (spec §5 resource discipline).
func (r *Renderer) Render(ctx context.Context, url string, timeout time.Duration, wait WaitSpec) (RenderResult, error) {
	alloc, err := r.pool.Get(ctx)
	if err != nil {
		return RenderResult{}, fmt.Errorf("acquire browser process: %w", err)
	}
	defer r.pool.Put(alloc)

	tabCtx, tabCancel := chromedp.NewContext(alloc.ctx)
	defer tabCancel()

	if timeout <= 0 {
		timeout = r.cfg.Timeout
	}
	if timeout > 0 {
		var timeoutCancel context.CancelFunc
		tabCtx, timeoutCancel = context.WithTimeout(tabCtx, timeout)
		defer timeoutCancel()
	}

	if err := chromedp.Run(tabCtx, chromedp.Navigate(url)); err != nil {
		return RenderResult{}, fmt.Errorf("navigate failed: %w", err)
	}

	if err := applyWaitChain(tabCtx, wait); err != nil {
		return RenderResult{}, err
	}

	var html, finalURL string
	if err := chromedp.Run(tabCtx,
		chromedp.OuterHTML("html", &html),
		chromedp.Location(&finalURL),
	); err != nil {
		return RenderResult{}, fmt.Errorf("extract html failed: %w", err)
	}

	return RenderResult{HTML: html, FinalURL: finalURL}, nil
}

// applyWaitChain runs each configured wait condition in the §4.3 order,
// trying load states in sequence and accepting the first that succeeds
// (see waitAnyLoadState for how a state is awaited).
func applyWaitChain(ctx context.Context, wait WaitSpec) error {
	if len(wait.LoadStates) > 0 {
		if err := waitAnyLoadState(ctx, wait.LoadStates); err != nil {
			return fmt.Errorf("load state wait failed: %w", err)
		}
	}

	if wait.Selector != "" {
		if err := chromedp.Run(ctx, chromedp.WaitVisible(wait.Selector, chromedp.ByQuery)); err != nil {
			return fmt.Errorf("selector wait failed: %w", err)
		}
	}

	if wait.Predicate != "" {
		if err := pollPredicate(ctx, wait.Predicate, 100*time.Millisecond); err != nil {
			return fmt.Errorf("predicate wait failed: %w", err)
		}
	}

	if wait.SettleDelay > 0 {
		if err := chromedp.Run(ctx, chromedp.Sleep(wait.SettleDelay)); err != nil {
			return fmt.Errorf("settle delay failed: %w", err)
		}
	}

	return nil
}

// waitAnyLoadState waits for the body element to be ready once per listed
// state, returning at the first success. The states are not told apart:
// each is awaited by the same body-ready check, and its name appears only
// in the error when every attempt fails.
func waitAnyLoadState(ctx context.Context, states []LoadState) error {
	var lastErr error
	for _, state := range states {
		err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			return chromedp.WaitReady("body", chromedp.ByQuery).Do(ctx)
		}))
		if err == nil {
			return nil
		}
		lastErr = fmt.Errorf("%s: %w", state, err)
	}
	return lastErr
}

func pollPredicate(ctx context.Context, expr string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		var result bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &result)); err == nil && result {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
