// Package fetch implements the Fetcher of spec §4.3: rate-limited,
// retried retrieval of a URL's HTML, optionally through a headless browser
// for JavaScript-rendered pages, with an optional filter chain applied to
// the raw HTML before it's returned.
package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/publicsuffix"

	"github.com/productlens/extractor/internal/browser"
	"github.com/productlens/extractor/internal/filter"
	"github.com/productlens/extractor/internal/ratelimit"
	"github.com/productlens/extractor/internal/retry"
	"github.com/productlens/extractor/internal/telemetry"
	"github.com/productlens/extractor/internal/xerrors"
)

// Options configures a single Crawl call.
type Options struct {
	UserAgent    string
	Headers      map[string]string
	Timeout      time.Duration
	RenderJS     bool
	Wait         browser.WaitSpec
	FilterChain  filter.Filter
	WantMarkdown bool
}

// CrawlResult is the outcome of a single fetch, mirroring the request's
// success/failure without raising on recoverable failures (spec §3/§4.3).
type CrawlResult struct {
	Success          bool
	HTML             string
	Markdown         string
	ExtractedContent []string
	URL              string
	Timestamp        time.Time
	Error            string
	Retries          int
}

// Fetcher ties one rate limiter and retry handler to an HTTP client and an
// optional browser renderer. Each Fetcher instance owns its own limiter —
// no state is shared across instances (spec §4.1).
type Fetcher struct {
	client   *http.Client
	limiter  *ratelimit.Limiter
	renderer *browser.Renderer
	log      telemetry.Logger
}

// New builds a Fetcher. renderer may be nil when JS rendering is never
// requested; if RenderJS is set on a Fetcher with no renderer, Crawl returns
// an unsuccessful CrawlResult whose Error carries the Render-category error.
func New(requestsPerMinute float64, renderer *browser.Renderer, log telemetry.Logger) (*Fetcher, error) {
	limiter, err := ratelimit.New(requestsPerMinute)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, xerrors.ConfigErr("fetch", "cookie jar", err)
	}

	client := &http.Client{
		Jar: jar,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	if log == nil {
		log = telemetry.Noop()
	}

	return &Fetcher{client: client, limiter: limiter, renderer: renderer, log: log}, nil
}

// Crawl fetches url under the fetcher's rate limit and retry policy,
// applying opts.FilterChain to the resulting HTML when set.
func (f *Fetcher) Crawl(ctx context.Context, url string, opts Options, retryCfg retry.Config) (*CrawlResult, error) {
	handler := retry.New(retryCfg, nil)

	var lastFetchErr error
	res, err := handler.Execute(ctx, func(ctx context.Context, attempt int) (*retry.Result, error) {
		if acqErr := f.limiter.Acquire(ctx); acqErr != nil {
			return nil, acqErr
		}

		html, statusCode, fetchErr := f.fetchOnce(ctx, url, opts)
		if fetchErr != nil {
			lastFetchErr = fetchErr
			return &retry.Result{Success: false, StatusCode: statusCode}, fetchErr
		}
		ok := statusCode == 0 || (statusCode >= 200 && statusCode < 300)
		if !ok {
			lastFetchErr = xerrors.FetchErr("http", "non-success status", nil)
		}
		return &retry.Result{Success: ok, HTML: html, StatusCode: statusCode}, nil
	})

	out := &CrawlResult{URL: url, Timestamp: time.Now(), Retries: retryCfg.MaxRetries - handler.AttemptsRemaining()}
	if err != nil {
		out.Success = false
		out.Error = err.Error()
		return out, nil
	}
	if res == nil || !res.Success {
		out.Success = false
		if lastFetchErr != nil {
			out.Error = lastFetchErr.Error()
		} else {
			out.Error = "fetch did not succeed within retry budget"
		}
		return out, nil
	}

	out.Success = true
	out.HTML = res.HTML

	if opts.WantMarkdown {
		if mdOut, mdErr := md.ConvertString(res.HTML); mdErr == nil {
			out.Markdown = mdOut
		} else {
			f.log.Warn("markdown conversion failed", telemetry.Err(mdErr))
		}
	}

	if opts.FilterChain != nil {
		fragments, filterErr := opts.FilterChain.Filter(ctx, res.HTML)
		if filterErr != nil {
			return nil, filterErr
		}
		out.ExtractedContent = fragments
	}

	return out, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string, opts Options) (string, int, error) {
	if opts.RenderJS {
		return f.fetchRendered(ctx, url, opts)
	}
	return f.fetchHTTP(ctx, url, opts)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, url string, opts Options) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, xerrors.FetchErr("http", "build request", err)
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	client := f.client
	if opts.Timeout > 0 {
		clientCopy := *f.client
		clientCopy.Timeout = opts.Timeout
		client = &clientCopy
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, xerrors.FetchErr("http", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, xerrors.FetchErr("http", "read body", err)
	}

	return string(body), resp.StatusCode, nil
}

func (f *Fetcher) fetchRendered(ctx context.Context, url string, opts Options) (string, int, error) {
	if f.renderer == nil {
		return "", 0, xerrors.RenderErr("browser", "no renderer configured for this fetcher", nil)
	}
	result, err := f.renderer.Render(ctx, url, opts.Timeout, opts.Wait)
	if err != nil {
		return "", 0, xerrors.RenderErr("browser", "render failed", err)
	}
	return result.HTML, http.StatusOK, nil
}

// Close releases the underlying browser renderer's resources, if any.
func (f *Fetcher) Close() error {
	if f.renderer != nil {
		return f.renderer.Close()
	}
	return nil
}
