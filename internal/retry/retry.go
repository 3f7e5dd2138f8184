// Package retry implements the strategy-driven retry handler of spec §4.2.
// Retry policy is data — an enum plus numeric parameters — not a subclass
// hierarchy (DESIGN NOTES), so swapping strategy is a configuration change.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/productlens/extractor/internal/xerrors"
)

// Strategy selects the backoff delay formula.
type Strategy string

const (
	Fixed       Strategy = "fixed"
	Linear      Strategy = "linear"
	Exponential Strategy = "exponential"
	Fibonacci   Strategy = "fibonacci"
)

// Config carries the retry policy as plain data.
type Config struct {
	MaxRetries int
	Strategy   Strategy
	Base       time.Duration
	Factor     float64
	Jitter     float64 // fraction of delay, e.g. 0.1 = up to 10% jitter
}

// DefaultConfig mirrors common defaults across the pack's retry/backoff
// components (teacher's internal/errors/service.go RetryConfig shape).
func DefaultConfig() Config {
	return Config{MaxRetries: 3, Strategy: Exponential, Base: time.Second, Factor: 2.0, Jitter: 0.1}
}

// Result is the outcome an operation reports back to the handler so it can
// evaluate the default retry predicate (spec §4.2).
type Result struct {
	Success    bool
	HTML       string
	StatusCode int
}

// Predicate decides, given the last result and error, whether to retry.
// A nil predicate means "use DefaultPredicate".
type Predicate func(res *Result, err error) bool

var defaultRetryableStatuses = map[int]bool{
	408: true, 429: true, 500: true, 502: true, 503: true, 504: true,
}

// DefaultPredicate implements spec §4.2's default retry rule: retry if the
// result is absent, unsuccessful, has HTML shorter than 500 bytes, or
// carries a retryable HTTP status.
func DefaultPredicate(res *Result, err error) bool {
	if err != nil {
		return isRetryableError(err)
	}
	if res == nil {
		return true
	}
	if !res.Success {
		return true
	}
	if len(res.HTML) < 500 {
		return true
	}
	if defaultRetryableStatuses[res.StatusCode] {
		return true
	}
	return false
}

func isRetryableError(err error) bool {
	if cat, ok := xerrors.CategoryOf(err); ok {
		return cat.Retryable()
	}
	// Connection errors and timeouts are retryable even when not wrapped
	// in a CategorizedError (e.g. raw net.Error from the HTTP client).
	type timeout interface{ Timeout() bool }
	if t, ok := err.(timeout); ok && t.Timeout() {
		return true
	}
	return true
}

// Op is the operation the handler repeats. It returns a Result (which may
// be nil on hard failure) and an error.
type Op func(ctx context.Context, attempt int) (*Result, error)

// Handler executes an Op with the configured backoff/predicate policy.
type Handler struct {
	cfg       Config
	predicate Predicate
	sleep     func(ctx context.Context, d time.Duration) error
	rng       *rand.Rand

	attemptsUsed int
}

// New builds a Handler. A nil predicate uses DefaultPredicate.
func New(cfg Config, predicate Predicate) *Handler {
	if predicate == nil {
		predicate = DefaultPredicate
	}
	return &Handler{
		cfg:       cfg,
		predicate: predicate,
		sleep:     sleepContext,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Execute runs op up to cfg.MaxRetries additional times (spec §4.2:
// "max_retries additional times"), honouring ctx cancellation. It returns
// the last Result once the predicate stops requesting retries, or the last
// error if the final attempt produced no result at all.
func (h *Handler) Execute(ctx context.Context, op Op) (*Result, error) {
	var lastRes *Result
	var lastErr error

	for attempt := 0; attempt <= h.cfg.MaxRetries; attempt++ {
		h.attemptsUsed = attempt + 1
		res, err := op(ctx, attempt)
		lastRes, lastErr = res, err

		retry := h.predicate(res, err)
		if !retry {
			return res, err
		}
		if err != nil && !isRetryableError(err) {
			// Non-retryable errors propagate immediately without waiting.
			return res, err
		}
		if attempt == h.cfg.MaxRetries {
			break
		}

		delay := h.delayFor(attempt)
		if sleepErr := h.sleep(ctx, delay); sleepErr != nil {
			return lastRes, sleepErr
		}
	}

	if lastRes != nil {
		// The last attempt produced a result that merely failed the
		// predicate: return it rather than an error (spec §4.2).
		return lastRes, nil
	}
	return nil, lastErr
}

// AttemptsRemaining reports how many retries were left unused: MaxRetries
// minus the attempts made after the first one, floored at 0.
func (h *Handler) AttemptsRemaining() int {
	remaining := h.cfg.MaxRetries - (h.attemptsUsed - 1)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (h *Handler) delayFor(attempt int) time.Duration {
	var delay time.Duration
	switch h.cfg.Strategy {
	case Fixed:
		delay = h.cfg.Base
	case Linear:
		delay = time.Duration(float64(h.cfg.Base) * (1 + float64(attempt)*h.cfg.Factor))
	case Exponential:
		delay = time.Duration(float64(h.cfg.Base) * pow(h.cfg.Factor, attempt))
	case Fibonacci:
		delay = time.Duration(float64(h.cfg.Base) * float64(fib(attempt+1)))
	default:
		delay = h.cfg.Base
	}

	if h.cfg.Jitter > 0 {
		jitter := time.Duration(h.rng.Float64() * h.cfg.Jitter * float64(delay))
		delay += jitter
	}
	return delay
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

func fib(n int) int {
	if n <= 1 {
		return n
	}
	a, b := 0, 1
	for i := 2; i <= n; i++ {
		a, b = b, a+b
	}
	return b
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StatusRetryable reports whether an HTTP status code is retryable under
// the default policy; exposed for fetchers that want to build a Result
// without importing net/http themselves.
func StatusRetryable(status int) bool {
	return defaultRetryableStatuses[status]
}
