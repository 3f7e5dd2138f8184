// Package ratelimit implements the token-interval rate limiter of spec
// §4.1: one limiter per fetcher instance, serialised acquisition, no
// shared state across instances. It adapts the teacher's
// golang.org/x/time/rate usage (internal/scraper/ratelimiter.go) down to
// the simpler single-knob contract the spec requires.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/productlens/extractor/internal/xerrors"
)

// Limiter enforces a minimum interval of 60/N seconds between successive
// fetch start-times. Acquire is the single serialisation point: once it
// returns, the caller's actual work (the fetch itself) proceeds unlocked,
// so many fetches may overlap in flight.
type Limiter struct {
	mu               sync.Mutex
	rl               *rate.Limiter
	requestsPerMinute float64
}

// New builds a Limiter for requestsPerMinute requests per minute. A
// non-positive rate is a configuration error (spec §8 boundary: "Rate
// limiter with N=0 -> rejected at construction").
func New(requestsPerMinute float64) (*Limiter, error) {
	if requestsPerMinute <= 0 {
		return nil, xerrors.ConfigErr("ratelimit", "requests_per_minute must be > 0", nil)
	}
	interval := time.Duration(float64(time.Minute) / requestsPerMinute)
	return &Limiter{
		rl:                rate.NewLimiter(rate.Every(interval), 1),
		requestsPerMinute: requestsPerMinute,
	}, nil
}

// Acquire blocks (cooperatively) until the minimum interval has elapsed
// since the previous acquisition, or ctx is cancelled. Acquire holds the
// lock for the whole wait, so concurrent callers acquire one at a time; the
// fetch that follows runs after Acquire returns, outside the lock.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.rl.Wait(ctx); err != nil {
		return xerrors.FetchErr("ratelimit", "wait for rate limiter slot", err)
	}
	return nil
}

// Interval returns the configured minimum interval between fetch starts.
func (l *Limiter) Interval() time.Duration {
	return time.Duration(float64(time.Minute) / l.requestsPerMinute)
}
