// internal/browser/pool.go
package browser

import (
	"context"
	"sync"

	"github.com/chromedp/chromedp"
)

// allocator is one long-lived headless Chrome OS process. Renderer never
// navigates directly on an allocator's context — every request gets its own
// chromedp.NewContext tab carved out of the allocator and closed when the
// request finishes, so pooling only amortizes process startup cost, never
// cross-request browser state (spec §4.3).
type allocator struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// AllocatorPool bounds how many concurrent headless Chrome processes are
// alive at once, adapted from the teacher's BrowserPool which pooled whole
// reusable clients rather than disposable per-request tabs.
type AllocatorPool struct {
	cfg  *BrowserConfig
	slot chan *allocator
	mu   sync.Mutex
	size int
	max  int
}

func NewAllocatorPool(cfg *BrowserConfig) (*AllocatorPool, error) {
	if cfg == nil {
		cfg = DefaultBrowserConfig()
	}
	max := cfg.PoolSize
	if max <= 0 {
		max = 1
	}
	return &AllocatorPool{cfg: cfg, slot: make(chan *allocator, max), max: max}, nil
}

// Get returns an allocator, creating a fresh Chrome process if the pool has
// room, or blocking until one is released otherwise.
func (p *AllocatorPool) Get(ctx context.Context) (*allocator, error) {
	select {
	case a := <-p.slot:
		return a, nil
	default:
	}

	p.mu.Lock()
	if p.size < p.max {
		p.size++
		p.mu.Unlock()
		return p.spawn()
	}
	p.mu.Unlock()

	select {
	case a := <-p.slot:
		return a, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *AllocatorPool) spawn() (*allocator, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
	)
	if p.cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if p.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(p.cfg.UserAgent))
	}
	if p.cfg.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &allocator{ctx: allocCtx, cancel: cancel}, nil
}

// Put returns an allocator for reuse by a later request.
func (p *AllocatorPool) Put(a *allocator) {
	select {
	case p.slot <- a:
	default:
		a.cancel()
		p.mu.Lock()
		p.size--
		p.mu.Unlock()
	}
}

// Size reports the number of allocators currently checked in.
func (p *AllocatorPool) Size() int {
	return len(p.slot)
}

// Close terminates every Chrome process owned by the pool.
func (p *AllocatorPool) Close() error {
	close(p.slot)
	for a := range p.slot {
		a.cancel()
	}
	return nil
}
