package browser

import "testing"

func TestDefaultBrowserConfig(t *testing.T) {
	cfg := DefaultBrowserConfig()

	if cfg.Enabled {
		t.Error("expected browser disabled by default")
	}
	if !cfg.Headless {
		t.Error("expected headless by default")
	}
	if cfg.PoolSize != 3 {
		t.Errorf("expected default pool size 3, got %d", cfg.PoolSize)
	}
}

func TestAllocatorPoolSizeBound(t *testing.T) {
	pool, err := NewAllocatorPool(&BrowserConfig{PoolSize: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.max != 1 {
		t.Errorf("expected PoolSize<=0 to clamp to 1, got %d", pool.max)
	}
}
