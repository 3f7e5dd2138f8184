package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/productlens/extractor/internal/filter"
	"github.com/productlens/extractor/internal/retry"
)

func TestCrawlSucceedsAndAppliesFilterChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1 class="title">Widget</h1></body></html>`))
	}))
	defer srv.Close()

	f, err := New(6000, nil, nil)
	require.NoError(t, err)

	chain, err := filter.NewChain("titles", filter.All, filter.CSS{Selector: "h1.title", ExtractText: true})
	require.NoError(t, err)

	res, err := f.Crawl(context.Background(), srv.URL, Options{FilterChain: chain}, retry.Config{MaxRetries: 1, Strategy: retry.Fixed, Base: time.Millisecond})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Contains(t, res.HTML, "Widget")
	require.Len(t, res.ExtractedContent, 2) // header line + match
	assert.Equal(t, "Widget", res.ExtractedContent[1])
}

func TestCrawlReturnsUnsuccessfulResultOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f, err := New(6000, nil, nil)
	require.NoError(t, err)

	res, err := f.Crawl(context.Background(), srv.URL, Options{}, retry.Config{MaxRetries: 1, Strategy: retry.Fixed, Base: time.Millisecond})
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestCrawlWithoutRendererFailsRenderJSRequest(t *testing.T) {
	f, err := New(6000, nil, nil)
	require.NoError(t, err)

	res, err := f.Crawl(context.Background(), "https://example.com", Options{RenderJS: true}, retry.Config{MaxRetries: 0, Strategy: retry.Fixed, Base: time.Millisecond})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no renderer")
}
