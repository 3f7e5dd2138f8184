package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/productlens/extractor/internal/fetch"
	"github.com/productlens/extractor/internal/product"
	"github.com/productlens/extractor/internal/retry"
)

func TestMergeTwoPrefersLongerFreeTextField(t *testing.T) {
	a := product.Data{Title: "Mouse", Description: "Short"}
	b := product.Data{Title: "Mouse", Description: "A much longer description of the mouse"}

	merged := mergeTwo(a, mergePriority[StrategyCSS], b, mergePriority[StrategyXPath])
	assert.Equal(t, "A much longer description of the mouse", merged.Description)
}

func TestMergeTwoUnionsImagesByURL(t *testing.T) {
	a := product.Data{Images: []product.Image{{URL: "a.jpg"}, {URL: "shared.jpg"}}}
	b := product.Data{Images: []product.Image{{URL: "shared.jpg"}, {URL: "b.jpg"}}}

	merged := mergeTwo(a, 1, b, 1)
	assert.Len(t, merged.Images, 3)
}

func TestMergeTwoPrefersMoreCompletePriceObject(t *testing.T) {
	a := product.Data{Price: product.Price{CurrentPrice: 10, Currency: "USD"}}
	b := product.Data{Price: product.Price{CurrentPrice: 10, Currency: "USD", OriginalPrice: 20, DiscountAmount: 10}}

	merged := mergeTwo(a, mergePriority[StrategyCSS], b, mergePriority[StrategyAuto])
	assert.Equal(t, 20.0, merged.Price.OriginalPrice)
}

func TestHybridRunReturnsFailedWhenFetchFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f, err := fetch.New(6000, nil, nil)
	require.NoError(t, err)

	h := &Hybrid{Fetcher: f}
	data := h.Run(context.Background(), srv.URL, nil, retry.Config{MaxRetries: 0, Strategy: retry.Fixed, Base: time.Millisecond})
	assert.False(t, data.ExtractionSuccess)
}
