package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/productlens/extractor/internal/product"
)

func TestIsDuplicateByIDMatchesCaseInsensitiveTrimmed(t *testing.T) {
	a := product.Data{SKU: " ABC-123 "}
	b := product.Data{SKU: "abc-123"}
	assert.True(t, IsDuplicateByID(a, b))
}

func TestIsDuplicateByIDFalseWhenNoSharedIdentifier(t *testing.T) {
	a := product.Data{SKU: "ABC-123"}
	b := product.Data{UPC: "999"}
	assert.False(t, IsDuplicateByID(a, b))
}

func TestSimilarityScoreRenormalisesByAppliedWeight(t *testing.T) {
	a := product.Data{Title: "Wireless Mouse"}
	b := product.Data{Title: "Wireless Mouse"}
	score := SimilarityScore(a, b)
	assert.Equal(t, 1.0, score) // only title applied, renormalised to its own weight
}

func TestFindDuplicatesDiscardsSingletonGroups(t *testing.T) {
	products := []product.Data{
		{SKU: "A"},
		{SKU: "A"},
		{SKU: "B"},
	}
	groups := FindDuplicates(products, 0.85)
	require.Len(t, groups, 1)
	assert.ElementsMatch(t, []int{0, 1}, groups[0])
}

func TestMergeProductsRejectsEmptyGroup(t *testing.T) {
	_, err := MergeProducts(nil, MergeLatest)
	assert.Error(t, err)
}

func TestMergeProductsLatestPicksMostRecent(t *testing.T) {
	older := product.Data{Title: "old", ExtractedAt: time.Now().Add(-time.Hour)}
	newer := product.Data{Title: "new", ExtractedAt: time.Now()}
	merged, err := MergeProducts([]product.Data{older, newer}, MergeLatest)
	require.NoError(t, err)
	assert.Equal(t, "new", merged.Title)
}

func TestMergeProductsCombineFillsFromOthers(t *testing.T) {
	a := product.Data{Title: "Mouse", SKU: "A"}
	b := product.Data{Title: "Mouse", Brand: "Acme"}
	merged, err := MergeProducts([]product.Data{a, b}, MergeCombine)
	require.NoError(t, err)
	assert.Equal(t, "Acme", merged.Brand)
	assert.Equal(t, "A", merged.SKU)
}
