package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/productlens/extractor/internal/product"
	"github.com/productlens/extractor/internal/xerrors"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), true)
	require.NoError(t, err)
	return s
}

func TestSaveProductThenGetProductRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.SaveProduct(ctx, product.Data{Title: "Mouse", SKU: "A1"}, SaveOptions{ID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "p1", rec.ID)
	assert.Equal(t, 1, rec.Version)

	got, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Mouse", got.Product.Title)
}

func TestSaveProductRejectsDuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveProduct(ctx, product.Data{Title: "Mouse"}, SaveOptions{ID: "dup"})
	require.NoError(t, err)

	_, err = s.SaveProduct(ctx, product.Data{Title: "Mouse2"}, SaveOptions{ID: "dup"})
	require.Error(t, err)
	cat, ok := xerrors.CategoryOf(err)
	require.True(t, ok)
	assert.Equal(t, xerrors.Storage, cat)
}

func TestDeriveIDPrefersStoreSKUThenURLHashThenUUID(t *testing.T) {
	byStoreSKU := deriveID(product.Data{SKU: "X1"}, SaveOptions{StoreName: "acme"})
	assert.Equal(t, "acme_X1", byStoreSKU)

	byURL := deriveID(product.Data{URL: "https://example.com/p/1"}, SaveOptions{})
	assert.Contains(t, byURL, "url_")

	byUUID := deriveID(product.Data{}, SaveOptions{})
	assert.NotEmpty(t, byUUID)
}

func TestGetProductsFailsIfAnyIDMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.SaveProduct(ctx, product.Data{Title: "A"}, SaveOptions{ID: "only"})
	require.NoError(t, err)

	_, err = s.GetProducts(ctx, []string{"only", "missing"})
	assert.Error(t, err)
}

func TestUpdateProductMergesAndBumpsVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.SaveProduct(ctx, product.Data{Title: "Old", Brand: "Acme"}, SaveOptions{ID: "p1"})
	require.NoError(t, err)

	updated, err := s.UpdateProduct(ctx, "p1", product.Data{Title: "New"})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Product.Title)
	assert.Equal(t, "Acme", updated.Product.Brand) // preserved from existing
	assert.Equal(t, 2, updated.Version)

	versions, err := s.ListProductVersions("p1")
	require.NoError(t, err)
	assert.Contains(t, versions, 1)
}

func TestListProductVersionsCoversEveryUpdateIncludingCurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.SaveProduct(ctx, product.Data{Title: "A", Price: product.Price{CurrentPrice: 1, Currency: "USD"}}, SaveOptions{ID: "p1"})
	require.NoError(t, err)

	_, err = s.UpdateProduct(ctx, "p1", product.Data{Price: product.Price{CurrentPrice: 2, Currency: "USD"}})
	require.NoError(t, err)
	_, err = s.UpdateProduct(ctx, "p1", product.Data{Price: product.Price{CurrentPrice: 3, Currency: "USD"}})
	require.NoError(t, err)

	versions, err := s.ListProductVersions("p1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2, 3}, versions)

	v3, err := s.GetProductVersion("p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v3.Product.Price.CurrentPrice)
}

func TestDeleteProductRemovesFromIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.SaveProduct(ctx, product.Data{Title: "A"}, SaveOptions{ID: "p1"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteProduct(ctx, "p1"))
	_, err = s.GetProduct(ctx, "p1")
	assert.Error(t, err)
}

func TestListProductsFiltersSortsAndPaginates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, _ = s.SaveProduct(ctx, product.Data{Title: "Banana"}, SaveOptions{ID: "a"})
	_, _ = s.SaveProduct(ctx, product.Data{Title: "Apple"}, SaveOptions{ID: "b"})
	_, _ = s.SaveProduct(ctx, product.Data{Title: "Cherry"}, SaveOptions{ID: "c"})

	recs, err := s.ListProducts(ctx, ListOptions{SortBy: "title", SortOrder: Ascending, PageSize: 2, Page: 1})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Apple", recs[0].Product.Title)
	assert.Equal(t, "Banana", recs[1].Product.Title)
}
