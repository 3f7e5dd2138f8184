package sqlbackend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/productlens/extractor/internal/product"
	"github.com/productlens/extractor/internal/storage"
	"github.com/productlens/extractor/internal/xerrors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite3", "file::memory:?cache=shared", Options{Versioning: true})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveProductThenGetProductRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.SaveProduct(ctx, product.Data{Title: "Mouse", SKU: "A1"}, storage.SaveOptions{ID: "p1"})
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

	_, err := s.SaveProduct(ctx, product.Data{Title: "A"}, storage.SaveOptions{ID: "dup"})
	require.NoError(t, err)

	_, err = s.SaveProduct(ctx, product.Data{Title: "B"}, storage.SaveOptions{ID: "dup"})
	require.Error(t, err)
	cat, ok := xerrors.CategoryOf(err)
	require.True(t, ok)
	assert.Equal(t, xerrors.Storage, cat)
}

func TestUpdateProductMergesAndBumpsVersionAndWritesHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.SaveProduct(ctx, product.Data{Title: "Old", Brand: "Acme"}, storage.SaveOptions{ID: "p1"})
	require.NoError(t, err)

	updated, err := s.UpdateProduct(ctx, "p1", product.Data{Title: "New"})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Product.Title)
	assert.Equal(t, "Acme", updated.Product.Brand)
	assert.Equal(t, 2, updated.Version)

	versions, err := s.ListProductVersions(ctx, "p1")
	require.NoError(t, err)
	assert.Contains(t, versions, 1)
}

func TestUpdateProductTwiceWritesFullVersionHistoryWithoutConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.SaveProduct(ctx, product.Data{Title: "A", Price: product.Price{CurrentPrice: 1, Currency: "USD"}}, storage.SaveOptions{ID: "p1"})
	require.NoError(t, err)

	_, err = s.UpdateProduct(ctx, "p1", product.Data{Price: product.Price{CurrentPrice: 2, Currency: "USD"}})
	require.NoError(t, err)
	_, err = s.UpdateProduct(ctx, "p1", product.Data{Price: product.Price{CurrentPrice: 3, Currency: "USD"}})
	require.NoError(t, err)

	versions, err := s.ListProductVersions(ctx, "p1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2, 3}, versions)

	v3, err := s.GetProductVersion(ctx, "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v3.Product.Price.CurrentPrice)
}

func TestDeleteProductsFailsIfAnyIDMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.SaveProduct(ctx, product.Data{Title: "A"}, storage.SaveOptions{ID: "p1"})
	require.NoError(t, err)

	err = s.DeleteProducts(ctx, []string{"p1", "missing"})
	assert.Error(t, err)

	// p1 must still exist: the batch is all-or-nothing.
	_, err = s.GetProduct(ctx, "p1")
	assert.NoError(t, err)
}

func TestListProductsFiltersSortsAndPaginates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, _ = s.SaveProduct(ctx, product.Data{Title: "Banana"}, storage.SaveOptions{ID: "a"})
	_, _ = s.SaveProduct(ctx, product.Data{Title: "Apple"}, storage.SaveOptions{ID: "b"})
	_, _ = s.SaveProduct(ctx, product.Data{Title: "Cherry"}, storage.SaveOptions{ID: "c"})

	recs, err := s.ListProducts(ctx, storage.ListOptions{SortBy: "title", SortOrder: storage.Ascending, PageSize: 2, Page: 1})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Apple", recs[0].Product.Title)
	assert.Equal(t, "Banana", recs[1].Product.Title)
}

var _ storage.Engine = (*Store)(nil)
