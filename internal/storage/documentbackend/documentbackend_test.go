package documentbackend

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/productlens/extractor/internal/product"
	"github.com/productlens/extractor/internal/storage"
)

// connString requires a real mongod; these tests exercise the Engine
// contract against it and are skipped unless the environment names one,
// matching the pack's "skip unless externally configured" idiom for
// database-backed integration tests.
func connString(t *testing.T) string {
	t.Helper()
	uri := os.Getenv("PRODUCTLENS_MONGO_TEST_URI")
	if uri == "" {
		t.Skip("PRODUCTLENS_MONGO_TEST_URI not set, skipping MongoDB-backed storage test")
	}
	return uri
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Connect(ctx, connString(t), Options{Database: "productlens_test", Collection: "products_test", Versioning: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		s.products.Drop(context.Background())
		s.versions.Drop(context.Background())
		s.Close(context.Background())
	})
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

func TestUpdateProductMergesAndBumpsVersion(t *testing.T) {
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

var _ storage.Engine = (*Store)(nil)
