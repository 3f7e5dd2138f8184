package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/productlens/extractor/internal/product"
)

func TestTransactionCommitAppliesAddsUpdatesAndDeletes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveProduct(ctx, product.Data{Title: "existing"}, SaveOptions{ID: "to-delete"})
	require.NoError(t, err)
	_, err = s.SaveProduct(ctx, product.Data{Title: "old title"}, SaveOptions{ID: "to-update"})
	require.NoError(t, err)

	tx := NewTransaction(s)
	require.NoError(t, tx.AddProduct(product.Data{Title: "new"}, SaveOptions{ID: "new-id"}))
	require.NoError(t, tx.UpdateProduct("to-update", product.Data{Title: "new title"}))
	require.NoError(t, tx.DeleteProduct("to-delete"))

	require.NoError(t, tx.Commit(ctx))

	_, err = s.GetProduct(ctx, "new-id")
	assert.NoError(t, err)
	updated, err := s.GetProduct(ctx, "to-update")
	require.NoError(t, err)
	assert.Equal(t, "new title", updated.Product.Title)
	_, err = s.GetProduct(ctx, "to-delete")
	assert.Error(t, err)
}

func TestTransactionGetProductReadsFromPendingCache(t *testing.T) {
	s := newTestStore(t)
	tx := NewTransaction(s)
	require.NoError(t, tx.AddProduct(product.Data{Title: "pending"}, SaveOptions{ID: "p1"}))

	got, err := tx.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "pending", got.Title)
}

func TestTransactionRollbackDiscardsIntents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tx := NewTransaction(s)
	require.NoError(t, tx.AddProduct(product.Data{Title: "never saved"}, SaveOptions{ID: "p1"}))

	require.NoError(t, tx.Rollback())

	_, err := s.GetProduct(ctx, "p1")
	assert.Error(t, err)
}

func TestTransactionRejectsOperationsAfterCommit(t *testing.T) {
	s := newTestStore(t)
	tx := NewTransaction(s)
	require.NoError(t, tx.Commit(context.Background()))

	err := tx.AddProduct(product.Data{Title: "too late"}, SaveOptions{ID: "p1"})
	assert.Error(t, err)
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sentinel := assert.AnError

	err := WithTransaction(ctx, s, func(tx *Transaction) error {
		_ = tx.AddProduct(product.Data{Title: "abandoned"}, SaveOptions{ID: "p1"})
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	_, getErr := s.GetProduct(ctx, "p1")
	assert.Error(t, getErr)
}
