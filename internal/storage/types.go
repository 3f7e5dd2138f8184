// Package storage implements the storage engine of spec §4.12: atomic
// per-file JSON persistence with an index sidecar, batch operations,
// versioning and transactions. FileStore is the one spec-normative
// backend; sqlbackend/documentbackend provide optional secondary
// backends behind the same Engine interface.
package storage

import (
	"context"
	"time"

	"github.com/productlens/extractor/internal/product"
)

// Metadata is the bookkeeping envelope stored alongside every record.
type Metadata struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Record is a stored product plus its envelope.
type Record struct {
	ID       string                 `json:"id"`
	Product  product.Data           `json:"product"`
	Metadata Metadata               `json:"metadata"`
	Extra    map[string]interface{} `json:"extra,omitempty"`
	Version  int                    `json:"version"`
}

// IndexEntry is the compact per-product row kept in index.json (spec §6).
type IndexEntry struct {
	ID        string                 `json:"id"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Title     string                 `json:"title,omitempty"`
	SKU       string                 `json:"sku,omitempty"`
	URL       string                 `json:"url,omitempty"`
	StoreName string                 `json:"store_name,omitempty"`
	Version   int                    `json:"version"`
}

// ListFilter matches on top-level index fields or "metadata.<k>" keys
// (spec §4.12's list_products).
type ListFilter map[string]string

// SortOrder is ascending or descending.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// ListOptions configures list_products.
type ListOptions struct {
	Filter    ListFilter
	Page      int
	PageSize  int
	SortBy    string
	SortOrder SortOrder
}

// SaveOptions carries the caller-supplied identity hints for product_id
// derivation (spec §4.12: "first non-empty of caller id, store_sku,
// url_hash, fresh uuid").
type SaveOptions struct {
	ID        string
	StoreName string
	Metadata  map[string]interface{}
}

// Engine is the storage capability every backend (FileStore and the
// optional sql/document backends) implements.
type Engine interface {
	SaveProduct(ctx context.Context, p product.Data, opts SaveOptions) (Record, error)
	SaveProducts(ctx context.Context, ps []product.Data, opts []SaveOptions) ([]Record, error)
	GetProduct(ctx context.Context, id string) (Record, error)
	GetProducts(ctx context.Context, ids []string) ([]Record, error)
	UpdateProduct(ctx context.Context, id string, p product.Data) (Record, error)
	UpdateProducts(ctx context.Context, updates map[string]product.Data) ([]Record, error)
	DeleteProduct(ctx context.Context, id string) error
	DeleteProducts(ctx context.Context, ids []string) error
	ListProducts(ctx context.Context, opts ListOptions) ([]Record, error)
}
