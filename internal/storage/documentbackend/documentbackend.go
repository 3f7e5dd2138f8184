// Package documentbackend adapts the teacher's internal/output/mongodb.go
// connector into a storage.Engine implementation: one document per product
// in a single collection, with a sibling "<collection>_versions" collection
// standing in for the filesystem backend's versions/ directory.
//
// It is an optional secondary backend (SPEC_FULL.md B.1) — storage.FileStore
// remains the spec-normative one.
package documentbackend

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/productlens/extractor/internal/product"
	"github.com/productlens/extractor/internal/storage"
	"github.com/productlens/extractor/internal/xerrors"
)

// Store is a storage.Engine backed by a MongoDB collection.
type Store struct {
	client     *mongo.Client
	products   *mongo.Collection
	versions   *mongo.Collection
	versioning bool
}

// Options configures a Store beyond the bare connection string.
type Options struct {
	Database   string
	Collection string // defaults to "products"
	Versioning bool
}

type doc struct {
	ID        string                 `bson:"_id"`
	Record    storage.Record         `bson:"record"`
	Title     string                 `bson:"title"`
	SKU       string                 `bson:"sku"`
	URL       string                 `bson:"url"`
	StoreName string                 `bson:"store_name"`
	Version   int                    `bson:"version"`
	Metadata  map[string]interface{} `bson:"metadata,omitempty"`
}

type versionDoc struct {
	ID      string         `bson:"_id"`
	Record  storage.Record `bson:"record"`
	Version int            `bson:"version"`
}

// Connect opens a MongoDB client against the connection string and returns
// a Store bound to Options.Collection (default "products").
func Connect(ctx context.Context, connectionString string, opts Options) (*Store, error) {
	if opts.Collection == "" {
		opts.Collection = "products"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, xerrors.StorageErr("documentbackend", "connect", eris.Wrap(xerrors.ErrStorageConnection, err.Error()))
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, xerrors.StorageErr("documentbackend", "ping", eris.Wrap(xerrors.ErrStorageConnection, err.Error()))
	}

	db := client.Database(opts.Database)
	s := &Store{
		client:     client,
		products:   db.Collection(opts.Collection),
		versions:   db.Collection(opts.Collection + "_versions"),
		versioning: opts.Versioning,
	}

	idx := mongo.IndexModel{Keys: bson.D{{Key: "sku", Value: 1}}, Options: options.Index().SetSparse(true)}
	s.products.Indexes().CreateOne(ctx, idx)
	return s, nil
}

// Close disconnects the MongoDB client.
func (s *Store) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

// SaveProduct fails with ErrDuplicateProduct if id already exists.
func (s *Store) SaveProduct(ctx context.Context, p product.Data, opts storage.SaveOptions) (storage.Record, error) {
	recs, err := s.SaveProducts(ctx, []product.Data{p}, []storage.SaveOptions{opts})
	if err != nil {
		return storage.Record{}, err
	}
	return recs[0], nil
}

// SaveProducts performs the all-or-nothing duplicate check then inserts
// every document, matching spec §4.12's batch contract.
func (s *Store) SaveProducts(ctx context.Context, ps []product.Data, opts []storage.SaveOptions) ([]storage.Record, error) {
	now := time.Now().UTC()
	recs := make([]storage.Record, len(ps))
	docs := make([]interface{}, len(ps))
	for i, p := range ps {
		o := storage.SaveOptions{}
		if i < len(opts) {
			o = opts[i]
		}
		id := storage.DeriveID(p, o)

		count, err := s.products.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return nil, xerrors.StorageErr("documentbackend", "exists", eris.Wrap(err, id))
		}
		if count > 0 {
			return nil, xerrors.StorageErr("documentbackend", "save_product", eris.Wrap(xerrors.ErrDuplicateProduct, id))
		}
		if p.ExtractedAt.IsZero() {
			p.ExtractedAt = now
		}
		r := storage.Record{ID: id, Product: p, Metadata: storage.Metadata{CreatedAt: now, UpdatedAt: now}, Extra: o.Metadata, Version: 1}
		recs[i] = r
		docs[i] = doc{ID: id, Record: r, Title: p.Title, SKU: p.SKU, URL: p.URL, StoreName: o.StoreName, Version: 1, Metadata: o.Metadata}
	}

	if _, err := s.products.InsertMany(ctx, docs); err != nil {
		return nil, xerrors.StorageErr("documentbackend", "insert_many", eris.Wrap(err, "save_products"))
	}
	if s.versioning {
		vdocs := make([]interface{}, len(recs))
		for i, r := range recs {
			vdocs[i] = versionDoc{ID: r.ID + ":1", Record: r, Version: 1}
		}
		if _, err := s.versions.InsertMany(ctx, vdocs); err != nil {
			return nil, xerrors.StorageErr("documentbackend", "insert versions", eris.Wrap(err, "save_products"))
		}
	}
	return recs, nil
}

// GetProduct fails with ErrProductNotFound if missing.
func (s *Store) GetProduct(ctx context.Context, id string) (storage.Record, error) {
	var d doc
	err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return storage.Record{}, xerrors.StorageErr("documentbackend", "get_product", eris.Wrap(xerrors.ErrProductNotFound, id))
	}
	if err != nil {
		return storage.Record{}, xerrors.StorageErr("documentbackend", "get_product", eris.Wrap(err, id))
	}
	return d.Record, nil
}

// GetProducts reads the ids in turn and fails at the first missing one,
// returning no records then.
func (s *Store) GetProducts(ctx context.Context, ids []string) ([]storage.Record, error) {
	recs := make([]storage.Record, len(ids))
	for i, id := range ids {
		r, err := s.GetProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		recs[i] = r
	}
	return recs, nil
}

// UpdateProduct merges into the existing document and bumps version.
func (s *Store) UpdateProduct(ctx context.Context, id string, p product.Data) (storage.Record, error) {
	recs, err := s.UpdateProducts(ctx, map[string]product.Data{id: p})
	if err != nil {
		return storage.Record{}, err
	}
	return recs[0], nil
}

// UpdateProducts merges every update in turn; Mongo has no cross-document
// transaction requirement here since each id is an independent document.
func (s *Store) UpdateProducts(ctx context.Context, updates map[string]product.Data) ([]storage.Record, error) {
	now := time.Now().UTC()
	recs := make([]storage.Record, 0, len(updates))
	for id, patch := range updates {
		var existing doc
		if err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&existing); err == mongo.ErrNoDocuments {
			return nil, xerrors.StorageErr("documentbackend", "lookup", eris.Wrap(xerrors.ErrProductNotFound, id))
		} else if err != nil {
			return nil, xerrors.StorageErr("documentbackend", "lookup", eris.Wrap(err, id))
		}

		merged := storage.MergeProduct(existing.Record.Product, patch)
		newRec := storage.Record{ID: id, Product: merged, Metadata: storage.Metadata{CreatedAt: existing.Record.Metadata.CreatedAt, UpdatedAt: now}, Extra: existing.Record.Extra, Version: existing.Version + 1}
		recs = append(recs, newRec)

		if s.versioning {
			// newRec.Version has never been written before (version 1 came
			// from SaveProducts, every later version from the update that
			// created it) — re-inserting existing.Version here would collide
			// with that prior write under the same "_id".
			if _, err := s.versions.InsertOne(ctx, versionDoc{ID: id + ":" + itoa(newRec.Version), Record: newRec, Version: newRec.Version}); err != nil {
				return nil, xerrors.StorageErr("documentbackend", "insert version", eris.Wrap(err, id))
			}
		}

		update := bson.M{"$set": bson.M{
			"record":  newRec,
			"title":   merged.Title,
			"sku":     merged.SKU,
			"url":     merged.URL,
			"version": newRec.Version,
		}}
		if _, err := s.products.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
			return nil, xerrors.StorageErr("documentbackend", "update", eris.Wrap(err, id))
		}
	}
	return recs, nil
}

// DeleteProduct removes the document and its version history.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.DeleteProducts(ctx, []string{id})
}

// DeleteProducts requires every id to exist before removing any of them.
func (s *Store) DeleteProducts(ctx context.Context, ids []string) error {
	for _, id := range ids {
		count, err := s.products.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return xerrors.StorageErr("documentbackend", "exists", eris.Wrap(err, id))
		}
		if count == 0 {
			return xerrors.StorageErr("documentbackend", "delete_product", eris.Wrap(xerrors.ErrProductNotFound, id))
		}
	}
	ids_ := make([]interface{}, len(ids))
	for i, id := range ids {
		ids_[i] = id
	}
	if _, err := s.products.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids_}}); err != nil {
		return xerrors.StorageErr("documentbackend", "delete_many", eris.Wrap(err, "delete_products"))
	}
	s.versions.DeleteMany(ctx, bson.M{"record.id": bson.M{"$in": ids_}})
	return nil
}

// ListProducts filters on top-level or metadata.<k> keys, sorts, and
// paginates in memory after the match stage (spec §4.12).
func (s *Store) ListProducts(ctx context.Context, opts storage.ListOptions) ([]storage.Record, error) {
	filter := bson.M{}
	const metaPrefix = "metadata."
	for k, v := range opts.Filter {
		if len(k) > len(metaPrefix) && k[:len(metaPrefix)] == metaPrefix {
			filter["metadata."+k[len(metaPrefix):]] = v
			continue
		}
		filter[k] = v
	}

	sortField := "title"
	switch opts.SortBy {
	case "sku", "url", "version":
		sortField = opts.SortBy
	}
	sortDir := 1
	if opts.SortOrder == storage.Descending {
		sortDir = -1
	}

	cur, err := s.products.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: sortField, Value: sortDir}}))
	if err != nil {
		return nil, xerrors.StorageErr("documentbackend", "list_products", eris.Wrap(err, "find"))
	}
	defer cur.Close(ctx)

	var docs []doc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, xerrors.StorageErr("documentbackend", "list_products", eris.Wrap(err, "decode"))
	}

	page, pageSize := opts.Page, opts.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = len(docs)
	}
	start := (page - 1) * pageSize
	if start > len(docs) {
		start = len(docs)
	}
	end := start + pageSize
	if end > len(docs) {
		end = len(docs)
	}

	recs := make([]storage.Record, 0, end-start)
	for _, d := range docs[start:end] {
		recs = append(recs, d.Record)
	}
	return recs, nil
}

// GetProductVersion reads a specific version document.
func (s *Store) GetProductVersion(ctx context.Context, id string, n int) (storage.Record, error) {
	var v versionDoc
	err := s.versions.FindOne(ctx, bson.M{"_id": id + ":" + itoa(n)}).Decode(&v)
	if err == mongo.ErrNoDocuments {
		return storage.Record{}, xerrors.StorageErr("documentbackend", "get_product_version", eris.Wrap(xerrors.ErrProductNotFound, id))
	}
	if err != nil {
		return storage.Record{}, xerrors.StorageErr("documentbackend", "get_product_version", eris.Wrap(err, id))
	}
	return v.Record, nil
}

// ListProductVersions lists every stored version number for id, ascending.
func (s *Store) ListProductVersions(ctx context.Context, id string) ([]int, error) {
	cur, err := s.versions.Find(ctx, bson.M{"record.id": id}, options.Find().SetSort(bson.D{{Key: "version", Value: 1}}))
	if err != nil {
		return nil, xerrors.StorageErr("documentbackend", "list_product_versions", eris.Wrap(err, id))
	}
	defer cur.Close(ctx)
	var versions []int
	for cur.Next(ctx) {
		var v versionDoc
		if err := cur.Decode(&v); err != nil {
			return nil, xerrors.StorageErr("documentbackend", "list_product_versions", eris.Wrap(err, id))
		}
		versions = append(versions, v.Version)
	}
	return versions, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

var _ storage.Engine = (*Store)(nil)
