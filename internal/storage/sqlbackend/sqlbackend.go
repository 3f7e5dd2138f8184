// Package sqlbackend adapts the teacher's internal/output SQL writers
// (sqlite.go, mysql.go, postgresql.go) from batch record writers into a
// storage.Engine implementation: one row per product, a versions table in
// place of the filesystem's versions/ directory, driven by database/sql
// against whichever of the three drivers the caller names.
//
// It is an optional secondary backend (SPEC_FULL.md B.1) — storage.FileStore
// remains the spec-normative one. Driver names: "sqlite3", "postgres",
// "mysql".
package sqlbackend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"

	"github.com/productlens/extractor/internal/product"
	"github.com/productlens/extractor/internal/storage"
	"github.com/productlens/extractor/internal/xerrors"
)

// Store is a storage.Engine backed by a SQL table of product rows plus a
// sibling version-history table.
type Store struct {
	db         *sql.DB
	driver     string
	table      string
	versions   string
	versioning bool
}

// Options configures a Store beyond the bare driver/dsn pair.
type Options struct {
	Table      string // defaults to "products"
	Versioning bool
}

// Open connects to driver ("sqlite3", "postgres", or "mysql") at dsn and
// ensures the products/versions tables exist.
func Open(driver, dsn string, opts Options) (*Store, error) {
	switch driver {
	case "sqlite3", "postgres", "mysql":
	default:
		return nil, xerrors.New(xerrors.Config, "sqlbackend", fmt.Sprintf("unsupported driver %q", driver))
	}
	if opts.Table == "" {
		opts.Table = "products"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, xerrors.StorageErr("sqlbackend", "open", eris.Wrap(err, dsn))
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, xerrors.StorageErr("sqlbackend", "ping", eris.Wrap(xerrors.ErrStorageConnection, err.Error()))
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1) // matches the teacher's single-writer SQLite tuning
	}

	s := &Store{db: db, driver: driver, table: opts.Table, versions: opts.Table + "_versions", versioning: opts.Versioning}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createTables() error {
	blobType := "TEXT"
	if s.driver == "postgres" {
		blobType = "JSONB"
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		title TEXT,
		sku TEXT,
		url TEXT,
		store_name TEXT,
		version INTEGER NOT NULL,
		data %s NOT NULL,
		metadata %s,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`, s.quote(s.table), blobType, blobType)
	if _, err := s.db.Exec(stmt); err != nil {
		return xerrors.StorageErr("sqlbackend", "create products table", eris.Wrap(err, s.table))
	}

	stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT NOT NULL,
		version INTEGER NOT NULL,
		data %s NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (id, version)
	)`, s.quote(s.versions), blobType)
	if _, err := s.db.Exec(stmt); err != nil {
		return xerrors.StorageErr("sqlbackend", "create versions table", eris.Wrap(err, s.versions))
	}
	return nil
}

func (s *Store) quote(identifier string) string {
	switch s.driver {
	case "mysql":
		return "`" + identifier + "`"
	default:
		return `"` + identifier + `"`
	}
}

// ph returns the i-th (1-based) placeholder in the driver's dialect.
func (s *Store) ph(i int) string {
	if s.driver == "postgres" {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

// Close releases the underlying *sql.DB.
func (s *Store) Close() error { return s.db.Close() }

func marshalRecord(r storage.Record) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", xerrors.StorageErr("sqlbackend", "marshal record", eris.Wrap(err, r.ID))
	}
	return string(b), nil
}

func unmarshalRecord(data string) (storage.Record, error) {
	var r storage.Record
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return storage.Record{}, xerrors.StorageErr("sqlbackend", "unmarshal record", eris.Wrap(err, "record"))
	}
	return r, nil
}

func (s *Store) exists(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	q := fmt.Sprintf("SELECT 1 FROM %s WHERE id = %s", s.quote(s.table), s.ph(1))
	var one int
	err := tx.QueryRowContext(ctx, q, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, xerrors.StorageErr("sqlbackend", "exists", eris.Wrap(err, id))
	}
	return true, nil
}

// SaveProduct fails with ErrDuplicateProduct if id already exists.
func (s *Store) SaveProduct(ctx context.Context, p product.Data, opts storage.SaveOptions) (storage.Record, error) {
	recs, err := s.SaveProducts(ctx, []product.Data{p}, []storage.SaveOptions{opts})
	if err != nil {
		return storage.Record{}, err
	}
	return recs[0], nil
}

// SaveProducts performs an all-or-nothing duplicate check within one
// transaction, then inserts every row, matching spec §4.12's batch contract.
func (s *Store) SaveProducts(ctx context.Context, ps []product.Data, opts []storage.SaveOptions) ([]storage.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, xerrors.StorageErr("sqlbackend", "begin", eris.Wrap(err, "save_products"))
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	recs := make([]storage.Record, len(ps))
	for i, p := range ps {
		o := storage.SaveOptions{}
		if i < len(opts) {
			o = opts[i]
		}
		id := storage.DeriveID(p, o)
		found, err := s.exists(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if found {
			return nil, xerrors.StorageErr("sqlbackend", "save_product", eris.Wrap(xerrors.ErrDuplicateProduct, id))
		}
		if p.ExtractedAt.IsZero() {
			p.ExtractedAt = now
		}
		recs[i] = storage.Record{ID: id, Product: p, Metadata: storage.Metadata{CreatedAt: now, UpdatedAt: now}, Extra: o.Metadata, Version: 1}
	}

	insert := fmt.Sprintf(`INSERT INTO %s (id, title, sku, url, store_name, version, data, metadata, created_at, updated_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		s.quote(s.table), s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9), s.ph(10))
	insertVersion := fmt.Sprintf(`INSERT INTO %s (id, version, data, created_at) VALUES (%s, %s, %s, %s)`,
		s.quote(s.versions), s.ph(1), s.ph(2), s.ph(3), s.ph(4))

	for i, r := range recs {
		data, err := marshalRecord(r)
		if err != nil {
			return nil, err
		}
		meta, _ := json.Marshal(r.Extra)
		storeName := ""
		if i < len(opts) {
			storeName = opts[i].StoreName
		}
		if _, err := tx.ExecContext(ctx, insert, r.ID, r.Product.Title, r.Product.SKU, r.Product.URL, storeName, r.Version, data, string(meta), r.Metadata.CreatedAt.Format(time.RFC3339), r.Metadata.UpdatedAt.Format(time.RFC3339)); err != nil {
			return nil, xerrors.StorageErr("sqlbackend", "insert", eris.Wrap(err, r.ID))
		}
		if s.versioning {
			if _, err := tx.ExecContext(ctx, insertVersion, r.ID, 1, data, r.Metadata.CreatedAt.Format(time.RFC3339)); err != nil {
				return nil, xerrors.StorageErr("sqlbackend", "insert version", eris.Wrap(err, r.ID))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, xerrors.StorageErr("sqlbackend", "commit", eris.Wrap(err, "save_products"))
	}
	return recs, nil
}

// GetProduct fails with ErrProductNotFound if missing.
func (s *Store) GetProduct(ctx context.Context, id string) (storage.Record, error) {
	q := fmt.Sprintf("SELECT data FROM %s WHERE id = %s", s.quote(s.table), s.ph(1))
	var data string
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&data); err == sql.ErrNoRows {
		return storage.Record{}, xerrors.StorageErr("sqlbackend", "get_product", eris.Wrap(xerrors.ErrProductNotFound, id))
	} else if err != nil {
		return storage.Record{}, xerrors.StorageErr("sqlbackend", "get_product", eris.Wrap(err, id))
	}
	return unmarshalRecord(data)
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

// UpdateProduct merges into the existing record and bumps version.
func (s *Store) UpdateProduct(ctx context.Context, id string, p product.Data) (storage.Record, error) {
	recs, err := s.UpdateProducts(ctx, map[string]product.Data{id: p})
	if err != nil {
		return storage.Record{}, err
	}
	return recs[0], nil
}

// UpdateProducts batches the merge + version bump within one transaction.
func (s *Store) UpdateProducts(ctx context.Context, updates map[string]product.Data) ([]storage.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, xerrors.StorageErr("sqlbackend", "begin", eris.Wrap(err, "update_products"))
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(updates))
	for id := range updates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := time.Now().UTC()
	recs := make([]storage.Record, 0, len(ids))
	selectQ := fmt.Sprintf("SELECT data FROM %s WHERE id = %s", s.quote(s.table), s.ph(1))
	updateQ := fmt.Sprintf("UPDATE %s SET title=%s, sku=%s, url=%s, version=%s, data=%s, updated_at=%s WHERE id=%s",
		s.quote(s.table), s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7))
	insertVersion := fmt.Sprintf(`INSERT INTO %s (id, version, data, created_at) VALUES (%s, %s, %s, %s)`,
		s.quote(s.versions), s.ph(1), s.ph(2), s.ph(3), s.ph(4))

	for _, id := range ids {
		var data string
		if err := tx.QueryRowContext(ctx, selectQ, id).Scan(&data); err == sql.ErrNoRows {
			return nil, xerrors.StorageErr("sqlbackend", "lookup", eris.Wrap(xerrors.ErrProductNotFound, id))
		} else if err != nil {
			return nil, xerrors.StorageErr("sqlbackend", "lookup", eris.Wrap(err, id))
		}
		existing, err := unmarshalRecord(data)
		if err != nil {
			return nil, err
		}
		merged := storage.MergeProduct(existing.Product, updates[id])
		newRec := storage.Record{ID: id, Product: merged, Metadata: storage.Metadata{CreatedAt: existing.Metadata.CreatedAt, UpdatedAt: now}, Extra: existing.Extra, Version: existing.Version + 1}
		recs = append(recs, newRec)

		newData, err := marshalRecord(newRec)
		if err != nil {
			return nil, err
		}
		if s.versioning {
			// newRec.Version has never been written before (version 1 was
			// written by SaveProducts, every later version by the update
			// that created it) — re-inserting existing.Version here would
			// collide with that prior write under the (id, version) key.
			if _, err := tx.ExecContext(ctx, insertVersion, id, newRec.Version, newData, now.Format(time.RFC3339)); err != nil {
				return nil, xerrors.StorageErr("sqlbackend", "insert version", eris.Wrap(err, id))
			}
		}
		if _, err := tx.ExecContext(ctx, updateQ, merged.Title, merged.SKU, merged.URL, newRec.Version, newData, now.Format(time.RFC3339), id); err != nil {
			return nil, xerrors.StorageErr("sqlbackend", "update", eris.Wrap(err, id))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, xerrors.StorageErr("sqlbackend", "commit", eris.Wrap(err, "update_products"))
	}
	return recs, nil
}

// DeleteProduct removes the row and its version history.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.DeleteProducts(ctx, []string{id})
}

// DeleteProducts removes rows within one transaction, failing if any id is
// missing (spec §4.12).
func (s *Store) DeleteProducts(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.StorageErr("sqlbackend", "begin", eris.Wrap(err, "delete_products"))
	}
	defer tx.Rollback()

	for _, id := range ids {
		found, err := s.exists(ctx, tx, id)
		if err != nil {
			return err
		}
		if !found {
			return xerrors.StorageErr("sqlbackend", "delete_product", eris.Wrap(xerrors.ErrProductNotFound, id))
		}
	}
	deleteQ := fmt.Sprintf("DELETE FROM %s WHERE id = %s", s.quote(s.table), s.ph(1))
	deleteVersionsQ := fmt.Sprintf("DELETE FROM %s WHERE id = %s", s.quote(s.versions), s.ph(1))
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, deleteQ, id); err != nil {
			return xerrors.StorageErr("sqlbackend", "delete", eris.Wrap(err, id))
		}
		if _, err := tx.ExecContext(ctx, deleteVersionsQ, id); err != nil {
			return xerrors.StorageErr("sqlbackend", "delete versions", eris.Wrap(err, id))
		}
	}
	if err := tx.Commit(); err != nil {
		return xerrors.StorageErr("sqlbackend", "commit", eris.Wrap(err, "delete_products"))
	}
	return nil
}

// ListProducts scans the products table, filters on top-level or
// metadata.<k> keys, sorts, and paginates (spec §4.12).
func (s *Store) ListProducts(ctx context.Context, opts storage.ListOptions) ([]storage.Record, error) {
	q := fmt.Sprintf("SELECT data, metadata FROM %s", s.quote(s.table))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, xerrors.StorageErr("sqlbackend", "list_products", eris.Wrap(err, "query"))
	}
	defer rows.Close()

	var all []storage.Record
	var metas []map[string]interface{}
	for rows.Next() {
		var data, meta string
		if err := rows.Scan(&data, &meta); err != nil {
			return nil, xerrors.StorageErr("sqlbackend", "list_products", eris.Wrap(err, "scan"))
		}
		r, err := unmarshalRecord(data)
		if err != nil {
			return nil, err
		}
		all = append(all, r)
		var m map[string]interface{}
		json.Unmarshal([]byte(meta), &m)
		metas = append(metas, m)
	}

	filtered := make([]storage.Record, 0, len(all))
	filteredMeta := make([]map[string]interface{}, 0, len(all))
	for i, r := range all {
		if matches(r, metas[i], opts.Filter) {
			filtered = append(filtered, r)
			filteredMeta = append(filteredMeta, metas[i])
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		vi, vj := sortKey(filtered[i], opts.SortBy), sortKey(filtered[j], opts.SortBy)
		if opts.SortOrder == storage.Descending {
			return vi > vj
		}
		return vi < vj
	})

	page, pageSize := opts.Page, opts.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = len(filtered)
	}
	start := (page - 1) * pageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], nil
}

func matches(r storage.Record, meta map[string]interface{}, filter storage.ListFilter) bool {
	const metaPrefix = "metadata."
	for k, v := range filter {
		if len(k) > len(metaPrefix) && k[:len(metaPrefix)] == metaPrefix {
			if fmt.Sprintf("%v", meta[k[len(metaPrefix):]]) != v {
				return false
			}
			continue
		}
		switch k {
		case "title":
			if r.Product.Title != v {
				return false
			}
		case "sku":
			if r.Product.SKU != v {
				return false
			}
		case "url":
			if r.Product.URL != v {
				return false
			}
		}
	}
	return true
}

func sortKey(r storage.Record, sortBy string) string {
	switch sortBy {
	case "sku":
		return r.Product.SKU
	case "url":
		return r.Product.URL
	case "version":
		return fmt.Sprintf("%010d", r.Version)
	default:
		return r.Product.Title
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// GetProductVersion reads a specific version row from the versions table.
func (s *Store) GetProductVersion(ctx context.Context, id string, n int) (storage.Record, error) {
	q := fmt.Sprintf("SELECT data FROM %s WHERE id = %s AND version = %s", s.quote(s.versions), s.ph(1), s.ph(2))
	var data string
	if err := s.db.QueryRowContext(ctx, q, id, n).Scan(&data); err == sql.ErrNoRows {
		return storage.Record{}, xerrors.StorageErr("sqlbackend", "get_product_version", eris.Wrap(xerrors.ErrProductNotFound, id))
	} else if err != nil {
		return storage.Record{}, xerrors.StorageErr("sqlbackend", "get_product_version", eris.Wrap(err, id))
	}
	return unmarshalRecord(data)
}

// ListProductVersions lists every stored version number for id, ascending.
func (s *Store) ListProductVersions(ctx context.Context, id string) ([]int, error) {
	q := fmt.Sprintf("SELECT version FROM %s WHERE id = %s ORDER BY version ASC", s.quote(s.versions), s.ph(1))
	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, xerrors.StorageErr("sqlbackend", "list_product_versions", eris.Wrap(err, id))
	}
	defer rows.Close()
	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, xerrors.StorageErr("sqlbackend", "list_product_versions", eris.Wrap(err, id))
		}
		versions = append(versions, v)
	}
	return versions, nil
}

var _ storage.Engine = (*Store)(nil)
