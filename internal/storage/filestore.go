package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/productlens/extractor/internal/product"
	"github.com/productlens/extractor/internal/xerrors"
)

// FileStore is the spec-normative backend: per-product JSON files plus an
// index.json sidecar and an optional versions/ directory (spec §4.12/§6).
type FileStore struct {
	dir           string
	versioning    bool
	indexMu       sync.Mutex // serialises every write path, per-file writes included.
}

// NewFileStore creates (if needed) dir and its versions/ subdirectory.
func NewFileStore(dir string, versioning bool) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, xerrors.StorageErr("filestore", "create storage dir", eris.Wrap(err, dir))
	}
	if versioning {
		if err := os.MkdirAll(filepath.Join(dir, "versions"), 0o755); err != nil {
			return nil, xerrors.StorageErr("filestore", "create versions dir", eris.Wrap(err, dir))
		}
	}
	return &FileStore{dir: dir, versioning: versioning}, nil
}

func (s *FileStore) recordPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *FileStore) indexPath() string {
	return filepath.Join(s.dir, "index.json")
}

func (s *FileStore) versionPath(id string, n int) string {
	return filepath.Join(s.dir, "versions", id, fmt.Sprintf("v%d.json", n))
}

// DeriveID exposes deriveID to sibling backend packages (sqlbackend,
// documentbackend) so every Engine implementation derives product ids the
// same way.
func DeriveID(p product.Data, opts SaveOptions) string {
	return deriveID(p, opts)
}

// deriveID implements spec §4.12's identity rule: first non-empty of
// caller id, "<store_name>_<sku>", "url_<hash(url)>", fresh UUID.
func deriveID(p product.Data, opts SaveOptions) string {
	if opts.ID != "" {
		return opts.ID
	}
	if opts.StoreName != "" && p.SKU != "" {
		return opts.StoreName + "_" + p.SKU
	}
	if p.URL != "" {
		h := sha1.Sum([]byte(p.URL))
		return "url_" + hex.EncodeToString(h[:])[:16]
	}
	return uuid.NewString()
}

func (s *FileStore) readIndex() (map[string]IndexEntry, error) {
	data, err := os.ReadFile(s.indexPath())
	if os.IsNotExist(err) {
		return map[string]IndexEntry{}, nil
	}
	if err != nil {
		return nil, xerrors.StorageErr("filestore", "read index", eris.Wrap(err, s.indexPath()))
	}
	var idx map[string]IndexEntry
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, xerrors.StorageErr("filestore", "parse index", eris.Wrap(err, s.indexPath()))
	}
	return idx, nil
}

func (s *FileStore) writeIndex(idx map[string]IndexEntry) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return xerrors.StorageErr("filestore", "marshal index", eris.Wrap(err, ""))
	}
	if err := os.WriteFile(s.indexPath(), data, 0o644); err != nil {
		return xerrors.StorageErr("filestore", "write index", eris.Wrap(err, s.indexPath()))
	}
	return nil
}

func (s *FileStore) writeRecord(r Record) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return xerrors.StorageErr("filestore", "marshal record", eris.Wrap(err, r.ID))
	}
	if err := os.WriteFile(s.recordPath(r.ID), data, 0o644); err != nil {
		return xerrors.StorageErr("filestore", "write record", eris.Wrap(err, r.ID))
	}
	return nil
}

func (s *FileStore) readRecord(id string) (Record, error) {
	data, err := os.ReadFile(s.recordPath(id))
	if os.IsNotExist(err) {
		return Record{}, xerrors.StorageErr("filestore", "get_product", eris.Wrap(xerrors.ErrProductNotFound, id))
	}
	if err != nil {
		return Record{}, xerrors.StorageErr("filestore", "read record", eris.Wrap(err, id))
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, xerrors.StorageErr("filestore", "parse record", eris.Wrap(err, id))
	}
	return r, nil
}

func indexEntryFor(r Record, opts SaveOptions) IndexEntry {
	return IndexEntry{
		ID:        r.ID,
		Metadata:  opts.Metadata,
		Title:     r.Product.Title,
		SKU:       r.Product.SKU,
		URL:       r.Product.URL,
		StoreName: opts.StoreName,
		Version:   r.Version,
	}
}

// SaveProduct fails with ErrDuplicateProduct if the derived id already
// exists in the index (spec §4.12).
func (s *FileStore) SaveProduct(ctx context.Context, p product.Data, opts SaveOptions) (Record, error) {
	recs, err := s.SaveProducts(ctx, []product.Data{p}, []SaveOptions{opts})
	if err != nil {
		return Record{}, err
	}
	return recs[0], nil
}

// SaveProducts performs the all-or-nothing duplicate check, then writes the
// record (and version) files one after another, not in parallel, then
// updates the index once.
func (s *FileStore) SaveProducts(ctx context.Context, ps []product.Data, opts []SaveOptions) ([]Record, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	idx, err := s.readIndex()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	recs := make([]Record, len(ps))
	for i, p := range ps {
		o := SaveOptions{}
		if i < len(opts) {
			o = opts[i]
		}
		id := deriveID(p, o)
		if _, exists := idx[id]; exists {
			return nil, xerrors.StorageErr("filestore", "save_product", eris.Wrap(xerrors.ErrDuplicateProduct, id))
		}
		p.ExtractedAt = firstNonZero(p.ExtractedAt, now)
		recs[i] = Record{ID: id, Product: p, Metadata: Metadata{CreatedAt: now, UpdatedAt: now}, Extra: o.Metadata, Version: 1}
	}

	var writeErr error
	for i, r := range recs {
		o := SaveOptions{}
		if i < len(opts) {
			o = opts[i]
		}
		if s.versioning {
			if err := os.MkdirAll(filepath.Join(s.dir, "versions", r.ID), 0o755); err != nil {
				return nil, xerrors.StorageErr("filestore", "create version dir", eris.Wrap(err, r.ID))
			}
			if err := writeVersionFile(s.versionPath(r.ID, 1), r); err != nil {
				return nil, err
			}
		}
		if err := s.writeRecord(r); err != nil {
			writeErr = err
			break
		}
		idx[r.ID] = indexEntryFor(r, o)
	}
	if writeErr != nil {
		return nil, writeErr
	}

	if err := s.writeIndex(idx); err != nil {
		return nil, err
	}
	return recs, nil
}

func writeVersionFile(path string, r Record) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return xerrors.StorageErr("filestore", "marshal version", eris.Wrap(err, r.ID))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return xerrors.StorageErr("filestore", "write version", eris.Wrap(err, r.ID))
	}
	return nil
}

func firstNonZero(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// GetProduct fails with ErrProductNotFound if missing.
func (s *FileStore) GetProduct(ctx context.Context, id string) (Record, error) {
	return s.readRecord(id)
}

// GetProducts validates all ids exist before reading anything (spec §4.12).
func (s *FileStore) GetProducts(ctx context.Context, ids []string) ([]Record, error) {
	idx, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := idx[id]; !ok {
			return nil, xerrors.StorageErr("filestore", "lookup", eris.Wrap(xerrors.ErrProductNotFound, id))
		}
	}
	recs := make([]Record, len(ids))
	for i, id := range ids {
		r, err := s.readRecord(id)
		if err != nil {
			return nil, err
		}
		recs[i] = r
	}
	return recs, nil
}

// UpdateProduct merges into the existing record, bumps version, and
// updates updated_at and the index (spec §4.12).
func (s *FileStore) UpdateProduct(ctx context.Context, id string, p product.Data) (Record, error) {
	recs, err := s.UpdateProducts(ctx, map[string]product.Data{id: p})
	if err != nil {
		return Record{}, err
	}
	return recs[0], nil
}

// UpdateProducts batches the merge + version bump under a single index
// update.
func (s *FileStore) UpdateProducts(ctx context.Context, updates map[string]product.Data) ([]Record, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	idx, err := s.readIndex()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(updates))
	for id := range updates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, ok := idx[id]; !ok {
			return nil, xerrors.StorageErr("filestore", "lookup", eris.Wrap(xerrors.ErrProductNotFound, id))
		}
	}

	now := time.Now().UTC()
	recs := make([]Record, 0, len(ids))
	for _, id := range ids {
		entry, ok := idx[id]
		if !ok {
			return nil, xerrors.StorageErr("filestore", "lookup", eris.Wrap(xerrors.ErrProductNotFound, id))
		}
		existing, err := s.readRecord(id)
		if err != nil {
			return nil, err
		}

		if s.versioning {
			if err := os.MkdirAll(filepath.Join(s.dir, "versions", id), 0o755); err != nil {
				return nil, xerrors.StorageErr("filestore", "create version dir", eris.Wrap(err, id))
			}
			if err := writeVersionFile(s.versionPath(id, existing.Version), existing); err != nil {
				return nil, err
			}
		}

		merged := mergeProduct(existing.Product, updates[id])
		newRec := Record{ID: id, Product: merged, Metadata: Metadata{CreatedAt: existing.Metadata.CreatedAt, UpdatedAt: now}, Extra: existing.Extra, Version: existing.Version + 1}
		recs = append(recs, newRec)

		if s.versioning {
			// The new version is immediately current, not merely pending
			// supersession by a future update — it must be queryable via
			// GetProductVersion/ListProductVersions right away.
			if err := writeVersionFile(s.versionPath(id, newRec.Version), newRec); err != nil {
				return nil, err
			}
		}

		if err := s.writeRecord(newRec); err != nil {
			return nil, err
		}
		entry.Version = newRec.Version
		entry.Title = merged.Title
		entry.SKU = merged.SKU
		entry.URL = merged.URL
		idx[id] = entry
	}

	if err := s.writeIndex(idx); err != nil {
		return nil, err
	}
	return recs, nil
}

// MergeProduct exposes mergeProduct to sibling backend packages so every
// Engine implementation applies the same update-merge semantics.
func MergeProduct(base, patch product.Data) product.Data {
	return mergeProduct(base, patch)
}

// mergeProduct overlays patch's non-empty title, url, price, images,
// description, brand, category and attributes onto base; every other field
// keeps base's value, except ExtractionSuccess, which is always taken from
// patch.
func mergeProduct(base, patch product.Data) product.Data {
	if patch.Title != "" {
		base.Title = patch.Title
	}
	if patch.URL != "" {
		base.URL = patch.URL
	}
	if patch.Price.CurrentPrice != 0 || patch.Price.Currency != "" {
		base.Price = patch.Price
	}
	if len(patch.Images) > 0 {
		base.Images = patch.Images
	}
	if patch.Description != "" {
		base.Description = patch.Description
	}
	if patch.Brand != "" {
		base.Brand = patch.Brand
	}
	if len(patch.Category) > 0 {
		base.Category = patch.Category
	}
	if len(patch.Attributes) > 0 {
		base.Attributes = patch.Attributes
	}
	base.ExtractionSuccess = patch.ExtractionSuccess
	return base
}

// DeleteProduct removes the file and updates the index.
func (s *FileStore) DeleteProduct(ctx context.Context, id string) error {
	return s.DeleteProducts(ctx, []string{id})
}

// DeleteProducts removes files and updates the index in one pass.
func (s *FileStore) DeleteProducts(ctx context.Context, ids []string) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	idx, err := s.readIndex()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := idx[id]; !ok {
			return xerrors.StorageErr("filestore", "delete_product", eris.Wrap(xerrors.ErrProductNotFound, id))
		}
	}
	for _, id := range ids {
		if err := os.Remove(s.recordPath(id)); err != nil && !os.IsNotExist(err) {
			return xerrors.StorageErr("filestore", "delete record", eris.Wrap(err, id))
		}
		delete(idx, id)
	}
	return s.writeIndex(idx)
}

// ListProducts scans the index, filters, sorts, paginates, and loads
// matching records (spec §4.12).
func (s *FileStore) ListProducts(ctx context.Context, opts ListOptions) ([]Record, error) {
	idx, err := s.readIndex()
	if err != nil {
		return nil, err
	}

	entries := make([]IndexEntry, 0, len(idx))
	for _, e := range idx {
		if matchesFilter(e, opts.Filter) {
			entries = append(entries, e)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		vi, vj := sortKey(entries[i], opts.SortBy), sortKey(entries[j], opts.SortBy)
		if opts.SortOrder == Descending {
			return vi > vj
		}
		return vi < vj
	})

	page, pageSize := opts.Page, opts.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = len(entries)
	}
	start := (page - 1) * pageSize
	if start > len(entries) {
		start = len(entries)
	}
	end := start + pageSize
	if end > len(entries) {
		end = len(entries)
	}
	page_ := entries[start:end]

	recs := make([]Record, 0, len(page_))
	for _, e := range page_ {
		r, err := s.readRecord(e.ID)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, nil
}

func matchesFilter(e IndexEntry, filter ListFilter) bool {
	for k, v := range filter {
		if metaKey, ok := trimMetadataPrefix(k); ok {
			if fmt.Sprintf("%v", e.Metadata[metaKey]) != v {
				return false
			}
			continue
		}
		switch k {
		case "title":
			if e.Title != v {
				return false
			}
		case "sku":
			if e.SKU != v {
				return false
			}
		case "url":
			if e.URL != v {
				return false
			}
		case "store_name":
			if e.StoreName != v {
				return false
			}
		}
	}
	return true
}

func trimMetadataPrefix(k string) (string, bool) {
	const prefix = "metadata."
	if len(k) > len(prefix) && k[:len(prefix)] == prefix {
		return k[len(prefix):], true
	}
	return "", false
}

func sortKey(e IndexEntry, sortBy string) string {
	switch sortBy {
	case "sku":
		return e.SKU
	case "url":
		return e.URL
	case "version":
		return fmt.Sprintf("%010d", e.Version)
	default:
		return e.Title
	}
}

// GetProductVersion reads a specific version from versions/<id>/v<n>.json.
func (s *FileStore) GetProductVersion(id string, n int) (Record, error) {
	data, err := os.ReadFile(s.versionPath(id, n))
	if os.IsNotExist(err) {
		return Record{}, xerrors.StorageErr("filestore", "get_product_version", eris.Wrap(xerrors.ErrProductNotFound, id))
	}
	if err != nil {
		return Record{}, xerrors.StorageErr("filestore", "read version", eris.Wrap(err, id))
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, xerrors.StorageErr("filestore", "parse version", eris.Wrap(err, id))
	}
	return r, nil
}

// ListProductVersions lists every stored version number for id, ascending.
func (s *FileStore) ListProductVersions(id string) ([]int, error) {
	dir := filepath.Join(s.dir, "versions", id)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, xerrors.StorageErr("filestore", "list versions", eris.Wrap(err, id))
	}
	var versions []int
	for _, e := range entries {
		var n int
		if _, err := fmt.Sscanf(e.Name(), "v%d.json", &n); err == nil {
			versions = append(versions, n)
		}
	}
	sort.Ints(versions)
	return versions, nil
}
