// Package dedup implements the deduplicator of spec §4.11: identity-based
// and similarity-based duplicate detection over ProductData, greedy
// grouping, and group merging.
package dedup

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
	"golang.org/x/text/cases"

	"github.com/productlens/extractor/internal/product"
	"github.com/productlens/extractor/internal/xerrors"
)

// caseFold performs unicode-aware case folding (e.g. German "ß" vs "SS",
// Turkish dotless "ı") so signature comparison doesn't depend on
// strings.ToLower's ASCII-biased behavior.
var caseFold = cases.Fold()

// Signature is the normalized identity mapping product_signature produces.
type Signature struct {
	Identifiers map[string]string
	Brand       string
	Title       string
}

// ProductSignature builds the lower-cased, trimmed identity signature used
// by both duplicate-detection rules (spec §4.11).
func ProductSignature(p product.Data) Signature {
	ids := map[string]string{}
	for k, v := range p.Identifiers() {
		ids[k] = normalize(v)
	}
	return Signature{
		Identifiers: ids,
		Brand:       normalize(p.Brand),
		Title:       normalize(p.Title),
	}
}

func normalize(s string) string {
	return caseFold.String(strings.TrimSpace(s))
}

// IsDuplicateByID reports whether a and b share any non-empty identifier
// field (sku/upc/ean/isbn/mpn/gtin), compared case-insensitively and
// trimmed.
func IsDuplicateByID(a, b product.Data) bool {
	sa, sb := ProductSignature(a), ProductSignature(b)
	for k, va := range sa.Identifiers {
		if va == "" {
			continue
		}
		if vb, ok := sb.Identifiers[k]; ok && vb == va {
			return true
		}
	}
	return false
}

const (
	titleWeight       = 0.5
	brandWeight       = 0.3
	descriptionWeight = 0.2
)

// SimilarityScore computes the weighted title/brand/description similarity
// of spec §4.11, renormalised by the sum of weights actually applied.
func SimilarityScore(a, b product.Data) float64 {
	var weighted, appliedWeight float64

	sa, sb := ProductSignature(a), ProductSignature(b)
	if sa.Title != "" && sb.Title != "" {
		weighted += titleWeight * levenshtein.Match(sa.Title, sb.Title, nil)
		appliedWeight += titleWeight
	}
	if sa.Brand != "" && sb.Brand != "" {
		weighted += brandWeight * levenshtein.Match(sa.Brand, sb.Brand, nil)
		appliedWeight += brandWeight
	}
	if a.Description != "" && b.Description != "" {
		weighted += descriptionWeight * levenshtein.Match(normalize(a.Description), normalize(b.Description), nil)
		appliedWeight += descriptionWeight
	}

	if appliedWeight == 0 {
		return 0
	}
	return weighted / appliedWeight
}

// IsDuplicateBySimilarity reports whether a and b's normalised similarity
// score meets threshold (spec §4.11, default 0.85, must be in [0,1]).
func IsDuplicateBySimilarity(a, b product.Data, threshold float64) bool {
	return SimilarityScore(a, b) >= threshold
}

// FindDuplicates performs the greedy grouping of spec §4.11: groups of
// size 1 are discarded, only true duplicate groups are returned.
func FindDuplicates(products []product.Data, threshold float64) [][]int {
	n := len(products)
	assigned := make([]bool, n)
	var groups [][]int

	for i := 0; i < n; i++ {
		if assigned[i] {
			continue
		}
		group := []int{i}
		assigned[i] = true
		for j := i + 1; j < n; j++ {
			if assigned[j] {
				continue
			}
			if IsDuplicateByID(products[i], products[j]) || IsDuplicateBySimilarity(products[i], products[j], threshold) {
				group = append(group, j)
				assigned[j] = true
			}
		}
		if len(group) > 1 {
			groups = append(groups, group)
		}
	}
	return groups
}

// MergeStrategy selects how MergeProducts resolves conflicts within a group.
type MergeStrategy string

const (
	MergeLatest       MergeStrategy = "latest"
	MergeMostComplete MergeStrategy = "most_complete"
	MergeCombine      MergeStrategy = "combine"
)

// MergeProducts merges a group of duplicate records per spec §4.11. An
// empty group is a configuration error.
func MergeProducts(group []product.Data, strategy MergeStrategy) (product.Data, error) {
	if len(group) == 0 {
		return product.Data{}, xerrors.ConfigErr("dedup", "merge group must not be empty", nil)
	}

	switch strategy {
	case MergeLatest:
		return latest(group), nil
	case MergeMostComplete:
		return mostComplete(group), nil
	case MergeCombine:
		return combine(group), nil
	default:
		return product.Data{}, xerrors.ConfigErr("dedup", "unknown merge strategy", nil)
	}
}

func latest(group []product.Data) product.Data {
	best := group[0]
	for _, p := range group[1:] {
		if p.ExtractedAt.After(best.ExtractedAt) {
			best = p
		}
	}
	return best
}

func mostComplete(group []product.Data) product.Data {
	best := group[0]
	bestCount := best.NonNullFieldCount()
	for _, p := range group[1:] {
		if c := p.NonNullFieldCount(); c > bestCount {
			best = p
			bestCount = c
		}
	}
	return best
}

func combine(group []product.Data) product.Data {
	sorted := append([]product.Data(nil), group...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].NonNullFieldCount() > sorted[j].NonNullFieldCount()
	})

	base := sorted[0]
	for _, p := range sorted[1:] {
		fillNulls(&base, p)
	}
	return base
}

func fillNulls(base *product.Data, fallback product.Data) {
	if base.Title == "" {
		base.Title = fallback.Title
	}
	if base.SKU == "" {
		base.SKU = fallback.SKU
	}
	if base.UPC == "" {
		base.UPC = fallback.UPC
	}
	if base.EAN == "" {
		base.EAN = fallback.EAN
	}
	if base.ISBN == "" {
		base.ISBN = fallback.ISBN
	}
	if base.MPN == "" {
		base.MPN = fallback.MPN
	}
	if base.GTIN == "" {
		base.GTIN = fallback.GTIN
	}
	if base.Price.CurrentPrice == 0 {
		base.Price = fallback.Price
	}
	if len(base.Images) == 0 {
		base.Images = fallback.Images
	}
	if base.Description == "" {
		base.Description = fallback.Description
	}
	if base.ShortDescription == "" {
		base.ShortDescription = fallback.ShortDescription
	}
	if base.Brand == "" {
		base.Brand = fallback.Brand
	}
	if len(base.Category) == 0 {
		base.Category = fallback.Category
	}
	if len(base.Attributes) == 0 {
		base.Attributes = fallback.Attributes
	}
	if len(base.Variants) == 0 {
		base.Variants = fallback.Variants
	}
	if len(base.Reviews) == 0 {
		base.Reviews = fallback.Reviews
	}
	if base.ShippingInfo == "" {
		base.ShippingInfo = fallback.ShippingInfo
	}
	if base.Warranty == "" {
		base.Warranty = fallback.Warranty
	}
	if base.Dimensions == "" {
		base.Dimensions = fallback.Dimensions
	}
	if base.Weight == "" {
		base.Weight = fallback.Weight
	}
	if base.Material == "" {
		base.Material = fallback.Material
	}
	if base.Seller == "" {
		base.Seller = fallback.Seller
	}
	if base.ReleaseDate == "" {
		base.ReleaseDate = fallback.ReleaseDate
	}
}
