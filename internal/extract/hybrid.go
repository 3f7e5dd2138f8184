package extract

import (
	"context"
	"strings"

	"github.com/productlens/extractor/internal/fetch"
	"github.com/productlens/extractor/internal/filter"
	"github.com/productlens/extractor/internal/product"
	"github.com/productlens/extractor/internal/retry"
)

// StrategyName identifies one of the four extraction strategies.
type StrategyName string

const (
	StrategyAuto  StrategyName = "auto"
	StrategyCSS   StrategyName = "css"
	StrategyXPath StrategyName = "xpath"
	StrategyLLM   StrategyName = "llm"
)

// DefaultStrategyOrder is the default ordered strategy list (spec §4.9).
var DefaultStrategyOrder = []StrategyName{StrategyAuto, StrategyCSS, StrategyXPath, StrategyLLM}

// mergePriority ranks strategies for the merge rule's "higher priority
// wins" default (spec §4.9: auto > llm > css > xpath).
var mergePriority = map[StrategyName]int{
	StrategyAuto:  4,
	StrategyLLM:   3,
	StrategyCSS:   2,
	StrategyXPath: 1,
}

// Hybrid orchestrates the configured strategies over one fetched page,
// collecting every success and optionally merging them (spec §4.9).
type Hybrid struct {
	Fetcher      *fetch.Fetcher
	Auto         *AutoExtractor
	CSS          *CSSExtractor
	XPath        *XPathExtractor
	LLM          *LLMExtractor
	Order        []StrategyName
	MergeResults bool
}

// Run fetches url once and runs every configured strategy against the
// resulting HTML, in order, per spec §4.9's algorithm.
func (h *Hybrid) Run(ctx context.Context, url string, chain filter.Filter, retryCfg retry.Config) product.Data {
	order := h.Order
	if len(order) == 0 {
		order = DefaultStrategyOrder
	}

	crawl, err := h.Fetcher.Crawl(ctx, url, fetch.Options{FilterChain: chain}, retryCfg)
	if err != nil || crawl == nil || !crawl.Success {
		return product.Failed(url)
	}

	type outcome struct {
		strategy StrategyName
		data     product.Data
	}
	var successes []outcome

	for _, name := range order {
		data, ok := h.runStrategy(ctx, name, crawl.HTML, url)
		if ok {
			successes = append(successes, outcome{strategy: name, data: data})
		}
	}

	if len(successes) == 0 {
		return product.Failed(url)
	}
	if !h.MergeResults {
		return successes[0].data
	}

	merged := successes[0].data
	mergedPriority := mergePriority[successes[0].strategy]
	for _, s := range successes[1:] {
		merged = mergeTwo(merged, mergedPriority, s.data, mergePriority[s.strategy])
		if mergePriority[s.strategy] > mergedPriority {
			mergedPriority = mergePriority[s.strategy]
		}
	}
	merged.Source = url
	merged.ExtractionSuccess = true
	return merged
}

func (h *Hybrid) runStrategy(ctx context.Context, name StrategyName, html, url string) (product.Data, bool) {
	switch name {
	case StrategyAuto:
		if h.Auto == nil {
			return product.Data{}, false
		}
		d := h.Auto.Extract(ctx, html, url)
		return d, d.ExtractionSuccess
	case StrategyCSS:
		if h.CSS == nil {
			return product.Data{}, false
		}
		d := h.CSS.Extract(html, url)
		return d, d.ExtractionSuccess
	case StrategyXPath:
		if h.XPath == nil {
			return product.Data{}, false
		}
		d := h.XPath.Extract(html, url)
		return d, d.ExtractionSuccess
	case StrategyLLM:
		if h.LLM == nil {
			return product.Data{}, false
		}
		d := h.LLM.Extract(ctx, html, url)
		return d, d.ExtractionSuccess
	default:
		return product.Data{}, false
	}
}

// mergeTwo merges b into a under the field-by-field rules of spec §4.9.
// aPriority/bPriority resolve which side wins free-text/identifier ties.
func mergeTwo(a product.Data, aPriority int, b product.Data, bPriority int) product.Data {
	bWins := bPriority > aPriority

	a.Title = mergeText(a.Title, b.Title, bWins)
	a.Description = mergeText(a.Description, b.Description, bWins)
	a.ShortDescription = mergeText(a.ShortDescription, b.ShortDescription, bWins)
	a.Brand = preferNonEmpty(a.Brand, b.Brand, bWins)
	a.SKU = preferNonEmpty(a.SKU, b.SKU, bWins)
	a.UPC = preferNonEmpty(a.UPC, b.UPC, bWins)
	a.EAN = preferNonEmpty(a.EAN, b.EAN, bWins)
	a.ISBN = preferNonEmpty(a.ISBN, b.ISBN, bWins)
	a.MPN = preferNonEmpty(a.MPN, b.MPN, bWins)
	a.GTIN = preferNonEmpty(a.GTIN, b.GTIN, bWins)
	a.ShippingInfo = preferNonEmpty(a.ShippingInfo, b.ShippingInfo, bWins)
	a.Warranty = preferNonEmpty(a.Warranty, b.Warranty, bWins)
	a.Dimensions = preferNonEmpty(a.Dimensions, b.Dimensions, bWins)
	a.Weight = preferNonEmpty(a.Weight, b.Weight, bWins)
	a.Material = preferNonEmpty(a.Material, b.Material, bWins)
	a.Seller = preferNonEmpty(a.Seller, b.Seller, bWins)
	a.ReleaseDate = preferNonEmpty(a.ReleaseDate, b.ReleaseDate, bWins)

	if len(a.Category) == 0 {
		a.Category = b.Category
	}

	a.Price = mergePrice(a.Price, b.Price, bWins)
	a.Images = unionImages(a.Images, b.Images)
	a.Attributes = unionAttributes(a.Attributes, b.Attributes)

	if len(a.Reviews) == 0 {
		a.Reviews = b.Reviews
	}
	if len(a.Variants) == 0 {
		a.Variants = b.Variants
	}

	return a
}

func mergeText(a, b string, bWins bool) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if len(b) > len(a) || (len(b) == len(a) && bWins) {
		return b
	}
	return a
}

func preferNonEmpty(a, b string, bWins bool) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if bWins {
		return b
	}
	return a
}

func mergePrice(a, b product.Price, bWins bool) product.Price {
	an, bn := a.NonEmptyFieldCount(), b.NonEmptyFieldCount()
	if bn > an {
		return b
	}
	if an > bn {
		return a
	}
	if bWins {
		return b
	}
	return a
}

func unionImages(a, b []product.Image) []product.Image {
	seen := map[string]bool{}
	out := make([]product.Image, 0, len(a)+len(b))
	for _, img := range a {
		if !seen[img.URL] {
			seen[img.URL] = true
			out = append(out, img)
		}
	}
	for _, img := range b {
		if !seen[img.URL] {
			seen[img.URL] = true
			out = append(out, img)
		}
	}
	return out
}

func unionAttributes(a, b []product.Attribute) []product.Attribute {
	seen := map[string]bool{}
	out := make([]product.Attribute, 0, len(a)+len(b))
	for _, attr := range a {
		key := strings.ToLower(attr.Name)
		if !seen[key] {
			seen[key] = true
			out = append(out, attr)
		}
	}
	for _, attr := range b {
		key := strings.ToLower(attr.Name)
		if !seen[key] {
			seen[key] = true
			out = append(out, attr)
		}
	}
	return out
}
