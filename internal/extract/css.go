// Package extract implements the strategy extractors and hybrid
// orchestrator of spec §4.8–§4.9: CSS, XPath, auto-schema and LLM
// extraction, all sharing extract(url) → ProductData and the never-raise
// failure contract.
package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/productlens/extractor/internal/price"
	"github.com/productlens/extractor/internal/product"
	"github.com/productlens/extractor/internal/schema"
)

// FieldSelector describes one CSS-driven field extraction (spec §4.8's
// "selectors: map field -> (selector, attribute, array, special)").
type FieldSelector struct {
	Selector  string
	Attribute string // "text", "html", or an element attribute name
	Array     bool
}

// CSSSpec is the selector map a CSS extractor is configured with, plus the
// special composite fields spec §4.8 calls out by name.
type CSSSpec struct {
	Fields             map[string]FieldSelector
	ImagesSelector     string
	AttributesSelector string
	AttrNameSelector   string
	AttrValueSelector  string
}

// CSSExtractor extracts ProductData via CSS selectors against raw HTML.
type CSSExtractor struct {
	Spec CSSSpec
}

func NewCSSExtractor(spec CSSSpec) *CSSExtractor {
	return &CSSExtractor{Spec: spec}
}

// Extract implements the CSS extractor contract of spec §4.8: never raises,
// returns product.Failed(url) on any structural failure.
func (e *CSSExtractor) Extract(html, url string) product.Data {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return product.Failed(url)
	}
	return e.extractFromDoc(doc, url)
}

func (e *CSSExtractor) extractFromDoc(doc *goquery.Document, url string) product.Data {
	data := product.Data{URL: url, Source: url, ExtractionSuccess: true}
	data.ExtractedAt = time.Now().UTC()

	for name, fs := range e.Spec.Fields {
		values := selectValues(doc, fs)
		if len(values) == 0 {
			continue
		}
		assignField(&data, name, values, fs.Array)
	}

	if e.Spec.ImagesSelector != "" {
		data.Images = extractImages(doc, e.Spec.ImagesSelector)
	}
	if e.Spec.AttributesSelector != "" {
		data.Attributes = extractAttributePairs(doc, e.Spec.AttributesSelector, e.Spec.AttrNameSelector, e.Spec.AttrValueSelector)
	}

	if data.Title == "" {
		return product.Failed(url)
	}
	return data
}

func selectValues(doc *goquery.Document, fs FieldSelector) []string {
	sel := doc.Find(fs.Selector)
	if sel.Length() == 0 {
		return nil
	}
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		var v string
		switch fs.Attribute {
		case "", "text":
			v = strings.TrimSpace(s.Text())
		case "html":
			h, err := goquery.OuterHtml(s)
			if err == nil {
				v = strings.TrimSpace(h)
			}
		default:
			v, _ = s.Attr(fs.Attribute)
			v = strings.TrimSpace(v)
		}
		if v != "" {
			out = append(out, v)
		}
	})
	return out
}

func assignField(data *product.Data, name string, values []string, array bool) {
	first := values[0]
	switch name {
	case "title":
		data.Title = first
	case "description":
		data.Description = first
	case "short_description":
		data.ShortDescription = first
	case "brand":
		data.Brand = first
	case "sku":
		data.SKU = first
	case "upc":
		data.UPC = first
	case "ean":
		data.EAN = first
	case "isbn":
		data.ISBN = first
	case "mpn":
		data.MPN = first
	case "gtin":
		data.GTIN = first
	case "price":
		data.Price = priceFromFields(data.Price, first)
	case "category":
		data.Category = splitCategory(first)
	case "shipping_info":
		data.ShippingInfo = first
	case "warranty":
		data.Warranty = first
	case "dimensions":
		data.Dimensions = first
	case "weight":
		data.Weight = first
	case "material":
		data.Material = first
	case "seller":
		data.Seller = first
	case "release_date":
		data.ReleaseDate = first
	default:
		if array {
			for _, v := range values {
				data.Attributes = append(data.Attributes, product.Attribute{Name: name, Value: v})
			}
		}
	}
}

func priceFromFields(existing product.Price, raw string) product.Price {
	parsed := price.Parse(raw)
	existing.CurrentPrice = parsed.CurrentPrice
	existing.Currency = parsed.Currency
	return existing
}

func splitCategory(raw string) []string {
	parts := strings.Split(raw, ">")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func extractImages(doc *goquery.Document, selector string) []product.Image {
	var images []product.Image
	doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		url, ok := s.Attr("src")
		if !ok {
			url, ok = s.Attr("href")
		}
		if !ok || strings.TrimSpace(url) == "" {
			return
		}
		alt, _ := s.Attr("alt")
		images = append(images, product.Image{URL: strings.TrimSpace(url), AltText: alt, Position: i})
	})
	return images
}

func extractAttributePairs(doc *goquery.Document, container, nameSel, valueSel string) []product.Attribute {
	var attrs []product.Attribute
	doc.Find(container).Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Find(nameSel).First().Text())
		value := strings.TrimSpace(s.Find(valueSel).First().Text())
		if name != "" && value != "" {
			attrs = append(attrs, product.Attribute{Name: name, Value: value})
		}
	})
	return attrs
}

// specFromSchema converts a generated/validated extraction Schema into a
// CSSSpec, the bridge the auto-schema extractor uses (spec §4.8).
func specFromSchema(s schema.Schema) CSSSpec {
	spec := CSSSpec{Fields: map[string]FieldSelector{}}
	for _, f := range s.Fields {
		name := f.Name
		switch name {
		case "images":
			spec.ImagesSelector = f.Selector
			continue
		case "attributes":
			spec.AttributesSelector = f.Selector
			continue
		}
		attr := f.Attribute
		if attr == "" {
			attr = "text"
		}
		spec.Fields[strings.ReplaceAll(name, "price.", "")] = FieldSelector{
			Selector:  f.Selector,
			Attribute: attr,
			Array:     f.Array,
		}
	}
	return spec
}
