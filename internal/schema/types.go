// Package schema implements the extraction schema lifecycle: validation,
// automatic correction, heuristic/LLM generation, merging and
// feedback-driven enhancement (spec §4.5–§4.7).
package schema

// PriceParsing carries the currency parsing hints attached to a price
// field.
type PriceParsing struct {
	CurrencySymbols    []string `json:"currency_symbols" yaml:"currency_symbols" validate:"required,min=1"`
	DecimalSeparator   string   `json:"decimal_separator" yaml:"decimal_separator" validate:"required"`
	ThousandsSeparator string   `json:"thousands_separator" yaml:"thousands_separator" validate:"required"`
	StripNonNumeric    bool     `json:"strip_non_numeric" yaml:"strip_non_numeric"`
}

// DefaultPriceParsing is injected by the corrector when a price field is
// missing price_parsing (spec §4.5).
func DefaultPriceParsing() *PriceParsing {
	return &PriceParsing{
		CurrencySymbols:    []string{"$", "€", "£", "¥"},
		DecimalSeparator:   ".",
		ThousandsSeparator: ",",
		StripNonNumeric:    true,
	}
}

// Field describes how to extract a single named field from HTML.
type Field struct {
	Name                 string        `json:"name" yaml:"name" validate:"required"`
	Selector             string        `json:"selector" yaml:"selector" validate:"required"`
	Attribute            string        `json:"attribute" yaml:"attribute" validate:"required"`
	Required             bool          `json:"required" yaml:"required"`
	Array                bool          `json:"array" yaml:"array"`
	PriceParsing         *PriceParsing `json:"price_parsing,omitempty" yaml:"price_parsing,omitempty" validate:"omitempty"`
	Description          string        `json:"description,omitempty" yaml:"description,omitempty"`
	AlternativeSelectors []string      `json:"alternative_selectors,omitempty" yaml:"alternative_selectors,omitempty"`
}

// Schema is a named list of Fields — the ExtractionSchema of spec §3.
type Schema struct {
	Name   string  `json:"name,omitempty" yaml:"name,omitempty"`
	Fields []Field `json:"fields" yaml:"fields" validate:"dive"`
}

// FieldByName returns the field with the given name, if present.
func (s Schema) FieldByName(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredFieldNames are always-required fields per spec §4.5.
var RequiredFieldNames = []string{"title", "price"}

// DefaultSelectors is the built-in registry the corrector consults when a
// field is missing or has an invalid selector (spec §4.5).
var DefaultSelectors = map[string]string{
	"title":        "h1, .product-title, [itemprop='name']",
	"price":        ".price, [itemprop='price'], .product-price",
	"description":  ".description, [itemprop='description']",
	"brand":        ".brand, [itemprop='brand']",
	"images":       "img.product-image, [itemprop='image']",
	"sku":          "[itemprop='sku'], .sku",
	"availability": "[itemprop='availability'], .availability",
}

func defaultSelectorFor(name string) string {
	if s, ok := DefaultSelectors[name]; ok {
		return s
	}
	return "." + name
}
