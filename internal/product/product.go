// Package product defines the canonical extraction output shared by every
// strategy extractor, the deduplicator and the storage engine.
package product

import "time"

// Image is a single product image reference.
type Image struct {
	URL      string `json:"url"`
	AltText  string `json:"alt_text,omitempty"`
	Position int    `json:"position,omitempty"`
}

// Attribute is a generic name/value pair (size, color, material...).
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Price carries the normalised pricing fields produced by the price parser.
type Price struct {
	CurrentPrice       float64 `json:"current_price"`
	Currency           string  `json:"currency"`
	OriginalPrice      float64 `json:"original_price,omitempty"`
	DiscountPercentage float64 `json:"discount_percentage,omitempty"`
	DiscountAmount     float64 `json:"discount_amount,omitempty"`
	PricePerUnit       string  `json:"price_per_unit,omitempty"`
}

// NonEmptyFieldCount returns how many of Price's six sub-fields are
// populated; used by the hybrid extractor's merge rule ("prefer the price
// object with more non-empty sub-fields").
func (p Price) NonEmptyFieldCount() int {
	n := 0
	if p.CurrentPrice != 0 {
		n++
	}
	if p.Currency != "" {
		n++
	}
	if p.OriginalPrice != 0 {
		n++
	}
	if p.DiscountPercentage != 0 {
		n++
	}
	if p.DiscountAmount != 0 {
		n++
	}
	if p.PricePerUnit != "" {
		n++
	}
	return n
}

// Variant is a product variation; it intentionally does not embed Data to
// avoid a cyclic-looking type — it carries only the fields a variant needs.
type Variant struct {
	Attributes   []Attribute `json:"attributes,omitempty"`
	Price        *Price      `json:"price,omitempty"`
	Image        *Image      `json:"image,omitempty"`
	Availability string      `json:"availability,omitempty"`
}

// Review is a single customer review.
type Review struct {
	ReviewerName     string    `json:"reviewer_name,omitempty"`
	Rating           float64   `json:"rating,omitempty"`
	Title            string    `json:"title,omitempty"`
	Content          string    `json:"content,omitempty"`
	Date             time.Time `json:"date,omitempty"`
	VerifiedPurchase bool      `json:"verified_purchase,omitempty"`
}

// Data is the canonical extraction output, ProductData in the design.
type Data struct {
	// Identity
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
	SKU   string `json:"sku,omitempty"`
	UPC   string `json:"upc,omitempty"`
	EAN   string `json:"ean,omitempty"`
	ISBN  string `json:"isbn,omitempty"`
	MPN   string `json:"mpn,omitempty"`
	GTIN  string `json:"gtin,omitempty"`

	// Pricing
	Price Price `json:"price"`

	// Media
	Images []Image `json:"images,omitempty"`

	// Descriptive
	Description      string   `json:"description,omitempty"`
	ShortDescription string   `json:"short_description,omitempty"`
	Brand            string   `json:"brand,omitempty"`
	Category         []string `json:"category,omitempty"`

	// Structured extras
	Attributes []Attribute `json:"attributes,omitempty"`
	Variants   []Variant   `json:"variants,omitempty"`
	Reviews    []Review    `json:"reviews,omitempty"`

	// Metadata
	ShippingInfo string `json:"shipping_info,omitempty"`
	Warranty     string `json:"warranty,omitempty"`
	Dimensions   string `json:"dimensions,omitempty"`
	Weight       string `json:"weight,omitempty"`
	Material     string `json:"material,omitempty"`
	Seller       string `json:"seller,omitempty"`
	ReleaseDate  string `json:"release_date,omitempty"`

	// Bookkeeping
	ExtractedAt       time.Time              `json:"extracted_at"`
	Source            string                 `json:"source,omitempty"`
	RawData           map[string]interface{} `json:"raw_data,omitempty"`
	ExtractionSuccess bool                   `json:"extraction_success"`
	Version           int                    `json:"version,omitempty"`
}

// Failed builds the canonical failure-mode ProductData every strategy
// extractor returns instead of raising: extraction_success=false with a
// fixed failure title.
func Failed(source string) Data {
	return Data{
		Title:             "Extraction Failed",
		Source:            source,
		ExtractedAt:       time.Now().UTC(),
		ExtractionSuccess: false,
	}
}

// Identifiers returns the set of non-empty identifier fields used for
// identity resolution (storage product-id derivation, dedup signatures).
func (d Data) Identifiers() map[string]string {
	ids := map[string]string{}
	for k, v := range map[string]string{
		"sku": d.SKU, "upc": d.UPC, "ean": d.EAN,
		"isbn": d.ISBN, "mpn": d.MPN, "gtin": d.GTIN,
	} {
		if v != "" {
			ids[k] = v
		}
	}
	return ids
}

// NonNullFieldCount counts populated fields, used by the deduplicator's
// "most_complete" merge strategy.
func (d Data) NonNullFieldCount() int {
	n := 0
	if d.Title != "" {
		n++
	}
	if d.URL != "" {
		n++
	}
	for _, id := range d.Identifiers() {
		if id != "" {
			n++
		}
	}
	if d.Price.CurrentPrice != 0 {
		n++
	}
	if d.Price.Currency != "" {
		n++
	}
	if len(d.Images) > 0 {
		n++
	}
	if d.Description != "" {
		n++
	}
	if d.ShortDescription != "" {
		n++
	}
	if d.Brand != "" {
		n++
	}
	if len(d.Category) > 0 {
		n++
	}
	if len(d.Attributes) > 0 {
		n++
	}
	if len(d.Variants) > 0 {
		n++
	}
	if len(d.Reviews) > 0 {
		n++
	}
	if d.ShippingInfo != "" {
		n++
	}
	if d.Warranty != "" {
		n++
	}
	if d.Dimensions != "" {
		n++
	}
	if d.Weight != "" {
		n++
	}
	if d.Material != "" {
		n++
	}
	if d.Seller != "" {
		n++
	}
	if d.ReleaseDate != "" {
		n++
	}
	return n
}
