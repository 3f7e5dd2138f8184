package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/productlens/extractor/internal/llm"
	"github.com/productlens/extractor/internal/product"
)

// LLMExtractor sends HTML plus a fixed extraction prompt to the configured
// LLM client and parses the JSON reply into ProductData (spec §4.8). When
// fallback is true, FallbackExtractionPrompt is used instead of
// ExtractionPrompt.
type LLMExtractor struct {
	Client   llm.Client
	Params   llm.Params
	Fallback bool
}

func NewLLMExtractor(client llm.Client, params llm.Params) *LLMExtractor {
	return &LLMExtractor{Client: client, Params: params}
}

// Extract never raises: a nil client or any LLM/parse failure yields
// product.Failed(url), matching Open Question #2's resolution that the
// extractor must never emit placeholder data when no provider is wired.
func (e *LLMExtractor) Extract(ctx context.Context, html, url string) product.Data {
	if e.Client == nil {
		return product.Failed(url)
	}

	prompt := e.promptFor(html)

	// A provider error or an unparsable reply is retried once before the
	// extraction degrades to failure (spec §7: "LLM: provider error,
	// malformed reply — retryable once, then degrades to extraction
	// failure").
	var fields map[string]interface{}
	var ok bool
	for attempt := 0; attempt < 2 && !ok; attempt++ {
		reply, err := e.Client.Complete(ctx, prompt, e.Params)
		if err != nil {
			continue
		}
		if err := json.Unmarshal([]byte(extractJSON(reply)), &fields); err == nil {
			ok = true
		}
	}
	if !ok {
		return product.Failed(url)
	}

	data := dataFromLLMFields(fields, url)
	if data.Title == "" {
		return product.Failed(url)
	}
	return data
}

func (e *LLMExtractor) promptFor(html string) string {
	base := llm.ExtractionPrompt
	if e.Fallback {
		base = llm.FallbackExtractionPrompt
	}
	return fmt.Sprintf("%s\n\nHTML:\n%s", base, html)
}

func dataFromLLMFields(fields map[string]interface{}, url string) product.Data {
	data := product.Data{URL: url, Source: url, ExtractionSuccess: true, ExtractedAt: time.Now().UTC()}

	str := func(k string) string {
		if v, ok := fields[k]; ok && v != nil {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
		}
		return ""
	}

	data.Title = str("title")
	data.Description = str("description")
	data.ShortDescription = str("short_description")
	data.Brand = str("brand")
	data.SKU = str("sku")
	data.UPC = str("upc")
	data.EAN = str("ean")
	data.ISBN = str("isbn")
	data.MPN = str("mpn")
	data.GTIN = str("gtin")
	data.ShippingInfo = str("shipping_info")
	data.Warranty = str("warranty")
	data.Dimensions = str("dimensions")
	data.Weight = str("weight")
	data.Material = str("material")
	data.Seller = str("seller")
	data.ReleaseDate = str("release_date")

	if rawPrice := str("price"); rawPrice != "" {
		data.Price = priceFromFields(data.Price, rawPrice)
	} else if priceMap, ok := fields["price"].(map[string]interface{}); ok {
		if cp, ok := priceMap["current_price"].(float64); ok {
			data.Price.CurrentPrice = cp
		}
		if cur, ok := priceMap["currency"].(string); ok {
			data.Price.Currency = cur
		}
	}

	if cat := str("category"); cat != "" {
		data.Category = splitCategory(cat)
	}

	if rawImages, ok := fields["images"].([]interface{}); ok {
		for i, ri := range rawImages {
			if u, ok := ri.(string); ok && u != "" {
				data.Images = append(data.Images, product.Image{URL: u, Position: i})
			}
		}
	}

	if rawAttrs, ok := fields["attributes"].(map[string]interface{}); ok {
		for name, v := range rawAttrs {
			if s, ok := v.(string); ok && s != "" {
				data.Attributes = append(data.Attributes, product.Attribute{Name: name, Value: s})
			}
		}
	}

	return data
}

// extractJSON trims any leading/trailing prose an LLM reply might wrap its
// JSON object in, returning only the outermost {...} span.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
