// Package llm defines the LLM collaborator contract consumed by the schema
// generator, the LLM content filter and the LLM strategy extractor. The
// core depends only on the Client interface — concrete providers are
// adapters, never a hard dependency (DESIGN NOTES: "LLM is an interface,
// not a dependency").
package llm

import "context"

// Params mirrors the provider contract in spec §6: model, temperature and
// max_tokens are the only knobs the core needs to pass through.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Client is the single capability the core requires of any LLM provider:
// a stateless text completion.
type Client interface {
	Complete(ctx context.Context, prompt string, params Params) (string, error)
}

// The three fixed prompts are part of the external contract (spec §6) and
// must ship verbatim; components reference these constants rather than
// building their own prompt text.
const (
	SchemaGenerationPrompt = `You are analyzing an e-commerce product page to infer a structured extraction schema.
Identify, for the given HTML, the best CSS selector for each of: title, price, identifiers (sku, upc, ean, isbn, mpn, gtin),
brand, availability, attributes, variants, reviews, shipping information, warranty, dimensions, weight, material, seller,
and release date. Respond with a JSON object mapping each field name to {"selector": string, "attribute": string}.
Only include fields you found reasonable evidence for in the HTML.`

	ExtractionPrompt = `You are extracting structured product data from an e-commerce page according to a provided schema.
For each field in the schema, locate the corresponding value in the HTML, including values carried in meta tags and
data-* attributes when the visible text does not contain them. Respond with a single JSON object whose keys are the
schema's field names and whose values are the extracted data, using null for fields you cannot find.`

	FallbackExtractionPrompt = `No extraction schema matched this page, or schema-based extraction failed.
Extract what you can directly from the HTML, prioritizing in this order: title, price, brand, images, and any
product identifiers (sku, upc, ean, isbn, mpn, gtin). Once those are covered, add any supplementary metadata you can
find: description, category, shipping information, warranty, dimensions, weight, material, seller, and release date.
Respond with a single JSON object using the same field names.`
)
