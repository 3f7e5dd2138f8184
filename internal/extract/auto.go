package extract

import (
	"context"

	"github.com/productlens/extractor/internal/llm"
	"github.com/productlens/extractor/internal/product"
	"github.com/productlens/extractor/internal/schema"
)

// AutoExtractor generates (or reuses a cached) schema, feeds it to a CSS
// extractor, and returns the resulting ProductData (spec §4.8).
type AutoExtractor struct {
	cache     *schema.Cache
	llmClient llm.Client
}

func NewAutoExtractor(cache *schema.Cache, llmClient llm.Client) *AutoExtractor {
	return &AutoExtractor{cache: cache, llmClient: llmClient}
}

func (e *AutoExtractor) Extract(ctx context.Context, html, url string) product.Data {
	s := e.schemaFor(ctx, html, url)
	corrected, _ := schema.Correct(s)
	css := NewCSSExtractor(specFromSchema(corrected))
	return css.Extract(html, url)
}

func (e *AutoExtractor) schemaFor(ctx context.Context, html, url string) schema.Schema {
	key := schema.CacheKey(url, html)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			return cached
		}
	}

	var generated schema.Schema
	if e.llmClient != nil {
		generated = schema.GenerateWithLLM(ctx, html, url, e.llmClient)
	} else {
		generated = schema.Generate(html, url)
	}

	if e.cache != nil {
		e.cache.Put(key, generated)
	}
	return generated
}
