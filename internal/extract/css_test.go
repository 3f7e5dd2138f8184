package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHTML = `
<html><body>
  <h1 class="product-title">Wireless Mouse</h1>
  <span class="price">$29.99</span>
  <div class="brand">Acme</div>
  <img class="product-image" src="https://example.com/mouse.jpg" alt="Mouse">
</body></html>
`

func TestCSSExtractorExtractsCoreFields(t *testing.T) {
	spec := CSSSpec{
		Fields: map[string]FieldSelector{
			"title": {Selector: "h1.product-title", Attribute: "text"},
			"price": {Selector: "span.price", Attribute: "text"},
			"brand": {Selector: "div.brand", Attribute: "text"},
		},
		ImagesSelector: "img.product-image",
	}
	e := NewCSSExtractor(spec)
	data := e.Extract(sampleHTML, "https://shop.example.com/mouse")

	require.True(t, data.ExtractionSuccess)
	assert.Equal(t, "Wireless Mouse", data.Title)
	assert.Equal(t, "Acme", data.Brand)
	assert.Equal(t, 29.99, data.Price.CurrentPrice)
	assert.Equal(t, "USD", data.Price.Currency)
	require.Len(t, data.Images, 1)
	assert.Equal(t, "https://example.com/mouse.jpg", data.Images[0].URL)
}

func TestCSSExtractorReturnsFailedWhenTitleMissing(t *testing.T) {
	e := NewCSSExtractor(CSSSpec{Fields: map[string]FieldSelector{
		"price": {Selector: "span.price", Attribute: "text"},
	}})
	data := e.Extract(sampleHTML, "https://shop.example.com/mouse")
	assert.False(t, data.ExtractionSuccess)
	assert.Equal(t, "Extraction Failed", data.Title)
}

func TestXPathExtractorExtractsCoreFields(t *testing.T) {
	spec := XPathSpec{Fields: map[string]XPathFieldSelector{
		"title": {Expression: "//h1[@class='product-title']", Attribute: "text"},
		"price": {Expression: "//span[@class='price']", Attribute: "text"},
	}}
	e := NewXPathExtractor(spec)
	data := e.Extract(sampleHTML, "https://shop.example.com/mouse")

	require.True(t, data.ExtractionSuccess)
	assert.Equal(t, "Wireless Mouse", data.Title)
	assert.Equal(t, 29.99, data.Price.CurrentPrice)
}
