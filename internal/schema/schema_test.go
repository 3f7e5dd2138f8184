package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrectThenValidIsAlwaysTrue(t *testing.T) {
	inputs := []Schema{
		{},
		{Fields: []Field{{Name: "title"}}},
		{Fields: []Field{{Name: "title", Selector: "h1", Required: true}, {Name: "title", Selector: "h2"}}},
		{Fields: []Field{{Name: "price", Selector: ".price"}}},
	}
	for _, s := range inputs {
		corrected, _ := Correct(s)
		assert.True(t, IsValid(corrected), "expected corrected schema to validate: %+v", corrected)
	}
}

func TestMergeContainsUnionAndIsValid(t *testing.T) {
	s1 := Schema{Fields: []Field{{Name: "title", Selector: "h1", Attribute: "text", Required: true}}}
	s2 := Schema{Fields: []Field{{Name: "price", Selector: "#price", Attribute: "content", Required: true, PriceParsing: DefaultPriceParsing()}}}

	merged := Merge(s1, s2)
	_, hasTitle := merged.FieldByName("title")
	_, hasPrice := merged.FieldByName("price")
	assert.True(t, hasTitle)
	assert.True(t, hasPrice)
	assert.True(t, IsValid(merged))
}

func TestMergePrefersHigherSpecificitySelector(t *testing.T) {
	s1 := Schema{Fields: []Field{{Name: "title", Selector: ".title", Attribute: "text"}}}
	s2 := Schema{Fields: []Field{{Name: "title", Selector: "#title", Attribute: "text"}}}
	merged := Merge(s1, s2)
	f, ok := merged.FieldByName("title")
	require.True(t, ok)
	assert.Equal(t, "#title", f.Selector)
}

func TestMergeAttributePriority(t *testing.T) {
	s1 := Schema{Fields: []Field{{Name: "title", Selector: "h1", Attribute: "text"}}}
	s2 := Schema{Fields: []Field{{Name: "title", Selector: "h1", Attribute: "content"}}}
	merged := Merge(s1, s2)
	f, ok := merged.FieldByName("title")
	require.True(t, ok)
	assert.Equal(t, "content", f.Attribute)
}

func TestEmptyHTMLGeneratesEmptySchemaThatValidatesAfterCorrection(t *testing.T) {
	s := Generate("", "")
	assert.True(t, IsValid(s))
	title, ok := s.FieldByName("title")
	require.True(t, ok)
	assert.True(t, title.Required)
}

func TestQualityScoreRange(t *testing.T) {
	s := Generate(`<html><body><h1 class="product-title" id="t">Widget</h1><div class="price">$9.99</div></body></html>`, "https://shop.example.com")
	score := QualityScore(s)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestBareMappingInjectsTextAttribute(t *testing.T) {
	s, err := Normalize(map[string]interface{}{"title": "h1", "price": ".price"})
	require.NoError(t, err)
	f, ok := s.FieldByName("title")
	require.True(t, ok)
	assert.Equal(t, "text", f.Attribute)
}

func TestCacheRevalidatesOnRead(t *testing.T) {
	c := NewCache(2)
	key := CacheKey("https://shop.example.com/p/1", "<html></html>")
	c.Put(key, Schema{Fields: []Field{{Name: "title"}}})

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.True(t, IsValid(got))
}

func TestCacheEviction(t *testing.T) {
	c := NewCache(1)
	c.Put("a", Schema{Fields: []Field{{Name: "title", Selector: "h1"}}})
	c.Put("b", Schema{Fields: []Field{{Name: "title", Selector: "h2"}}})
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
}
