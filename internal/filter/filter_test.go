package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHTML = `<div class="product"><span class="price">€19,90</span></div>`

func TestChainSequence(t *testing.T) {
	chain, err := NewChain("", Sequence,
		CSS{Selector: ".product", ExtractText: false},
		CSS{Selector: ".price", ExtractText: true},
	)
	require.NoError(t, err)

	out, err := chain.Filter(context.Background(), sampleHTML)
	require.NoError(t, err)
	assert.Equal(t, []string{"€19,90"}, out)
}

func TestChainSequenceShortCircuitsOnEmpty(t *testing.T) {
	chain, err := NewChain("", Sequence,
		CSS{Selector: ".nonexistent", ExtractText: true},
		CSS{Selector: ".price", ExtractText: true},
	)
	require.NoError(t, err)

	out, err := chain.Filter(context.Background(), sampleHTML)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestChainAllIsIntersectionAndCommutative(t *testing.T) {
	html := `<div><p class="a">shared</p><p class="b">shared</p><p class="c">only-a</p></div>`
	f1 := CSS{Selector: ".a, .c", ExtractText: true}
	f2 := CSS{Selector: ".a, .b", ExtractText: true}

	c1, err := NewChain("", All, f1, f2)
	require.NoError(t, err)
	out1, err := c1.Filter(context.Background(), html)
	require.NoError(t, err)

	c2, err := NewChain("", All, f2, f1)
	require.NoError(t, err)
	out2, err := c2.Filter(context.Background(), html)
	require.NoError(t, err)

	assert.ElementsMatch(t, out1, out2)
	assert.Contains(t, out1, "shared")
	assert.NotContains(t, out1, "only-a")
}

func TestChainAnyIsUnionAndCommutative(t *testing.T) {
	html := `<div><p class="a">alpha</p><p class="b">beta</p></div>`
	f1 := CSS{Selector: ".a", ExtractText: true}
	f2 := CSS{Selector: ".b", ExtractText: true}

	c1, _ := NewChain("", Any, f1, f2)
	out1, err := c1.Filter(context.Background(), html)
	require.NoError(t, err)

	c2, _ := NewChain("", Any, f2, f1)
	out2, err := c2.Filter(context.Background(), html)
	require.NoError(t, err)

	assert.ElementsMatch(t, out1, out2)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, out1)
}

func TestNewChainRejectsEmptyFilterList(t *testing.T) {
	_, err := NewChain("", All)
	assert.Error(t, err)
}

func TestNewChainRejectsUnknownStrategy(t *testing.T) {
	_, err := NewChain("", Strategy("BOGUS"), CSS{Selector: "p"})
	assert.Error(t, err)
}

func TestRegexReplacement(t *testing.T) {
	repl := "REDACTED"
	f := Regex{Pattern: `\d+`, Replacement: &repl}
	out, err := f.Filter(context.Background(), "price 199 dollars")
	require.NoError(t, err)
	assert.Equal(t, []string{"price REDACTED dollars"}, out)
}

func TestRegexCaptureGroups(t *testing.T) {
	f := Regex{Pattern: `(\w+)=(\w+)`}
	out, err := f.Filter(context.Background(), "a=1 b=2")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "b2"}, out)
}

func TestXPathFilter(t *testing.T) {
	f := XPath{Selector: "//span[@class='price']", ExtractText: true}
	out, err := f.Filter(context.Background(), sampleHTML)
	require.NoError(t, err)
	assert.Equal(t, []string{"€19,90"}, out)
}
