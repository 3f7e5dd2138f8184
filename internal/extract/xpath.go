package extract

import (
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/productlens/extractor/internal/product"
)

// XPathFieldSelector is one XPath-driven field mapping.
type XPathFieldSelector struct {
	Expression string
	Attribute  string
	Array      bool
}

// XPathSpec mirrors CSSSpec's shape but keyed by XPath expressions (spec
// §4.8: "same contract as CSS but driven by XPath expressions").
type XPathSpec struct {
	Fields      map[string]XPathFieldSelector
	ImagesXPath string
}

// XPathExtractor extracts ProductData via antchfx/htmlquery, falling back to
// the CSS extractor's minimal emulator when the document cannot be parsed
// as XML-ish HTML (spec §4.8's "fallback path using a minimal parser").
type XPathExtractor struct {
	Spec     XPathSpec
	compiled map[string]*xpath.Expr
}

// NewXPathExtractor compiles every field and images expression once via
// antchfx/xpath so repeated Extract calls (e.g. across a paginated crawl)
// don't re-parse the same expression per document. An expression that
// fails to compile is simply left uncompiled — selectValues falls back to
// htmlquery's own per-call compile, which surfaces the same error there.
func NewXPathExtractor(spec XPathSpec) *XPathExtractor {
	e := &XPathExtractor{Spec: spec, compiled: make(map[string]*xpath.Expr)}
	for _, fs := range spec.Fields {
		if expr, err := xpath.Compile(fs.Expression); err == nil {
			e.compiled[fs.Expression] = expr
		}
	}
	if spec.ImagesXPath != "" {
		if expr, err := xpath.Compile(spec.ImagesXPath); err == nil {
			e.compiled[spec.ImagesXPath] = expr
		}
	}
	return e
}

func (e *XPathExtractor) Extract(rawHTML, url string) product.Data {
	doc, err := htmlquery.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return e.fallback(rawHTML, url)
	}

	data := product.Data{URL: url, Source: url, ExtractionSuccess: true, ExtractedAt: time.Now().UTC()}

	for name, fs := range e.Spec.Fields {
		values := e.selectValues(doc, fs)
		if len(values) == 0 {
			continue
		}
		assignField(&data, name, values, fs.Array)
	}

	if e.Spec.ImagesXPath != "" {
		nodes, qerr := e.query(doc, e.Spec.ImagesXPath)
		if qerr == nil {
			for i, n := range nodes {
				src := htmlquery.SelectAttr(n, "src")
				if src == "" {
					continue
				}
				data.Images = append(data.Images, product.Image{
					URL: src, AltText: htmlquery.SelectAttr(n, "alt"), Position: i,
				})
			}
		}
	}

	if data.Title == "" {
		return product.Failed(url)
	}
	return data
}

// query runs a field expression, preferring the precompiled form built at
// construction time and falling back to htmlquery's own compile-per-call
// path for any expression that wasn't compiled successfully up front.
func (e *XPathExtractor) query(doc *html.Node, expression string) ([]*html.Node, error) {
	if expr, ok := e.compiled[expression]; ok {
		return htmlquery.QuerySelectorAll(doc, expr), nil
	}
	return htmlquery.QueryAll(doc, expression)
}

func (e *XPathExtractor) selectValues(doc *html.Node, fs XPathFieldSelector) []string {
	nodes, err := e.query(doc, fs.Expression)
	if err != nil {
		return nil
	}
	var out []string
	for _, n := range nodes {
		var v string
		switch fs.Attribute {
		case "", "text":
			v = strings.TrimSpace(htmlquery.InnerText(n))
		default:
			v = strings.TrimSpace(htmlquery.SelectAttr(n, fs.Attribute))
		}
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// fallback runs the CSS extractor when the document fails to parse via the
// full XPath engine, using the text after the last '/' of each XPath field
// expression verbatim as that field's CSS selector.
func (e *XPathExtractor) fallback(rawHTML, url string) product.Data {
	cssSpec := CSSSpec{Fields: map[string]FieldSelector{}}
	for name, fs := range e.Spec.Fields {
		sel := fs.Expression
		if idx := strings.LastIndex(sel, "/"); idx >= 0 {
			sel = sel[idx+1:]
		}
		cssSpec.Fields[name] = FieldSelector{Selector: sel, Attribute: fs.Attribute, Array: fs.Array}
	}
	cssExtractor := NewCSSExtractor(cssSpec)
	return cssExtractor.Extract(rawHTML, url)
}
