// Package filter implements the content-filter algebra from spec §4.4: a
// tagged variant of filter kinds composed into chains with ALL/ANY/SEQUENCE
// semantics. FilterChain is itself a Filter so chains nest without special
// cases (DESIGN NOTES: "FilterChain is itself a variant case").
package filter

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"

	"github.com/productlens/extractor/internal/llm"
	"github.com/productlens/extractor/internal/xerrors"
)

// Filter is the single polymorphic capability every FilterSpec variant and
// FilterChain implement: reduce HTML to a list of string fragments.
type Filter interface {
	Filter(ctx context.Context, html string) ([]string, error)
}

// Strategy is the chain combination rule.
type Strategy string

const (
	All      Strategy = "ALL"
	Any      Strategy = "ANY"
	Sequence Strategy = "SEQUENCE"
)

func (s Strategy) valid() bool {
	switch s {
	case All, Any, Sequence:
		return true
	}
	return false
}

// CSS evaluates a CSS selector via goquery.
type CSS struct {
	Selector    string
	ExtractText bool
}

func (f CSS) Filter(_ context.Context, html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, xerrors.FilterErr("css", "parse html", err)
	}
	sel := doc.Find(f.Selector)
	if sel.Length() == 0 {
		return []string{}, nil
	}
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		if f.ExtractText {
			out = append(out, strings.TrimSpace(s.Text()))
		} else {
			h, err := goquery.OuterHtml(s)
			if err == nil {
				out = append(out, strings.TrimSpace(h))
			}
		}
	})
	return out, nil
}

// XPath evaluates an XPath expression via antchfx/htmlquery, falling back
// to a minimal CSS-like emulator (css-descendant only) when the expression
// fails to parse — spec §4.4's "minimal emulator when a full engine is
// unavailable" requirement, here triggered by parse failure rather than
// build-tag absence since the engine is always linked in.
type XPath struct {
	Selector    string
	ExtractText bool
}

func (f XPath) Filter(_ context.Context, html string) ([]string, error) {
	doc, err := htmlquery.Parse(strings.NewReader(html))
	if err != nil {
		return nil, xerrors.FilterErr("xpath", "parse html", err)
	}
	nodes, err := htmlquery.QueryAll(doc, f.Selector)
	if err != nil {
		return f.fallbackCSS(html)
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if f.ExtractText {
			out = append(out, strings.TrimSpace(htmlquery.InnerText(n)))
		} else {
			out = append(out, strings.TrimSpace(htmlquery.OutputHTML(n, true)))
		}
	}
	return out, nil
}

func (f XPath) fallbackCSS(html string) ([]string, error) {
	selector := f.Selector
	if idx := strings.LastIndex(selector, "/"); idx >= 0 {
		selector = selector[idx+1:]
	}
	cssFilter := CSS{Selector: selector, ExtractText: f.ExtractText}
	return cssFilter.Filter(context.Background(), html)
}

// Regex substitutes or extracts capture groups.
type Regex struct {
	Pattern     string
	Replacement *string
}

func (f Regex) Filter(_ context.Context, html string) ([]string, error) {
	re, err := regexp.Compile(f.Pattern)
	if err != nil {
		return nil, xerrors.FilterErr("regex", "invalid pattern", err)
	}
	if f.Replacement != nil {
		return []string{re.ReplaceAllString(html, *f.Replacement)}, nil
	}
	matches := re.FindAllStringSubmatch(html, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 1 {
			out = append(out, strings.Join(m[1:], ""))
		} else {
			out = append(out, m[0])
		}
	}
	return out, nil
}

// BM25 reduces HTML to text fragments relevant to a query using a
// deterministic term-frequency score over block-level text nodes; this is a
// from-scratch implementation (see DESIGN.md) since no example repo ships a
// ranking library suited to this narrow, block-scoped scoring task.
type BM25 struct {
	Query     string
	Threshold float64
}

func (f BM25) Filter(_ context.Context, html string) ([]string, error) {
	blocks, err := textBlocks(html)
	if err != nil {
		return nil, err
	}
	terms := queryTerms(f.Query)
	if len(terms) == 0 {
		return blocks, nil
	}
	scored := make([]scoredBlock, 0, len(blocks))
	for _, b := range blocks {
		scored = append(scored, scoredBlock{text: b, score: bm25Score(b, terms)})
	}
	return selectAboveThreshold(scored, f.Threshold), nil
}

// Pruning reduces HTML to fragments above a structural-importance
// threshold; when a query is supplied it additionally weighs term overlap,
// otherwise it ranks purely on structural signal (text density, tag depth).
type Pruning struct {
	Query     string
	Threshold float64
}

func (f Pruning) Filter(_ context.Context, html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, xerrors.FilterErr("pruning", "parse html", err)
	}
	terms := queryTerms(f.Query)
	var scored []scoredBlock
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" || len(s.Children().Nodes) > 0 {
			return
		}
		score := structuralScore(s, text)
		if len(terms) > 0 {
			score = 0.6*score + 0.4*bm25Score(text, terms)
		}
		scored = append(scored, scoredBlock{text: text, score: score})
	})
	return selectAboveThreshold(scored, f.Threshold), nil
}

// LLM submits the HTML plus an instruction to the configured LLM client and
// returns its fragment list, one fragment per newline-delimited line of the
// reply.
type LLM struct {
	Instruction string
	Client      llm.Client
	Params      llm.Params
}

func (f LLM) Filter(ctx context.Context, html string) ([]string, error) {
	if f.Client == nil {
		return nil, xerrors.FilterErr("llm", "no llm client configured", nil)
	}
	prompt := fmt.Sprintf("%s\n\nHTML:\n%s", f.Instruction, html)

	// A provider error is retried once before the filter degrades to an
	// error (spec §7: "LLM: provider error ... retryable once, then
	// degrades").
	var reply string
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		reply, err = f.Client.Complete(ctx, prompt, f.Params)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, xerrors.LLMErr("filter", "llm completion failed", err)
	}
	lines := strings.Split(reply, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// Chain composes filters under ALL/ANY/SEQUENCE semantics, per spec §4.4.
// Chain itself implements Filter so chains can nest as elements of another
// chain's Filters slice.
type Chain struct {
	Name     string
	Strategy Strategy
	Filters  []Filter
}

// NewChain validates at construction time: an empty filter list or an
// unknown strategy is a configuration error (spec §4.4).
func NewChain(name string, strategy Strategy, filters ...Filter) (*Chain, error) {
	if len(filters) == 0 {
		return nil, xerrors.ConfigErr("filter_chain", "filter list must not be empty", nil)
	}
	if !strategy.valid() {
		return nil, xerrors.ConfigErr("filter_chain", fmt.Sprintf("unknown strategy %q", strategy), nil)
	}
	return &Chain{Name: name, Strategy: strategy, Filters: filters}, nil
}

func (c *Chain) Filter(ctx context.Context, html string) ([]string, error) {
	switch c.Strategy {
	case Sequence:
		return c.runSequence(ctx, html)
	case All:
		return c.runAll(ctx, html)
	case Any:
		return c.runAny(ctx, html)
	default:
		return nil, xerrors.ConfigErr("filter_chain", fmt.Sprintf("unknown strategy %q", c.Strategy), nil)
	}
}

func (c *Chain) runSequence(ctx context.Context, html string) ([]string, error) {
	current := []string{html}
	for _, f := range c.Filters {
		var next []string
		for _, in := range current {
			out, err := f.Filter(ctx, in)
			if err != nil {
				return nil, err
			}
			next = append(next, out...)
		}
		current = next
		if len(current) == 0 {
			return []string{}, nil
		}
	}
	return withHeader(c.Name, current), nil
}

func (c *Chain) runAll(ctx context.Context, html string) ([]string, error) {
	var sets [][]string
	for _, f := range c.Filters {
		out, err := f.Filter(ctx, html)
		if err != nil {
			return nil, err
		}
		sets = append(sets, normalizeSet(out))
	}
	if len(sets) == 0 {
		return []string{}, nil
	}
	result := sets[0]
	for _, s := range sets[1:] {
		result = intersect(result, s)
	}
	return withHeader(c.Name, result), nil
}

func (c *Chain) runAny(ctx context.Context, html string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, f := range c.Filters {
		res, err := f.Filter(ctx, html)
		if err != nil {
			return nil, err
		}
		for _, r := range res {
			r = strings.TrimSpace(r)
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return withHeader(c.Name, out), nil
}

func withHeader(name string, fragments []string) []string {
	if name == "" || len(fragments) == 0 {
		return fragments
	}
	out := make([]string, 0, len(fragments)+1)
	out = append(out, "== "+name+" ==")
	out = append(out, fragments...)
	return out
}

func normalizeSet(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	sort.Strings(out)
	return out
}

func intersect(a, b []string) []string {
	bs := map[string]bool{}
	for _, x := range b {
		bs[x] = true
	}
	var out []string
	seen := map[string]bool{}
	for _, x := range a {
		if bs[x] && !seen[x] {
			out = append(out, x)
			seen[x] = true
		}
	}
	return out
}
