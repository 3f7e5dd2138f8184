package schema

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/productlens/extractor/internal/llm"
)

// Domain categories used to pick domain-specific candidate fields (spec
// §4.6 step 1, §4.7 Enhancer).
const (
	DomainElectronics = "electronics"
	DomainFashion     = "fashion"
	DomainGrocery     = "grocery"
	DomainFurniture   = "furniture"
	DomainGeneral     = "general"
)

// domainFields extends the common catalogue with per-domain extras.
var domainFields = map[string][]string{
	DomainElectronics: {"specifications", "model_number", "warranty"},
	DomainFashion:     {"sizes", "colors", "material"},
	DomainGrocery:     {"weight", "ingredients", "expiration_date"},
	DomainFurniture:   {"dimensions", "material", "assembly_required"},
}

type candidate struct {
	selector string
	score    float64
}

var priceRe = regexp.MustCompile(`[$€£¥]|\d+[,.]\d{2}`)

var keywordsByField = map[string][]string{
	"title":        {"title", "name", "product"},
	"price":        {"price", "cost", "amount"},
	"description":  {"description", "desc", "details", "summary"},
	"brand":        {"brand", "manufacturer", "maker"},
	"images":       {"image", "photo", "picture"},
	"sku":          {"sku", "product-id", "item-number"},
	"availability": {"stock", "availability", "available"},
}

// Generate implements spec §4.6: builds a schema from HTML heuristics,
// optionally hinted by a URL's domain, then always runs it through the
// validator/corrector before returning.
func Generate(html, pageURL string) Schema {
	domain := domainHint(pageURL)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		empty, _ := Correct(Schema{})
		return empty
	}

	fields := append([]string{}, commonProductFields...)
	fields = append(fields, domainFields[domain]...)

	used := map[string]bool{}
	s := Schema{}
	for _, name := range fields {
		cand := bestCandidate(doc, name, used)
		if cand == nil {
			if name == "title" || name == "price" {
				s.Fields = append(s.Fields, Field{Name: name, Selector: ""})
			}
			continue
		}
		used[cand.selector] = true
		f := Field{Name: name, Selector: cand.selector}
		if name == "images" {
			f.Array = true
			f.Attribute = "src"
		}
		alts := alternativeSelectors(doc, name, used, 2)
		f.AlternativeSelectors = alts
		s.Fields = append(s.Fields, f)
	}

	corrected, _ := Correct(s)
	return corrected
}

// GenerateWithLLM requests a schema from the configured LLM (spec §4.6
// "Alternate path"), validates/corrects it, and blends it with the
// heuristic schema via Merge. Falls back to the pure heuristic schema if
// the LLM is unavailable or its reply can't be parsed as a schema mapping.
func GenerateWithLLM(ctx context.Context, html, pageURL string, client llm.Client) Schema {
	heuristic := Generate(html, pageURL)
	if client == nil {
		return heuristic
	}
	prompt := llm.SchemaGenerationPrompt + "\n\nHTML:\n" + html

	// A provider error or an unparsable reply is retried once before
	// falling back to the heuristic schema alone (spec §7: "LLM: provider
	// error, malformed reply — retryable once, then degrades").
	var parsed Schema
	var ok bool
	for attempt := 0; attempt < 2 && !ok; attempt++ {
		reply, err := client.Complete(ctx, prompt, llm.Params{})
		if err != nil || strings.TrimSpace(reply) == "" {
			continue
		}
		parsed, ok = parseLLMSchemaReply(reply)
	}
	if !ok {
		return heuristic
	}
	corrected, _ := Correct(parsed)
	return Merge(heuristic, corrected)
}

func domainHint(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return DomainGeneral
	}
	host := strings.ToLower(u.Host)
	switch {
	case strings.Contains(host, "electronic") || strings.Contains(host, "tech"):
		return DomainElectronics
	case strings.Contains(host, "fashion") || strings.Contains(host, "apparel") || strings.Contains(host, "cloth"):
		return DomainFashion
	case strings.Contains(host, "grocery") || strings.Contains(host, "food"):
		return DomainGrocery
	case strings.Contains(host, "furniture") || strings.Contains(host, "home"):
		return DomainFurniture
	default:
		return DomainGeneral
	}
}

func bestCandidate(doc *goquery.Document, field string, used map[string]bool) *candidate {
	cands := scoreCandidates(doc, field)
	var best *candidate
	for i := range cands {
		if used[cands[i].selector] {
			continue
		}
		if best == nil || cands[i].score > best.score {
			c := cands[i]
			best = &c
		}
	}
	return best
}

func alternativeSelectors(doc *goquery.Document, field string, used map[string]bool, max int) []string {
	cands := scoreCandidates(doc, field)
	var out []string
	for _, c := range cands {
		if used[c.selector] || c.score < 0.3 {
			continue
		}
		out = append(out, c.selector)
		if len(out) >= max {
			break
		}
	}
	return out
}

// scoreCandidates implements the scoring rules of spec §4.6 steps 1–3:
// known-selector matches, keyword search, regex search, and the class-name
// heuristic, each producing a candidate with structural bonuses applied.
func scoreCandidates(doc *goquery.Document, field string) []candidate {
	var out []candidate

	if known, ok := DefaultSelectors[field]; ok {
		for _, sel := range strings.Split(known, ",") {
			sel = strings.TrimSpace(sel)
			if sel == "" {
				continue
			}
			if doc.Find(sel).Length() > 0 {
				out = append(out, candidate{selector: sel, score: clamp01(0.6 + structuralBonus(doc, sel, field))})
			}
		}
	}

	if field == "images" {
		doc.Find("img").Each(func(_ int, s *goquery.Selection) {
			src, ok := s.Attr("src")
			if !ok || src == "" {
				return
			}
			lower := strings.ToLower(src)
			if strings.HasSuffix(lower, ".gif") || strings.HasSuffix(lower, ".svg") {
				return
			}
			if w, ok := s.Attr("width"); ok && !meetsMinDimension(w) {
				return
			}
			if h, ok := s.Attr("height"); ok && !meetsMinDimension(h) {
				return
			}
			score := 0.4
			class, _ := s.Attr("class")
			if strings.Contains(strings.ToLower(class), "product") || strings.Contains(strings.ToLower(class), "main") {
				score += 0.3
			}
			sel := syntheticSelector(s, idAttr(s), class)
			if sel == "" {
				sel = "img"
			}
			out = append(out, candidate{selector: sel, score: clamp01(score)})
		})
	}

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		text := strings.ToLower(s.Text())

		matched := false
		base := 0.3
		for _, kw := range keywordsByField[field] {
			if strings.Contains(strings.ToLower(class), kw) || strings.Contains(strings.ToLower(id), kw) {
				matched = true
				base += 0.15
			}
			if strings.Contains(text, kw) && len(s.Children().Nodes) == 0 {
				matched = true
				base += 0.1
			}
		}
		if field == "price" && priceRe.MatchString(text) {
			matched = true
			base += 0.2
		}
		if !matched {
			return
		}
		sel := syntheticSelector(s, id, class)
		if sel == "" {
			return
		}
		out = append(out, candidate{selector: sel, score: clamp01(base + structuralBonusFromSelection(s))})
	})

	return out
}

func syntheticSelector(s *goquery.Selection, id, class string) string {
	if id != "" {
		return "#" + strings.Fields(id)[0]
	}
	if class != "" {
		first := strings.Fields(class)
		if len(first) > 0 {
			return "." + first[0]
		}
	}
	return goquery.NodeName(s)
}

func structuralBonus(doc *goquery.Document, sel, field string) float64 {
	s := doc.Find(sel).First()
	if s.Length() == 0 {
		return 0
	}
	return structuralBonusFromSelection(s)
}

func structuralBonusFromSelection(s *goquery.Selection) float64 {
	var bonus float64
	tag := goquery.NodeName(s)
	if tag == "h1" {
		bonus += 0.2
	}
	if display, _ := s.Attr("style"); strings.Contains(display, "display:none") || strings.Contains(display, "display: none") {
		bonus -= 0.5
	}
	if id, ok := s.Attr("id"); ok && id != "" {
		bonus += 0.2
	}
	if class, ok := s.Attr("class"); ok && class != "" {
		bonus += 0.15
	}
	return bonus
}

func idAttr(s *goquery.Selection) string {
	id, _ := s.Attr("id")
	return id
}

func meetsMinDimension(v string) bool {
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return true // non-numeric, don't reject
		}
		n = n*10 + int(r-'0')
	}
	return n == 0 || n >= 100
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
