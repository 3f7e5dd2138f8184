package filter

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type scoredBlock struct {
	text  string
	score float64
}

// textBlocks splits HTML into leaf block-level text fragments: elements
// with no element children but non-empty text.
func textBlocks(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	var out []string
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		if len(s.Children().Nodes) > 0 {
			return
		}
		t := strings.TrimSpace(s.Text())
		if t != "" {
			out = append(out, t)
		}
	})
	if len(out) == 0 {
		// no body wrapper, or fragment input without block elements
		t := strings.TrimSpace(doc.Text())
		if t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

func queryTerms(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	return strings.Fields(query)
}

// bm25Score computes a simplified, deterministic term-frequency score: each
// query term with tf occurrences contributes tf·(k1+1)/(tf+k1), k1 = 1.2,
// and the sum is divided by twice the number of query terms. This is the
// classic BM25 saturation shape without corpus-wide IDF statistics (a
// single document has no corpus to estimate document frequency from).
func bm25Score(text string, terms []string) float64 {
	lower := strings.ToLower(text)
	if len(terms) == 0 {
		return 0
	}
	const k1 = 1.2
	var score float64
	for _, term := range terms {
		count := strings.Count(lower, term)
		if count == 0 {
			continue
		}
		tf := float64(count)
		score += (tf * (k1 + 1)) / (tf + k1)
	}
	return score / float64(len(terms)*2)
}

// structuralScore ranks a text block by element depth, tag weight and text
// density — heavier/headier elements near the top of the DOM and dense text
// blocks score higher, mirroring the "structural-importance threshold"
// pruning filter described in spec §4.4.
func structuralScore(s *goquery.Selection, text string) float64 {
	tag := goquery.NodeName(s)
	base := map[string]float64{
		"h1": 0.9, "h2": 0.8, "h3": 0.7,
		"p": 0.5, "li": 0.4, "span": 0.3, "div": 0.3,
	}[tag]
	if base == 0 {
		base = 0.2
	}

	density := float64(len(text))
	if density > 200 {
		density = 200
	}
	densityScore := density / 200

	depth := 0
	s.Parents().Each(func(_ int, _ *goquery.Selection) { depth++ })
	depthPenalty := 1.0
	if depth > 6 {
		depthPenalty = 0.7
	}

	score := (0.5*base + 0.5*densityScore) * depthPenalty
	if score > 1 {
		score = 1
	}
	return score
}

func selectAboveThreshold(scored []scoredBlock, threshold float64) []string {
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	out := make([]string, 0, len(scored))
	for _, b := range scored {
		if b.score >= threshold {
			out = append(out, b.text)
		}
	}
	return out
}
