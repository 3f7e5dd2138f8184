package schema

import (
	"encoding/json"
	"strings"
)

// attributePriority implements the built-in priority table from spec §4.7:
// higher index wins.
var attributePriority = map[string]int{
	"text":     0,
	"alt":      1,
	"href":     2,
	"src":      3,
	"data-*":   4,
	"itemprop": 5,
	"content":  6,
}

func attrRank(attr string) int {
	if strings.HasPrefix(attr, "data-") {
		return attributePriority["data-*"]
	}
	if r, ok := attributePriority[attr]; ok {
		return r
	}
	return -1
}

// specificity implements spec §4.7's selector specificity score: '#' counts
// 100, '.' and '[' count 10, bare element tags count 1.
func specificity(selector string) int {
	score := 0
	for _, r := range selector {
		switch r {
		case '#':
			score += 100
		case '.', '[':
			score += 10
		}
	}
	if score == 0 && selector != "" {
		score = 1
	}
	return score
}

// Merge combines N schemas into one per spec §4.7. The result is validated
// and corrected before return, satisfying the invariant that merge output
// is itself valid.
func Merge(schemas ...Schema) Schema {
	byName := map[string]Field{}
	order := []string{}

	for _, s := range schemas {
		for _, f := range s.Fields {
			existing, ok := byName[f.Name]
			if !ok {
				byName[f.Name] = f
				order = append(order, f.Name)
				continue
			}
			byName[f.Name] = mergeField(existing, f)
		}
	}

	merged := Schema{}
	for _, name := range order {
		merged.Fields = append(merged.Fields, byName[name])
	}
	corrected, _ := Correct(merged)
	return corrected
}

func mergeField(a, b Field) Field {
	out := a

	if specificity(b.Selector) > specificity(a.Selector) {
		out.Selector = b.Selector
	} else if specificity(b.Selector) == specificity(a.Selector) && len(b.Selector) < len(a.Selector) && b.Selector != "" {
		out.Selector = b.Selector
	}

	if attrRank(b.Attribute) > attrRank(a.Attribute) {
		out.Attribute = b.Attribute
	}

	out.Required = a.Required || b.Required
	out.Array = a.Array || b.Array

	if len(b.Description) > len(a.Description) {
		out.Description = b.Description
	}

	if a.PriceParsing == nil {
		out.PriceParsing = b.PriceParsing
	}

	return out
}

// parseLLMSchemaReply parses the LLM schema-generation reply into a Schema.
// The contract (spec §6) is a JSON object mapping field name to
// {"selector","attribute"}.
func parseLLMSchemaReply(reply string) (Schema, bool) {
	var raw map[string]map[string]string
	if err := json.Unmarshal([]byte(extractJSONObject(reply)), &raw); err != nil {
		return Schema{}, false
	}
	s := Schema{}
	for name, cfg := range raw {
		s.Fields = append(s.Fields, Field{
			Name:      name,
			Selector:  cfg["selector"],
			Attribute: cfg["attribute"],
		})
	}
	return s, len(s.Fields) > 0
}

// extractJSONObject trims any leading/trailing prose an LLM reply might
// wrap the JSON object in.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
