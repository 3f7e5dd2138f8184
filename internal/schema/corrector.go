package schema

import "github.com/andybalholm/cascadia"

// Correction records one deterministic repair the corrector applied; kept
// as data rather than mutating the schema in place, so the quality report
// can reference the undo history (DESIGN NOTES).
type Correction struct {
	Field  string
	Reason string
}

// commonProductFields is the coverage set used by the quality score's
// 30%-weighted "coverage of common product fields" term (spec §4.5).
var commonProductFields = []string{
	"title", "price", "description", "brand", "images", "sku", "availability",
}

// Correct applies every repair spec §4.5 enumerates and returns the
// corrected schema plus the list of corrections made. It is always safe to
// call on an already-valid schema, which can still be changed: title and
// price get the required flag, images the array flag, and price a default
// price_parsing when those are missing.
func Correct(s Schema) (Schema, []Correction) {
	var corrections []Correction

	byName := map[string]int{}
	var deduped []Field
	for _, f := range s.Fields {
		if idx, exists := byName[f.Name]; exists {
			corrections = append(corrections, Correction{Field: f.Name, Reason: "dropped duplicate field, kept first occurrence"})
			_ = idx
			continue
		}
		byName[f.Name] = len(deduped)
		deduped = append(deduped, f)
	}
	s.Fields = deduped

	for i := range s.Fields {
		f := &s.Fields[i]

		if f.Selector == "" || !validSelector(f.Selector) {
			f.Selector = defaultSelectorFor(f.Name)
			corrections = append(corrections, Correction{Field: f.Name, Reason: "invalid or missing selector replaced with default"})
		}

		if f.Attribute == "" {
			if f.Name == "images" {
				f.Attribute = "src"
			} else {
				f.Attribute = "text"
			}
			corrections = append(corrections, Correction{Field: f.Name, Reason: "missing attribute defaulted"})
		}

		if (f.Name == "title" || f.Name == "price") && !f.Required {
			f.Required = true
			corrections = append(corrections, Correction{Field: f.Name, Reason: "required flag set for mandatory field"})
		}

		if f.Name == "images" && !f.Array {
			f.Array = true
			corrections = append(corrections, Correction{Field: f.Name, Reason: "array flag set for images"})
		}

		if f.Name == "price" && f.PriceParsing == nil {
			f.PriceParsing = DefaultPriceParsing()
			corrections = append(corrections, Correction{Field: f.Name, Reason: "default price_parsing injected"})
		}
	}

	for _, name := range RequiredFieldNames {
		if _, ok := s.FieldByName(name); !ok {
			f := Field{Name: name, Selector: defaultSelectorFor(name), Attribute: "text", Required: true}
			if name == "price" {
				f.PriceParsing = DefaultPriceParsing()
			}
			s.Fields = append(s.Fields, f)
			corrections = append(corrections, Correction{Field: name, Reason: "required field added"})
		}
	}

	return s, corrections
}

func validSelector(sel string) bool {
	if sel == "" {
		return false
	}
	_, err := cascadia.ParseGroup(sel)
	return err == nil
}

// QualityScore implements the blended scoring formula from spec §4.5:
// 70% average per-field score, 30% coverage of common product fields,
// clamped to [0, 1].
func QualityScore(s Schema) float64 {
	if len(s.Fields) == 0 {
		return 0
	}

	var total float64
	for _, f := range s.Fields {
		total += fieldScore(f)
	}
	avgFieldScore := total / float64(len(s.Fields))

	present := 0
	for _, name := range commonProductFields {
		if _, ok := s.FieldByName(name); ok {
			present++
		}
	}
	coverage := float64(present) / float64(len(commonProductFields))

	score := 0.7*avgFieldScore + 0.3*coverage
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

func fieldScore(f Field) float64 {
	var score float64
	if f.Name != "" && f.Selector != "" {
		score += 0.5
	}
	expectedRequired := f.Name == "title" || f.Name == "price"
	if f.Required == expectedRequired && expectedRequired {
		score += 0.1
	}
	if len(f.Selector) > 5 {
		score += 0.1
	}
	if f.Attribute != "" {
		score += 0.1
	}
	if f.Name == "price" && f.PriceParsing != nil {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}
	return score
}
