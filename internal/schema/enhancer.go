package schema

// Feedback reports which fields succeeded and which failed during a prior
// extraction attempt, driving the enhancer's alternative-selector additions
// (spec §4.7).
type Feedback struct {
	SuccessfulFields []string
	FailedFields     []string
	Domain           string
}

// Enhance mutates a copy of the schema to add alternative selectors for
// failing fields and post-processing hints, then validates the result
// before returning it.
func Enhance(s Schema, fb Feedback) Schema {
	s.Fields = append([]Field(nil), s.Fields...)
	candidateFields := append([]string{}, commonProductFields...)
	candidateFields = append(candidateFields, domainFields[fb.Domain]...)

	failed := map[string]bool{}
	for _, f := range fb.FailedFields {
		failed[f] = true
	}

	for i := range s.Fields {
		f := &s.Fields[i]
		if !failed[f.Name] {
			continue
		}
		if alt, ok := DefaultSelectors[f.Name]; ok && !containsString(f.AlternativeSelectors, alt) {
			f.AlternativeSelectors = append(f.AlternativeSelectors, alt)
		}
		if f.Name == "price" && f.PriceParsing == nil {
			f.PriceParsing = DefaultPriceParsing()
		}
	}

	// Add any domain-specific fields the failure feedback implies are
	// missing entirely (e.g. "specifications" for electronics).
	for _, name := range candidateFields {
		if _, ok := s.FieldByName(name); ok {
			continue
		}
		if failed[name] {
			s.Fields = append(s.Fields, Field{
				Name:      name,
				Selector:  defaultSelectorFor(name),
				Attribute: "text",
			})
		}
	}

	corrected, _ := Correct(s)
	return corrected
}

func containsString(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}
