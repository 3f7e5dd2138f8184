package schema

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/go-playground/validator/v10"

	"github.com/productlens/extractor/internal/xerrors"
)

// structValidator enforces the struct-tag constraints on Field/PriceParsing
// (required/min, see types.go) ahead of the semantic checks below. It
// catches structural defects — e.g. a PriceParsing with zero currency
// symbols — that the field name/selector/attribute checks don't cover.
// cascadia.ParseGroup still owns CSS-syntax validation, which tags can't
// express.
var structValidator = validator.New()

// ValidationError reports a single schema defect; the corrector maps each
// one to a deterministic repair.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("field %q: %s", e.Field, e.Message)
	}
	return e.Message
}

// Normalize accepts either the canonical {fields: [...]} shape or a bare
// mapping of field name -> selector string, and always returns the
// canonical shape. A bare mapping always gets attribute="text" injected
// (spec §9 open question, resolved per SPEC_FULL §C).
func Normalize(raw map[string]interface{}) (Schema, error) {
	if fieldsRaw, ok := raw["fields"]; ok {
		fields, ok := fieldsRaw.([]interface{})
		if !ok {
			return Schema{}, xerrors.SchemaErr("normalize", "fields must be a list", nil)
		}
		s := Schema{}
		if name, ok := raw["name"].(string); ok {
			s.Name = name
		}
		for _, fr := range fields {
			fm, ok := fr.(map[string]interface{})
			if !ok {
				continue
			}
			s.Fields = append(s.Fields, fieldFromMap(fm))
		}
		return s, nil
	}

	// Bare mapping: field name -> selector string or sub-config.
	s := Schema{}
	for name, v := range raw {
		switch val := v.(type) {
		case string:
			s.Fields = append(s.Fields, Field{Name: name, Selector: val, Attribute: "text"})
		case map[string]interface{}:
			f := fieldFromMap(val)
			f.Name = name
			if f.Attribute == "" {
				f.Attribute = "text"
			}
			s.Fields = append(s.Fields, f)
		}
	}
	return s, nil
}

func fieldFromMap(m map[string]interface{}) Field {
	f := Field{}
	if v, ok := m["name"].(string); ok {
		f.Name = v
	}
	if v, ok := m["selector"].(string); ok {
		f.Selector = v
	}
	if v, ok := m["attribute"].(string); ok {
		f.Attribute = v
	}
	if v, ok := m["required"].(bool); ok {
		f.Required = v
	}
	if v, ok := m["array"].(bool); ok {
		f.Array = v
	}
	if v, ok := m["description"].(string); ok {
		f.Description = v
	}
	return f
}

// Validate runs the checks from spec §4.5 and returns every violation
// found (does not stop at the first).
func Validate(s Schema) []ValidationError {
	var errs []ValidationError

	if len(s.Fields) == 0 {
		errs = append(errs, ValidationError{Message: "schema must have a non-empty fields list"})
		return errs
	}

	seen := map[string]int{}
	for _, name := range RequiredFieldNames {
		if _, ok := s.FieldByName(name); !ok {
			errs = append(errs, ValidationError{Field: name, Message: "required field is missing"})
		}
	}

	for _, f := range s.Fields {
		if f.Name == "" {
			errs = append(errs, ValidationError{Message: "field name must be non-empty"})
			continue
		}
		seen[f.Name]++
		if seen[f.Name] == 2 {
			errs = append(errs, ValidationError{Field: f.Name, Message: "duplicate field name"})
		}
		if err := structValidator.Struct(f); err != nil {
			for _, fe := range err.(validator.ValidationErrors) {
				errs = append(errs, ValidationError{
					Field:   f.Name,
					Message: fmt.Sprintf("%s failed %q validation", strings.ToLower(fe.Field()), fe.Tag()),
				})
			}
		}
		if f.Selector != "" {
			if _, err := cascadia.ParseGroup(f.Selector); err != nil {
				errs = append(errs, ValidationError{Field: f.Name, Message: "selector is not valid CSS: " + err.Error()})
			}
		}
	}

	return errs
}

// IsValid reports whether s has no validation errors.
func IsValid(s Schema) bool {
	return len(Validate(s)) == 0
}
