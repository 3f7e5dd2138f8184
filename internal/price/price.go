// Package price implements the currency-aware price string parser (spec
// §4.10). It mirrors the teacher's transform-rule style in
// internal/pipeline/types.go (small, table-driven, single-purpose
// functions) rather than a general parsing library, since the grammar here
// is narrow and fully specified.
package price

import (
	"regexp"
	"strconv"
	"strings"
)

// Parsed is the normalised output: a non-negative amount and an ISO
// currency code (possibly empty if no symbol was recognised).
type Parsed struct {
	CurrentPrice float64
	Currency    string
}

// symbolOrder fixes the scan order: the first symbol in this table that
// occurs anywhere in the string sets the currency, whatever its position in
// the string. Multi-rune prefixes (A$, C$) are checked before the bare $
// they contain.
var symbolOrder = []struct {
	symbol   string
	currency string
}{
	{"A$", "AUD"},
	{"C$", "CAD"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
	{"₽", "RUB"},
	{"₩", "KRW"},
}

var digitsRe = regexp.MustCompile(`\.?\d+(?:[.,]\d+)*`)

// Parse implements the §4.10 algorithm verbatim.
func Parse(raw string) Parsed {
	s := strings.ReplaceAll(raw, " ", " ")
	s = strings.TrimSpace(s)

	currency := ""
	for _, sym := range symbolOrder {
		if idx := strings.Index(s, sym.symbol); idx >= 0 {
			currency = sym.currency
			s = s[:idx] + s[idx+len(sym.symbol):]
			break
		}
	}

	match := digitsRe.FindString(s)
	if match == "" {
		return Parsed{CurrentPrice: 0, Currency: currency}
	}

	numeric := resolveSeparators(match)
	val, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return Parsed{CurrentPrice: 0, Currency: currency}
	}
	if val < 0 {
		val = 0
	}
	return Parsed{CurrentPrice: val, Currency: currency}
}

// resolveSeparators decides which of ',' and '.' is the decimal point per
// spec §4.10 step 4, and normalises a leading bare '.' the way "0.0" and
// ".0" are meant to parse identically (SPEC_FULL §C open-question
// resolution).
func resolveSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// comma is decimal: drop dots (thousands), comma -> dot
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		after := s[lastComma+1:]
		if len(after) == 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	return s
}
