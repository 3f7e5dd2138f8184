package price

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name   string
		in     string
		amount float64
		curr   string
	}{
		{"simple usd", "$9.99", 9.99, "USD"},
		{"euro thousands comma decimal", "€19,90", 19.90, "EUR"},
		{"thousands dot decimal comma", "1.234,56 €", 1234.56, "EUR"},
		{"thousands comma decimal dot", "1,234.56", 1234.56, ""},
		{"bare leading dot", ".50", 0.50, ""},
		{"zero dot zero", "0.0", 0.0, ""},
		{"no digits", "Free", 0, ""},
		{"aud prefix", "A$12.00", 12.00, "AUD"},
		{"yen", "¥500", 500, "JPY"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Parse(c.in)
			assert.InDelta(t, c.amount, got.CurrentPrice, 0.0001)
			assert.Equal(t, c.curr, got.Currency)
			assert.GreaterOrEqual(t, got.CurrentPrice, 0.0)
		})
	}
}

func TestParseCurrencyMappingProperty(t *testing.T) {
	mapping := map[string]string{"$": "USD", "€": "EUR", "£": "GBP", "¥": "JPY"}
	for sym, code := range mapping {
		got := Parse(sym + "10.00")
		assert.Equal(t, code, got.Currency)
	}
}
