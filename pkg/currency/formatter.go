package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

type style struct {
	prefix    string
	thousands string
	decimal   string
	places    int32
}

var styles = map[string]style{
	"BRL": {prefix: "R$ ", thousands: ".", decimal: ",", places: 2},
	"EUR": {prefix: "€ ", thousands: ".", decimal: ",", places: 2},
	"USD": {prefix: "US$ ", thousands: ",", decimal: ".", places: 2},
	"GBP": {prefix: "£", thousands: ",", decimal: ".", places: 2},
	"IDR": {prefix: "IDR ", thousands: ".", decimal: ",", places: 0},
}

// Format renders amount for display in the given ISO currency. Unknown codes
// are prefixed with the code and use a comma thousands separator.
func Format(amount decimal.Decimal, code string) string {
	code = strings.ToUpper(code)
	s, ok := styles[code]
	if !ok {
		s = style{prefix: code + " ", thousands: ",", decimal: ".", places: 2}
	}

	rounded := amount.Round(s.places)
	negative := rounded.IsNegative()
	if negative {
		rounded = rounded.Neg()
	}

	fixed := rounded.StringFixed(s.places)
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	result := s.prefix + addThousandsSeparator(intPart, s.thousands)
	if s.places > 0 {
		result += s.decimal + fracPart
	}
	if negative {
		result = "-" + result
	}
	return result
}

// FormatFloat formats figures that are already float64, such as the analysis
// summary price range.
func FormatFloat(amount float64, code string) string {
	return Format(decimal.NewFromFloat(amount), code)
}

func addThousandsSeparator(s string, sep string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	b.Grow(n + (n-1)/3*len(sep))
	for i := 0; i < n; i++ {
		if i > 0 && (n-i)%3 == 0 {
			b.WriteString(sep)
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
