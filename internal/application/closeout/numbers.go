package closeout

import (
	"strings"

	"github.com/shopspring/decimal"
)

// amountNoise is stripped before parsing: currency symbols, spaces, apostrophes
var amountNoise = strings.NewReplacer(
	"€", "", "$", "", "£", "", "EUR", "",
	" ", "", "\u00a0", "", "\u202f", "", "'", "",
)

// ParseAmount parses a vendor amount, returning zero for malformed input
func ParseAmount(s string) decimal.Decimal {
	d, _ := ParseAmountOK(s)
	return d
}

// ParseAmountOK parses a vendor amount using decimal-comma aware rules:
//
//	"1234.5", "1234,5"       single separator is the decimal mark
//	"1.234,56", "1,234.56"   the last separator is the decimal mark
//	"1.234.567", "1,234,567" repeated separators are grouping only
func ParseAmountOK(s string) (decimal.Decimal, bool) {
	s = amountNoise.Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero, false
	}

	negative := false
	switch {
	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
		negative = true
		s = s[1 : len(s)-1]
	case strings.HasSuffix(s, "-"):
		negative = true
		s = strings.TrimSuffix(s, "-")
	}

	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")
	switch {
	case commas > 0 && dots > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas == 1:
		s = strings.Replace(s, ",", ".", 1)
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}
