package closeout

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical payment methods, in the fixed order used by every stored record
const (
	MethodCash              = "Cash"
	MethodCard              = "Card"
	MethodPendingCollection = "Pending Collection"
	MethodPrepaidTransfer   = "Prepaid Transfer"
	MethodAgoraPay          = "AgoraPay"
)

// CanonicalMethods lists the settlement categories in output order
var CanonicalMethods = []string{
	MethodCash,
	MethodCard,
	MethodPendingCollection,
	MethodPrepaidTransfer,
	MethodAgoraPay,
}

// methodsByID maps the vendor's numeric payment-method identifiers
var methodsByID = map[string]string{
	"1": MethodCash,
	"2": MethodCard,
	"3": MethodPendingCollection,
	"4": MethodPrepaidTransfer,
	"5": MethodAgoraPay,
}

// methodAliases maps folded vendor labels (English and Spanish) to canonical names
var methodAliases = map[string]string{
	"cash":                  MethodCash,
	"efectivo":              MethodCash,
	"metalico":              MethodCash,
	"contado":               MethodCash,
	"card":                  MethodCard,
	"cards":                 MethodCard,
	"credit card":           MethodCard,
	"debit card":            MethodCard,
	"tarjeta":               MethodCard,
	"tarjetas":              MethodCard,
	"tarjeta de credito":    MethodCard,
	"tarjeta credito":       MethodCard,
	"tarjeta de debito":     MethodCard,
	"datafono":              MethodCard,
	"pending collection":    MethodPendingCollection,
	"pendingcollection":     MethodPendingCollection,
	"pendiente de cobro":    MethodPendingCollection,
	"pendiente cobro":       MethodPendingCollection,
	"pendiente":             MethodPendingCollection,
	"prepaid transfer":      MethodPrepaidTransfer,
	"prepaidtransfer":       MethodPrepaidTransfer,
	"transferencia":         MethodPrepaidTransfer,
	"transferencia prepago": MethodPrepaidTransfer,
	"prepago":               MethodPrepaidTransfer,
	"agorapay":              MethodAgoraPay,
	"agora pay":             MethodAgoraPay,
	"agora-pay":             MethodAgoraPay,
}

// PaymentLine is an amount settled with one payment method
type PaymentLine struct {
	MethodName string
	Amount     decimal.Decimal
}

// FoldMethodName returns the comparison key for a payment method label:
// accents stripped, case folded, inner whitespace collapsed.
func FoldMethodName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}
	folded := cases.Fold().String(stripped)
	return strings.Join(strings.Fields(folded), " ")
}

// CanonicalMethodByID resolves a numeric vendor identifier to a canonical method
func CanonicalMethodByID(id string) (string, bool) {
	name, ok := methodsByID[strings.TrimSpace(id)]
	return name, ok
}

// CanonicalMethodByName resolves a vendor label to a canonical method
func CanonicalMethodByName(name string) (string, bool) {
	folded := FoldMethodName(name)
	if folded == "" {
		return "", false
	}
	if m, ok := methodAliases[folded]; ok {
		return m, true
	}
	for _, m := range CanonicalMethods {
		if FoldMethodName(m) == folded {
			return m, true
		}
	}
	return "", false
}

// ResolveMethodName maps a label or numeric id to its canonical name, or
// returns the trimmed label unchanged for methods outside the canonical set.
func ResolveMethodName(label string) string {
	label = strings.TrimSpace(label)
	if m, ok := CanonicalMethodByID(label); ok {
		return m
	}
	if m, ok := CanonicalMethodByName(label); ok {
		return m
	}
	return label
}

// IsCanonicalMethod reports whether name is one of the five canonical methods
func IsCanonicalMethod(name string) bool {
	for _, m := range CanonicalMethods {
		if m == name {
			return true
		}
	}
	return false
}

// MergePayments sums lines that share a folded method name. The first-seen
// label is kept, except that canonical methods always use their canonical name.
// Lines without a method name are dropped.
func MergePayments(lines []PaymentLine) []PaymentLine {
	index := make(map[string]int, len(lines))
	out := make([]PaymentLine, 0, len(lines))
	for _, line := range lines {
		name := ResolveMethodName(line.MethodName)
		key := FoldMethodName(name)
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			out[i].Amount = out[i].Amount.Add(line.Amount)
			continue
		}
		index[key] = len(out)
		out = append(out, PaymentLine{MethodName: name, Amount: line.Amount})
	}
	return out
}

// OrderPayments merges lines and returns the five canonical methods first, in
// fixed order and defaulting to zero, followed by extra methods in first-seen order.
func OrderPayments(lines []PaymentLine) []PaymentLine {
	merged := MergePayments(lines)
	out := make([]PaymentLine, 0, len(CanonicalMethods)+len(merged))
	byName := make(map[string]decimal.Decimal, len(merged))
	for _, line := range merged {
		byName[line.MethodName] = line.Amount
	}
	for _, m := range CanonicalMethods {
		out = append(out, PaymentLine{MethodName: m, Amount: byName[m]})
	}
	for _, line := range merged {
		if !IsCanonicalMethod(line.MethodName) {
			out = append(out, line)
		}
	}
	return out
}

// SumPayments returns the total of all line amounts
func SumPayments(lines []PaymentLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount)
	}
	return total
}

// HasNonZeroPayment reports whether any line carries a non-zero amount
func HasNonZeroPayment(lines []PaymentLine) bool {
	for _, line := range lines {
		if !line.Amount.IsZero() {
			return true
		}
	}
	return false
}
