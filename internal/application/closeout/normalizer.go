package closeout

import (
	"github.com/closeout/backend/internal/domain/closeout"
	"github.com/closeout/backend/internal/domain/integration"
	"github.com/shopspring/decimal"
)

// NormalizedPayments is the canonical money view of one raw document
type NormalizedPayments struct {
	// Gross is nil when neither the vendor nor the payment lines provide it
	Gross *decimal.Decimal
	// Payments lists the five canonical methods first, then extras in first-seen order
	Payments []closeout.PaymentLine
	// HasLines is false when no payment source produced a line; Payments is then all zeros
	HasLines bool
}

// paymentTier collects candidate lines from one family of sources
type paymentTier func(doc *integration.Document) []closeout.PaymentLine

// paymentTiers are tried in priority order; the first tier producing lines wins
var paymentTiers = []paymentTier{
	totalsByMethodLines,
	typedDocumentLines,
	genericPaymentLines,
	multiBalanceLines,
}

// NormalizePayments derives the gross amount and the canonical payment
// breakdown of a raw closeout or invoice. It never fails: malformed
// values degrade to zero or absent.
func NormalizePayments(doc *integration.Document) NormalizedPayments {
	gross := resolveGross(doc)

	if gross == nil || gross.IsZero() {
		if fallback := fallbackGross(doc); fallback != nil {
			gross = fallback
		}
	}

	var lines []closeout.PaymentLine
	for _, tier := range paymentTiers {
		if lines = tier(doc); len(lines) > 0 {
			break
		}
	}
	merged := closeout.MergePayments(lines)

	if (gross == nil || gross.IsZero()) && len(merged) > 0 {
		sum := closeout.SumPayments(merged)
		gross = &sum
	}

	return NormalizedPayments{
		Gross:    gross,
		Payments: closeout.OrderPayments(merged),
		HasLines: len(merged) > 0,
	}
}

// resolveGross reads the gross figure from an amounts/totals object, else the top level
func resolveGross(doc *integration.Document) *decimal.Decimal {
	if amounts := ResolveDocument(doc, amountsKeys); amounts != nil {
		if d, ok := ResolveAmount(amounts, grossKeys); ok {
			return &d
		}
	}
	if d, ok := ResolveTopAmount(doc, grossKeys); ok {
		return &d
	}
	return nil
}

// resolveSubAmount reads net, vat or surcharge the same way as the gross figure
func resolveSubAmount(doc *integration.Document, keys []string) *decimal.Decimal {
	if amounts := ResolveDocument(doc, amountsKeys); amounts != nil {
		if d, ok := ResolveAmount(amounts, keys); ok {
			return &d
		}
	}
	if d, ok := ResolveTopAmount(doc, keys); ok {
		return &d
	}
	return nil
}

// fallbackGross sums the totals-by-method map, else a multi-entry balances array
func fallbackGross(doc *integration.Document) *decimal.Decimal {
	if lines := totalsByMethodLines(doc); len(lines) > 0 {
		sum := closeout.SumPayments(lines)
		return &sum
	}
	if lines := multiBalanceLines(doc); len(lines) > 0 {
		sum := closeout.SumPayments(lines)
		return &sum
	}
	return nil
}

// totalsByMethodLines reads a {method: amount} map. Keys may be numeric
// method ids or labels; values may be scalars or objects with an amount.
func totalsByMethodLines(doc *integration.Document) []closeout.PaymentLine {
	totals := ResolveDocument(doc, totalsByMethodKeys)
	if totals == nil {
		return nil
	}
	var lines []closeout.PaymentLine
	totals.Each(func(key string, value any) bool {
		var amount decimal.Decimal
		switch v := value.(type) {
		case *integration.Document:
			amount, _ = ResolveAmount(v, lineAmountKeys)
		default:
			if !isScalar(v) {
				return true
			}
			amount = ParseAmount(scalarString(v))
		}
		lines = append(lines, closeout.PaymentLine{
			MethodName: closeout.ResolveMethodName(key),
			Amount:     amount,
		})
		return true
	})
	return lines
}

// typedDocumentLines concatenates the per-document-kind payment arrays
func typedDocumentLines(doc *integration.Document) []closeout.PaymentLine {
	var lines []closeout.PaymentLine
	for _, keys := range [][]string{
		invoicePaymentsKeys,
		ticketPaymentsKeys,
		deliveryNotePaymentsKeys,
		salesOrderPaymentsKeys,
	} {
		lines = append(lines, paymentArrayLines(doc, keys, lineAmountKeys)...)
	}
	return lines
}

func genericPaymentLines(doc *integration.Document) []closeout.PaymentLine {
	return paymentArrayLines(doc, genericPaymentsKeys, lineAmountKeys)
}

// multiBalanceLines reads end amounts from a balances array with more than one entry
func multiBalanceLines(doc *integration.Document) []closeout.PaymentLine {
	balances := ResolveArray(doc, balancesKeys)
	if len(balances) < 2 {
		return nil
	}
	return arrayLines(balances, balanceEndKeys)
}

func paymentArrayLines(doc *integration.Document, keys, amountKeys []string) []closeout.PaymentLine {
	return arrayLines(ResolveArray(doc, keys), amountKeys)
}

func arrayLines(items []any, amountKeys []string) []closeout.PaymentLine {
	var lines []closeout.PaymentLine
	for _, item := range items {
		entry, ok := item.(*integration.Document)
		if !ok {
			continue
		}
		name := ResolveString(entry, methodNameKeys)
		if name == "" {
			name = ResolveString(entry, methodIDKeys)
		}
		if name == "" {
			continue
		}
		amount, _ := ResolveAmount(entry, amountKeys)
		lines = append(lines, closeout.PaymentLine{
			MethodName: closeout.ResolveMethodName(name),
			Amount:     amount,
		})
	}
	return lines
}

// documentPayments returns the merged lines of one typed payment array, without canonical padding
func documentPayments(doc *integration.Document, keys []string) []closeout.PaymentLine {
	return closeout.MergePayments(paymentArrayLines(doc, keys, lineAmountKeys))
}
