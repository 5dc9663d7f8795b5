package closeout

import (
	"github.com/closeout/backend/internal/domain/closeout"
	"github.com/closeout/backend/internal/domain/integration"
	"github.com/shopspring/decimal"
)

// SourceNone is reported when no feed produced records for the day
const SourceNone = "none"

// attributionPlaces is the rounding precision of attributed amounts
const attributionPlaces = 2

// SourcedRecord is a raw record chosen for mapping, carrying the payment
// breakdown attributed to it when its own feed lacks one.
type SourcedRecord struct {
	Doc        *integration.Document
	Attributed []closeout.PaymentLine
}

// SourceSelection is the outcome of choosing the authoritative feed for a day
type SourceSelection struct {
	Records []SourcedRecord
	Source  string
}

// ChooseSource picks the authoritative feed: the invoice aggregation, then
// system closeouts, then POS closeouts. A system closeout only counts as a
// record when it reports its own gross figure; breakdown-only system
// closeouts are used to attribute a payment split to the till-level POS
// records of their workplace.
func ChooseSource(invoiceAgg, systemCloseOuts, posCloseOuts []*integration.Document) SourceSelection {
	systemRecords := withOwnGross(systemCloseOuts)
	switch {
	case len(invoiceAgg) > 0:
		return SourceSelection{Records: plainRecords(invoiceAgg), Source: integration.FeedTypeInvoices.String()}
	case len(systemRecords) > 0:
		return SourceSelection{Records: plainRecords(systemRecords), Source: integration.FeedTypeSystemCloseOuts.String()}
	case len(posCloseOuts) > 0:
		return SourceSelection{
			Records: attributePayments(posCloseOuts, workplaceBreakdowns(systemCloseOuts)),
			Source:  integration.FeedTypePosCloseOuts.String(),
		}
	default:
		return SourceSelection{Source: SourceNone}
	}
}

func withOwnGross(docs []*integration.Document) []*integration.Document {
	out := make([]*integration.Document, 0, len(docs))
	for _, d := range docs {
		if resolveGross(d) != nil {
			out = append(out, d)
		}
	}
	return out
}

func plainRecords(docs []*integration.Document) []SourcedRecord {
	out := make([]SourcedRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, SourcedRecord{Doc: d})
	}
	return out
}

// workplaceBreakdowns sums the payment breakdown of system closeouts per
// workplace, keeping only workplaces whose breakdown is genuine.
func workplaceBreakdowns(systemCloseOuts []*integration.Document) map[string][]closeout.PaymentLine {
	sums := make(map[string][]closeout.PaymentLine)
	for _, doc := range systemCloseOuts {
		normalized := NormalizePayments(doc)
		if !normalized.HasLines {
			continue
		}
		wp := workplaceOf(doc)
		sums[wp] = closeout.MergePayments(append(sums[wp], normalized.Payments...))
	}
	for wp, lines := range sums {
		if !isGenuineBreakdown(lines) {
			delete(sums, wp)
		}
	}
	return sums
}

// isGenuineBreakdown reports whether lines split money across something other than cash
func isGenuineBreakdown(lines []closeout.PaymentLine) bool {
	for _, line := range lines {
		if line.MethodName != closeout.MethodCash && !line.Amount.IsZero() {
			return true
		}
	}
	return false
}

// attributePayments splits each workplace breakdown across that workplace's
// till records in proportion to their gross, or evenly when the total is zero.
func attributePayments(posCloseOuts []*integration.Document, breakdowns map[string][]closeout.PaymentLine) []SourcedRecord {
	records := plainRecords(posCloseOuts)
	if len(breakdowns) == 0 {
		return records
	}

	totals := make(map[string]decimal.Decimal)
	counts := make(map[string]int64)
	grosses := make([]decimal.Decimal, len(records))
	for i, r := range records {
		wp := workplaceOf(r.Doc)
		if _, ok := breakdowns[wp]; !ok {
			continue
		}
		gross := decimal.Zero
		if g := NormalizePayments(r.Doc).Gross; g != nil {
			gross = *g
		}
		grosses[i] = gross
		totals[wp] = totals[wp].Add(gross)
		counts[wp]++
	}

	for i := range records {
		wp := workplaceOf(records[i].Doc)
		breakdown, ok := breakdowns[wp]
		if !ok {
			continue
		}
		total := totals[wp]
		attributed := make([]closeout.PaymentLine, 0, len(breakdown))
		for _, line := range breakdown {
			var amount decimal.Decimal
			if total.IsZero() {
				amount = line.Amount.Div(decimal.NewFromInt(counts[wp]))
			} else {
				amount = line.Amount.Mul(grosses[i]).Div(total)
			}
			attributed = append(attributed, closeout.PaymentLine{
				MethodName: line.MethodName,
				Amount:     amount.Round(attributionPlaces),
			})
		}
		records[i].Attributed = closeout.OrderPayments(attributed)
	}
	return records
}

func workplaceOf(doc *integration.Document) string {
	if wp := ResolveString(doc, workplaceIDKeys); wp != "" {
		return wp
	}
	return closeout.DefaultWorkplaceID
}
