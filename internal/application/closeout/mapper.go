package closeout

import (
	"time"

	"github.com/closeout/backend/internal/domain/closeout"
	"github.com/closeout/backend/internal/domain/integration"
	"github.com/shopspring/decimal"
)

var (
	// toleranceFloor is the minimum absolute difference accepted between lines and gross
	toleranceFloor = decimal.RequireFromString("0.01")
	// toleranceRate is the relative difference accepted between lines and gross
	toleranceRate = decimal.RequireFromString("0.02")
)

// RecordMapper converts reconciled raw records into ledger entities
type RecordMapper struct {
	now func() time.Time
}

// NewRecordMapper creates a mapper stamping records with now(); nil uses time.Now
func NewRecordMapper(now func() time.Time) *RecordMapper {
	if now == nil {
		now = time.Now
	}
	return &RecordMapper{now: now}
}

// MapToRecord builds a SalesCloseout from a raw document. businessDay is used
// when the document does not carry a usable day of its own; attributed is
// the proportional breakdown to fall back on when the document's own
// payment lines are not reasonable.
func (m *RecordMapper) MapToRecord(doc *integration.Document, businessDay string, attributed []closeout.PaymentLine) *closeout.SalesCloseout {
	normalized := NormalizePayments(doc)

	record := &closeout.SalesCloseout{
		WorkplaceID:   workplaceOf(doc),
		WorkplaceName: ResolveString(doc, workplaceNameKeys),
		BusinessDay:   businessDay,
		PosID:         ResolveString(doc, posIDKeys),
		PosName:       ResolveString(doc, posNameKeys),
		OpenDate:      ResolveTime(doc, openDateKeys),
		CloseDate:     ResolveTime(doc, closeDateKeys),
		Amounts: closeout.Amounts{
			Gross:     normalized.Gross,
			Net:       resolveSubAmount(doc, netKeys),
			Vat:       resolveSubAmount(doc, vatKeys),
			Surcharge: resolveSubAmount(doc, surchargeKeys),
		},
		Documents:            documentRanges(doc),
		TicketPayments:       documentPayments(doc, ticketPaymentsKeys),
		DeliveryNotePayments: documentPayments(doc, deliveryNotePaymentsKeys),
		SalesOrderPayments:   documentPayments(doc, salesOrderPaymentsKeys),
		Source:               closeout.SourceAgora,
	}
	if day := normalizeBusinessDay(ResolveString(doc, businessDayKeys)); day != "" {
		record.BusinessDay = day
	}

	if seq, ok := ResolveInt(doc, sequenceKeys); ok && seq > 0 {
		record.SequenceNumber = seq
	} else if len(record.Documents) > 0 && record.Documents[0].FirstNumber > 0 {
		record.SequenceNumber = record.Documents[0].FirstNumber
	}

	switch {
	case isReasonable(normalized):
		record.InvoicePayments = normalized.Payments
	case len(attributed) > 0:
		record.InvoicePayments = closeout.OrderPayments(attributed)
	default:
		record.InvoicePayments = normalized.Payments
	}

	now := m.now()
	record.CreatedAt = now
	record.UpdatedAt = now
	return record
}

// isReasonable reports whether the direct breakdown can be trusted: at least
// one non-zero line, a positive gross, and lines summing to the gross within
// max(0.01, 2% of gross).
func isReasonable(n NormalizedPayments) bool {
	if !n.HasLines || !closeout.HasNonZeroPayment(n.Payments) {
		return false
	}
	if n.Gross == nil || !n.Gross.IsPositive() {
		return false
	}
	return withinTolerance(closeout.SumPayments(n.Payments), *n.Gross)
}

func withinTolerance(sum, gross decimal.Decimal) bool {
	tolerance := decimal.Max(toleranceFloor, gross.Mul(toleranceRate))
	return sum.Sub(gross).Abs().LessThanOrEqual(tolerance)
}

// documentRanges reads the fiscal document summary array
func documentRanges(doc *integration.Document) []closeout.DocumentRange {
	items := ResolveArray(doc, documentsKeys)
	out := make([]closeout.DocumentRange, 0, len(items))
	for _, item := range items {
		entry, ok := item.(*integration.Document)
		if !ok {
			continue
		}
		r := closeout.DocumentRange{Series: ResolveString(entry, seriesKeys)}
		r.FirstNumber, _ = ResolveInt(entry, firstNumberKeys)
		r.LastNumber, _ = ResolveInt(entry, lastNumberKeys)
		if count, ok := ResolveInt(entry, countKeys); ok {
			r.Count = count
		} else if r.FirstNumber > 0 && r.LastNumber >= r.FirstNumber {
			r.Count = r.LastNumber - r.FirstNumber + 1
		}
		r.Amount, _ = ResolveAmount(entry, rangeAmountKeys)
		out = append(out, r)
	}
	return out
}
