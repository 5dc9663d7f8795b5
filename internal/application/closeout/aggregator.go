package closeout

import (
	"time"

	"github.com/closeout/backend/internal/domain/closeout"
	"github.com/closeout/backend/internal/domain/integration"
	"github.com/shopspring/decimal"
)

// invoiceGroup accumulates the invoices of one (workplace, till) pair
type invoiceGroup struct {
	workplaceID   string
	workplaceName string
	posID         string
	posName       string

	gross     decimal.Decimal
	net       *decimal.Decimal
	vat       *decimal.Decimal
	surcharge *decimal.Decimal
	payments  []closeout.PaymentLine

	openDate  *time.Time
	closeDate *time.Time

	seriesOrder []string
	series      map[string]*closeout.DocumentRange
}

// AggregateInvoices folds per-invoice documents into one closeout-shaped
// document per (workplace, till), in first-seen order. Groups whose gross and
// payment amounts are all zero are dropped.
func AggregateInvoices(invoices []*integration.Document, businessDay string) []*integration.Document {
	order := make([]string, 0)
	groups := make(map[string]*invoiceGroup)

	for _, inv := range invoices {
		if inv == nil {
			continue
		}
		workplaceID := ResolveString(inv, workplaceIDKeys)
		if workplaceID == "" {
			workplaceID = closeout.DefaultWorkplaceID
		}
		posID := ResolveString(inv, posIDKeys)

		key := workplaceID + "\x00" + posID
		g, ok := groups[key]
		if !ok {
			g = &invoiceGroup{
				workplaceID: workplaceID,
				posID:       posID,
				series:      make(map[string]*closeout.DocumentRange),
			}
			groups[key] = g
			order = append(order, key)
		}
		g.add(inv)
	}

	out := make([]*integration.Document, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if g.isZero() {
			continue
		}
		out = append(out, g.document(businessDay))
	}
	return out
}

func (g *invoiceGroup) add(inv *integration.Document) {
	if g.workplaceName == "" {
		g.workplaceName = ResolveString(inv, workplaceNameKeys)
	}
	if g.posName == "" {
		g.posName = ResolveString(inv, posNameKeys)
	}

	normalized := NormalizePayments(inv)
	amount := decimal.Zero
	if normalized.Gross != nil {
		amount = *normalized.Gross
	}
	g.gross = g.gross.Add(amount)
	g.payments = closeout.MergePayments(append(g.payments, normalized.Payments...))

	g.net = addOptional(g.net, resolveSubAmount(inv, netKeys))
	g.vat = addOptional(g.vat, resolveSubAmount(inv, vatKeys))
	g.surcharge = addOptional(g.surcharge, resolveSubAmount(inv, surchargeKeys))

	if at := ResolveTime(inv, invoiceDateKeys); at != nil {
		if g.openDate == nil || at.Before(*g.openDate) {
			g.openDate = at
		}
		if g.closeDate == nil || at.After(*g.closeDate) {
			v := *at
			g.closeDate = &v
		}
	}

	series := ResolveString(inv, seriesKeys)
	number, hasNumber := ResolveInt(inv, documentNumKeys)
	r, ok := g.series[series]
	if !ok {
		r = &closeout.DocumentRange{Series: series}
		g.series[series] = r
		g.seriesOrder = append(g.seriesOrder, series)
	}
	r.Count++
	r.Amount = r.Amount.Add(amount)
	if hasNumber {
		if r.FirstNumber == 0 || number < r.FirstNumber {
			r.FirstNumber = number
		}
		if number > r.LastNumber {
			r.LastNumber = number
		}
	}
}

func (g *invoiceGroup) isZero() bool {
	return g.gross.IsZero() && !closeout.HasNonZeroPayment(g.payments)
}

func (g *invoiceGroup) document(businessDay string) *integration.Document {
	doc := integration.NewDocument().
		Set("WorkplaceId", g.workplaceID).
		Set("WorkplaceName", g.workplaceName)
	if g.posID != "" {
		doc.Set("PosId", g.posID).Set("PosName", g.posName)
	}
	doc.Set("BusinessDay", businessDay).Set("Number", 1)
	if g.openDate != nil {
		doc.Set("OpenDate", *g.openDate)
	}
	if g.closeDate != nil {
		doc.Set("CloseDate", *g.closeDate)
	}

	amounts := integration.NewDocument().Set("GrossAmount", g.gross)
	if g.net != nil {
		amounts.Set("NetAmount", *g.net)
	}
	if g.vat != nil {
		amounts.Set("VatAmount", *g.vat)
	}
	if g.surcharge != nil {
		amounts.Set("SurchargeAmount", *g.surcharge)
	}
	doc.Set("Amounts", amounts)

	payments := make([]any, 0, len(g.payments))
	for _, line := range closeout.OrderPayments(g.payments) {
		payments = append(payments, integration.NewDocument().
			Set("MethodName", line.MethodName).
			Set("Amount", line.Amount))
	}
	doc.Set("InvoicePayments", payments)

	documents := make([]any, 0, len(g.seriesOrder))
	for _, s := range g.seriesOrder {
		r := g.series[s]
		documents = append(documents, integration.NewDocument().
			Set("Serie", r.Series).
			Set("FirstNumber", r.FirstNumber).
			Set("LastNumber", r.LastNumber).
			Set("Count", r.Count).
			Set("Amount", r.Amount))
	}
	doc.Set("Documents", documents)
	return doc
}

func addOptional(acc, v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return acc
	}
	if acc == nil {
		sum := *v
		return &sum
	}
	sum := acc.Add(*v)
	return &sum
}
