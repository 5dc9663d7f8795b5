package closeout

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/closeout/backend/internal/domain/integration"
	"github.com/shopspring/decimal"
)

// maxResolveDepth is how many levels of nested objects Resolve descends into
const maxResolveDepth = 5

// Alias lists, most specific first. A dotted alias ("Pos.Id") walks nested
// objects from the level being searched.
var (
	workplaceIDKeys   = []string{"WorkplaceId", "WorkplaceID", "IdWorkplace", "LocalId", "Workplace.Id", "Local.Id", "WorkplaceCode"}
	workplaceNameKeys = []string{"WorkplaceName", "Workplace.Name", "LocalName", "Local.Name"}
	posIDKeys         = []string{"PosId", "PosID", "PointOfSaleId", "TillId", "SaleCenterId", "Pos.Id", "PointOfSale.Id", "SaleCenter.Id"}
	posNameKeys       = []string{"PosName", "PointOfSaleName", "TillName", "SaleCenterName", "Pos.Name", "PointOfSale.Name", "SaleCenter.Name"}
	businessDayKeys   = []string{"BusinessDay", "BusinessDate", "AccountingDate", "WorkingDay", "Date"}
	sequenceKeys      = []string{"SequenceNumber", "CloseOutNumber", "CloseoutNumber", "Number", "Sequence", "Numero"}
	openDateKeys      = []string{"OpenDate", "OpeningDate", "OpenedAt", "StartDate"}
	closeDateKeys     = []string{"CloseDate", "ClosingDate", "ClosedAt", "EndDate"}

	amountsKeys        = []string{"Amounts", "Totals", "Importes"}
	grossKeys          = []string{"GrossAmount", "Gross", "TotalAmount", "TotalGross", "Total", "ImporteTotal"}
	netKeys            = []string{"NetAmount", "Net", "TotalNet", "BaseAmount", "NetTotal"}
	vatKeys            = []string{"VatAmount", "Vat", "TaxAmount", "TotalVat", "Tax", "Iva"}
	surchargeKeys      = []string{"SurchargeAmount", "Surcharge", "RecargoEquivalencia", "Recargo"}
	totalsByMethodKeys = []string{"TotalsByMethod", "TotalsByPaymentMethod", "PaymentMethodTotals", "TotalesPorFormaPago"}
	balancesKeys       = []string{"Balances", "Balance", "Saldos"}

	invoicePaymentsKeys      = []string{"InvoicePayments", "InvoicePaymentMethods"}
	ticketPaymentsKeys       = []string{"TicketPayments", "TicketPaymentMethods"}
	deliveryNotePaymentsKeys = []string{"DeliveryNotePayments", "DeliveryNotePaymentMethods"}
	salesOrderPaymentsKeys   = []string{"SalesOrderPayments", "SalesOrderPaymentMethods"}
	genericPaymentsKeys      = []string{"Payments", "PaymentMethods", "FormasPago"}

	methodNameKeys   = []string{"MethodName", "PaymentMethodName", "PaymentMethod", "Method", "Name", "Description", "FormaPago", "PaymentMethod.Name"}
	methodIDKeys     = []string{"PaymentMethodId", "MethodId", "PaymentMethod.Id", "Id"}
	lineAmountKeys   = []string{"Amount", "Total", "Value", "Importe"}
	balanceEndKeys   = []string{"EndAmount", "FinalAmount", "ClosingAmount", "Amount"}
	documentsKeys    = []string{"Documents", "DocumentRanges", "Docs"}
	seriesKeys       = []string{"Serie", "Series", "SeriesCode", "DocumentSeries"}
	firstNumberKeys  = []string{"FirstNumber", "From", "Start", "FirstDocument"}
	lastNumberKeys   = []string{"LastNumber", "To", "End", "LastDocument"}
	countKeys        = []string{"Count", "Quantity", "DocumentCount"}
	documentNumKeys  = []string{"Number", "DocumentNumber", "InvoiceNumber"}
	invoiceDateKeys  = []string{"Date", "InvoiceDate", "DocumentDate", "IssueDate", "CreationDate"}
	rangeAmountKeys  = []string{"Amount", "GrossAmount", "Total"}
)

// Resolve returns the first non-empty value stored under one of the candidate
// keys. Keys are matched case-insensitively in the document's insertion order;
// when no candidate matches at this level, nested objects are searched in
// order up to maxResolveDepth. Arrays are never descended into.
func Resolve(doc *integration.Document, keys []string) any {
	return resolve(doc, keys, isPresent, 0)
}

// ResolveString resolves a scalar and renders it as a trimmed string
func ResolveString(doc *integration.Document, keys []string) string {
	v := resolve(doc, keys, isScalar, 0)
	return scalarString(v)
}

// ResolveAmount resolves a scalar amount. Malformed numbers yield zero; the
// boolean reports whether a scalar was present at all.
func ResolveAmount(doc *integration.Document, keys []string) (decimal.Decimal, bool) {
	v := resolve(doc, keys, isScalar, 0)
	if v == nil {
		return decimal.Zero, false
	}
	return ParseAmount(scalarString(v)), true
}

// ResolveTopAmount is ResolveAmount without descending into nested objects
func ResolveTopAmount(doc *integration.Document, keys []string) (decimal.Decimal, bool) {
	if doc == nil {
		return decimal.Zero, false
	}
	for _, key := range keys {
		if v := lookupPath(doc, key, isScalar); v != nil {
			return ParseAmount(scalarString(v)), true
		}
	}
	return decimal.Zero, false
}

// ResolveInt resolves a positive integer, accepting "12", 12 and "12.0"
func ResolveInt(doc *integration.Document, keys []string) (int64, bool) {
	s := ResolveString(doc, keys)
	return parseInt(s)
}

// ResolveTime resolves a timestamp in one of the vendor layouts
func ResolveTime(doc *integration.Document, keys []string) *time.Time {
	s := ResolveString(doc, keys)
	if s == "" {
		return nil
	}
	return parseTime(s)
}

// ResolveDocument resolves a non-empty nested object
func ResolveDocument(doc *integration.Document, keys []string) *integration.Document {
	v := resolve(doc, keys, func(v any) bool {
		d, ok := v.(*integration.Document)
		return ok && d.Len() > 0
	}, 0)
	d, _ := v.(*integration.Document)
	return d
}

// ResolveArray resolves a non-empty array
func ResolveArray(doc *integration.Document, keys []string) []any {
	v := resolve(doc, keys, func(v any) bool {
		a, ok := v.([]any)
		return ok && len(a) > 0
	}, 0)
	a, _ := v.([]any)
	return a
}

func resolve(doc *integration.Document, keys []string, accept func(any) bool, depth int) any {
	if doc == nil || depth > maxResolveDepth {
		return nil
	}
	for _, key := range keys {
		if v := lookupPath(doc, key, accept); v != nil {
			return v
		}
	}
	var found any
	doc.Each(func(_ string, value any) bool {
		nested, ok := value.(*integration.Document)
		if !ok {
			return true
		}
		found = resolve(nested, keys, accept, depth+1)
		return found == nil
	})
	return found
}

// lookupPath resolves one alias, following dots through nested objects
func lookupPath(doc *integration.Document, path string, accept func(any) bool) any {
	head, rest, dotted := strings.Cut(path, ".")
	if !dotted {
		return lookupFold(doc, head, accept)
	}
	nested, _ := lookupFold(doc, head, func(v any) bool {
		_, ok := v.(*integration.Document)
		return ok
	}).(*integration.Document)
	if nested == nil {
		return nil
	}
	return lookupPath(nested, rest, accept)
}

func lookupFold(doc *integration.Document, key string, accept func(any) bool) any {
	var found any
	doc.Each(func(k string, value any) bool {
		if strings.EqualFold(k, key) && accept(value) {
			found = value
			return false
		}
		return true
	})
	return found
}

func isPresent(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case []any:
		return len(t) > 0
	case *integration.Document:
		return t.Len() > 0
	default:
		return true
	}
}

func isScalar(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) != ""
	case json.Number, bool:
		return true
	default:
		return false
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func parseInt(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	d, ok := ParseAmountOK(s)
	if !ok || !d.Equal(d.Truncate(0)) {
		return 0, false
	}
	return d.IntPart(), true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
}

func parseTime(s string) *time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// normalizeBusinessDay truncates vendor dates such as 2025-06-01T00:00:00 to
// YYYY-MM-DD, returning "" when the value does not start with a date.
func normalizeBusinessDay(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= len(time.DateOnly) {
		prefix := s[:len(time.DateOnly)]
		if _, err := time.Parse(time.DateOnly, prefix); err == nil {
			return prefix
		}
	}
	if t := parseTime(s); t != nil {
		return t.Format(time.DateOnly)
	}
	return ""
}
