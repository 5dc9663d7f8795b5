package dynamo

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/closeout/backend/internal/domain/closeout"
)

// Key attribute names of the ledger table
const (
	attrWorkplaceID = "workplaceId"
	attrSortKey     = "sortKey"
	attrBusinessDay = "businessDay"
)

// number stores a decimal as a DynamoDB number without float rounding
type number struct {
	decimal.Decimal
}

// MarshalDynamoDBAttributeValue implements attributevalue.Marshaler
func (n number) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: n.String()}, nil
}

// UnmarshalDynamoDBAttributeValue implements attributevalue.Unmarshaler
func (n *number) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	var raw string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = v.Value
	case *types.AttributeValueMemberNULL:
		n.Decimal = decimal.Zero
		return nil
	default:
		return fmt.Errorf("dynamo: cannot decode %T as a number", av)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("dynamo: invalid number %q: %w", raw, err)
	}
	n.Decimal = d
	return nil
}

func numberPtr(d *decimal.Decimal) *number {
	if d == nil {
		return nil
	}
	return &number{Decimal: *d}
}

func (n *number) decimalPtr() *decimal.Decimal {
	if n == nil {
		return nil
	}
	d := n.Decimal
	return &d
}

type amountsItem struct {
	Gross     *number `dynamodbav:"gross,omitempty"`
	Net       *number `dynamodbav:"net,omitempty"`
	Vat       *number `dynamodbav:"vat,omitempty"`
	Surcharge *number `dynamodbav:"surcharge,omitempty"`
}

type paymentItem struct {
	MethodName string `dynamodbav:"methodName"`
	Amount     number `dynamodbav:"amount"`
}

type documentItem struct {
	Series      string `dynamodbav:"series"`
	FirstNumber int64  `dynamodbav:"firstNumber"`
	LastNumber  int64  `dynamodbav:"lastNumber"`
	Count       int64  `dynamodbav:"count"`
	Amount      number `dynamodbav:"amount"`
}

// closeoutItem is the stored shape of a ledger row
type closeoutItem struct {
	WorkplaceID          string         `dynamodbav:"workplaceId"`
	SortKey              string         `dynamodbav:"sortKey"`
	BusinessDay          string         `dynamodbav:"businessDay"`
	WorkplaceName        string         `dynamodbav:"workplaceName,omitempty"`
	PosID                string         `dynamodbav:"posId,omitempty"`
	PosName              string         `dynamodbav:"posName,omitempty"`
	SequenceNumber       int64          `dynamodbav:"sequenceNumber"`
	OpenDate             *time.Time     `dynamodbav:"openDate,omitempty"`
	CloseDate            *time.Time     `dynamodbav:"closeDate,omitempty"`
	Amounts              amountsItem    `dynamodbav:"amounts"`
	InvoicePayments      []paymentItem  `dynamodbav:"invoicePayments"`
	Documents            []documentItem `dynamodbav:"documents"`
	TicketPayments       []paymentItem  `dynamodbav:"ticketPayments"`
	DeliveryNotePayments []paymentItem  `dynamodbav:"deliveryNotePayments"`
	SalesOrderPayments   []paymentItem  `dynamodbav:"salesOrderPayments"`
	Source               string         `dynamodbav:"source"`
	CreatedAt            time.Time      `dynamodbav:"createdAt"`
	UpdatedAt            time.Time      `dynamodbav:"updatedAt"`
}

func paymentItems(lines []closeout.PaymentLine) []paymentItem {
	out := make([]paymentItem, len(lines))
	for i, l := range lines {
		out[i] = paymentItem{MethodName: l.MethodName, Amount: number{Decimal: l.Amount}}
	}
	return out
}

func paymentLines(items []paymentItem) []closeout.PaymentLine {
	if len(items) == 0 {
		return nil
	}
	out := make([]closeout.PaymentLine, len(items))
	for i, it := range items {
		out[i] = closeout.PaymentLine{MethodName: it.MethodName, Amount: it.Amount.Decimal}
	}
	return out
}

// newCloseoutItem converts a domain record to its stored shape, keyed by
// the record's composite key
func newCloseoutItem(r *closeout.SalesCloseout) closeoutItem {
	key := r.Key()
	item := closeoutItem{
		WorkplaceID:    key.WorkplaceID,
		SortKey:        key.SortKey,
		BusinessDay:    r.BusinessDay,
		WorkplaceName:  r.WorkplaceName,
		PosID:          r.PosID,
		PosName:        r.PosName,
		SequenceNumber: r.SequenceNumber,
		OpenDate:       utcPtr(r.OpenDate),
		CloseDate:      utcPtr(r.CloseDate),
		Amounts: amountsItem{
			Gross:     numberPtr(r.Amounts.Gross),
			Net:       numberPtr(r.Amounts.Net),
			Vat:       numberPtr(r.Amounts.Vat),
			Surcharge: numberPtr(r.Amounts.Surcharge),
		},
		InvoicePayments:      paymentItems(r.InvoicePayments),
		Documents:            make([]documentItem, len(r.Documents)),
		TicketPayments:       paymentItems(r.TicketPayments),
		DeliveryNotePayments: paymentItems(r.DeliveryNotePayments),
		SalesOrderPayments:   paymentItems(r.SalesOrderPayments),
		Source:               string(r.Source),
		CreatedAt:            r.CreatedAt.UTC(),
		UpdatedAt:            r.UpdatedAt.UTC(),
	}
	for i, d := range r.Documents {
		item.Documents[i] = documentItem{
			Series:      d.Series,
			FirstNumber: d.FirstNumber,
			LastNumber:  d.LastNumber,
			Count:       d.Count,
			Amount:      number{Decimal: d.Amount},
		}
	}
	return item
}

// ToDomain converts the stored shape back to a domain record
func (it *closeoutItem) ToDomain() *closeout.SalesCloseout {
	r := &closeout.SalesCloseout{
		WorkplaceID:    it.WorkplaceID,
		WorkplaceName:  it.WorkplaceName,
		BusinessDay:    it.BusinessDay,
		PosID:          it.PosID,
		PosName:        it.PosName,
		SequenceNumber: it.SequenceNumber,
		OpenDate:       it.OpenDate,
		CloseDate:      it.CloseDate,
		Amounts: closeout.Amounts{
			Gross:     it.Amounts.Gross.decimalPtr(),
			Net:       it.Amounts.Net.decimalPtr(),
			Vat:       it.Amounts.Vat.decimalPtr(),
			Surcharge: it.Amounts.Surcharge.decimalPtr(),
		},
		InvoicePayments:      paymentLines(it.InvoicePayments),
		TicketPayments:       paymentLines(it.TicketPayments),
		DeliveryNotePayments: paymentLines(it.DeliveryNotePayments),
		SalesOrderPayments:   paymentLines(it.SalesOrderPayments),
		Source:               closeout.Source(it.Source),
		CreatedAt:            it.CreatedAt,
		UpdatedAt:            it.UpdatedAt,
		StoredSortKey:        it.SortKey,
	}
	for _, d := range it.Documents {
		r.Documents = append(r.Documents, closeout.DocumentRange{
			Series:      d.Series,
			FirstNumber: d.FirstNumber,
			LastNumber:  d.LastNumber,
			Count:       d.Count,
			Amount:      d.Amount.Decimal,
		})
	}
	return r
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func marshalRecord(r *closeout.SalesCloseout) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.MarshalMap(newCloseoutItem(r))
	if err != nil {
		return nil, fmt.Errorf("dynamo: failed to marshal %s: %w", r.Key(), err)
	}
	return av, nil
}

func unmarshalRecord(av map[string]types.AttributeValue) (*closeout.SalesCloseout, error) {
	var item closeoutItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("dynamo: failed to unmarshal ledger row: %w", err)
	}
	return item.ToDomain(), nil
}

func keyAttributes(key closeout.RecordKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrWorkplaceID: &types.AttributeValueMemberS{Value: key.WorkplaceID},
		attrSortKey:     &types.AttributeValueMemberS{Value: key.SortKey},
	}
}
