package closeout

import (
	"testing"
	"time"

	"github.com/closeout/backend/internal/domain/closeout"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordMapper_MapToRecord(t *testing.T) {
	m := NewRecordMapper(fixedClock())

	t.Run("maps a till closeout", func(t *testing.T) {
		doc := mustDoc(t, `{
			"WorkplaceId": 7, "WorkplaceName": "Centro",
			"PosId": "3", "PosName": "Barra",
			"BusinessDay": "2025-06-01T00:00:00",
			"Number": 4,
			"OpenDate": "2025-06-01T08:00:00", "CloseDate": "2025-06-01T23:00:00",
			"Amounts": {"GrossAmount": "50,00", "NetAmount": 41.32},
			"InvoicePayments": [{"MethodName":"Cash","Amount":23},{"MethodName":"Card","Amount":20}],
			"TicketPayments": [{"MethodName":"Cash","Amount":7}]
		}`)

		r := m.MapToRecord(doc, "2025-05-31", nil)
		assert.Equal(t, "7 / 2025-06-01#3#4", r.Key().String())
		assert.Equal(t, "Centro", r.WorkplaceName)
		assert.Equal(t, "Barra", r.PosName)
		assert.Equal(t, closeout.SourceAgora, r.Source)
		assert.Equal(t, fixedClock()(), r.CreatedAt)
		assert.Equal(t, fixedClock()(), r.UpdatedAt)

		require.NotNil(t, r.Amounts.Gross)
		assert.Equal(t, "50", r.Amounts.Gross.String())
		require.NotNil(t, r.Amounts.Net)
		assert.Equal(t, "41.32", r.Amounts.Net.String())
		assert.Nil(t, r.Amounts.Vat)

		require.NotNil(t, r.OpenDate)
		assert.Equal(t, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), *r.OpenDate)

		assert.Equal(t, canonicalFive, methodNames(r.InvoicePayments))
		assert.Equal(t, "30", paymentMap(r.InvoicePayments)[closeout.MethodCash], "ticket lines are included")
		require.Len(t, r.TicketPayments, 1)
		assert.Equal(t, "7", r.TicketPayments[0].Amount.String())
	})

	t.Run("defaults workplace and falls back to the synced day", func(t *testing.T) {
		r := m.MapToRecord(mustDoc(t, `{"GrossAmount":5}`), "2025-06-01", nil)
		assert.Equal(t, closeout.DefaultWorkplaceID, r.WorkplaceID)
		assert.Equal(t, "2025-06-01", r.SortKey())
	})

	t.Run("unusable vendor day falls back", func(t *testing.T) {
		r := m.MapToRecord(mustDoc(t, `{"WorkplaceId":"7","BusinessDay":"n/a"}`), "2025-06-01", nil)
		assert.Equal(t, "2025-06-01", r.BusinessDay)
	})

	t.Run("sequence falls back to the first document number", func(t *testing.T) {
		doc := mustDoc(t, `{"WorkplaceId":"7","Documents":[{"Serie":"A","From":100,"To":109,"Total":"12,5"}]}`)

		r := m.MapToRecord(doc, "2025-06-01", nil)
		assert.Equal(t, int64(100), r.SequenceNumber)
		assert.Equal(t, "2025-06-01#100", r.SortKey())
		require.Len(t, r.Documents, 1)
		assert.Equal(t, "A", r.Documents[0].Series)
		assert.Equal(t, int64(10), r.Documents[0].Count)
		assert.Equal(t, "12.5", r.Documents[0].Amount.String())
	})
}

func TestRecordMapper_PaymentChoice(t *testing.T) {
	m := NewRecordMapper(fixedClock())
	attributed := []closeout.PaymentLine{
		{MethodName: closeout.MethodCard, Amount: decimal.NewFromInt(100)},
	}

	tests := []struct {
		name       string
		raw        string
		attributed []closeout.PaymentLine
		wantCash   string
		wantCard   string
	}{
		{
			name:       "direct lines matching gross win",
			raw:        `{"WorkplaceId":"7","GrossAmount":100,"Payments":[{"MethodName":"Cash","Amount":60},{"MethodName":"Card","Amount":40}]}`,
			attributed: attributed,
			wantCash:   "60", wantCard: "40",
		},
		{
			name:       "within two percent is reasonable",
			raw:        `{"WorkplaceId":"7","GrossAmount":100,"Payments":[{"MethodName":"Cash","Amount":98}]}`,
			attributed: attributed,
			wantCash:   "98", wantCard: "0",
		},
		{
			name:       "beyond tolerance uses attribution",
			raw:        `{"WorkplaceId":"7","GrossAmount":100,"Payments":[{"MethodName":"Cash","Amount":"97,99"}]}`,
			attributed: attributed,
			wantCash:   "0", wantCard: "100",
		},
		{
			name:     "beyond tolerance without attribution keeps direct lines",
			raw:      `{"WorkplaceId":"7","GrossAmount":100,"Payments":[{"MethodName":"Cash","Amount":50}]}`,
			wantCash: "50", wantCard: "0",
		},
		{
			name:       "one cent floor applies to small totals",
			raw:        `{"WorkplaceId":"7","GrossAmount":"0,10","Payments":[{"MethodName":"Cash","Amount":"0,11"}]}`,
			attributed: attributed,
			wantCash:   "0.11", wantCard: "0",
		},
		{
			name:       "cash only equal to gross is reasonable",
			raw:        `{"WorkplaceId":"7","GrossAmount":25,"Balances":[{"Name":"Cash","EndAmount":25},{"Name":"Card","EndAmount":0}]}`,
			attributed: attributed,
			wantCash:   "25", wantCard: "0",
		},
		{
			name:       "all-zero lines use attribution",
			raw:        `{"WorkplaceId":"7","GrossAmount":100,"Payments":[{"MethodName":"Cash","Amount":0}]}`,
			attributed: attributed,
			wantCash:   "0", wantCard: "100",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := m.MapToRecord(mustDoc(t, tt.raw), "2025-06-01", tt.attributed)
			got := paymentMap(r.InvoicePayments)
			assert.Equal(t, tt.wantCash, got[closeout.MethodCash])
			assert.Equal(t, tt.wantCard, got[closeout.MethodCard])
			assert.Equal(t, canonicalFive, methodNames(r.InvoicePayments)[:5])
		})
	}
}

func TestValidateRawRecord(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"accepts gross in amounts", `{"WorkplaceId":"7","BusinessDay":"2025-06-01","Amounts":{"GrossAmount":"10"}}`, ""},
		{"accepts top-level gross", `{"WorkplaceId":"7","BusinessDay":"2025-06-01","Total":0}`, ""},
		{"accepts balances", `{"WorkplaceId":"7","BusinessDay":"2025-06-01","Balances":[{"Name":"Cash"}]}`, ""},
		{"missing workplace", `{"BusinessDay":"2025-06-01","Total":1}`, ReasonMissingWorkplace},
		{"missing day", `{"WorkplaceId":"7","Total":1}`, ReasonInvalidBusinessDay},
		{"malformed day", `{"WorkplaceId":"7","BusinessDay":"junio","Total":1}`, ReasonInvalidBusinessDay},
		{"no amount", `{"WorkplaceId":"7","BusinessDay":"2025-06-01","Total":"abc"}`, ReasonNoAmountSignal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateRawRecord(mustDoc(t, tt.raw)))
		})
	}
}
