package closeout

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/closeout/backend/internal/domain/closeout"
	"github.com/closeout/backend/internal/domain/integration"
	"github.com/closeout/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const day1 = "2025-06-01"

func newTestSyncService(t *testing.T, vendor integration.VendorFeedClient, ledger closeout.LedgerRepository, opts ...SyncServiceOption) *SyncService {
	t.Helper()
	base := []SyncServiceOption{
		WithLogger(zaptest.NewLogger(t)),
		WithClock(fixedClock()),
		WithRunIDGenerator(func() string { return "run-1" }),
	}
	return NewSyncService(vendor, ledger, append(base, opts...)...)
}

// stubDay answers the three feeds of a day
func stubDay(v *MockVendorClient, day string, invoices, system, pos []*integration.Document) {
	v.On("FetchFeed", mock.Anything, feedFor(integration.FeedTypeInvoices, day)).Return(invoices, nil)
	v.On("FetchFeed", mock.Anything, feedFor(integration.FeedTypeSystemCloseOuts, day)).Return(system, nil)
	v.On("FetchFeed", mock.Anything, feedFor(integration.FeedTypePosCloseOuts, day)).Return(pos, nil)
}

func feedForWorkplace(feed integration.FeedType, day, workplaceID string) any {
	return mock.MatchedBy(func(req *integration.FeedRequest) bool {
		return req.Feed == feed && req.BusinessDay == day &&
			len(req.WorkplaceIDs) == 1 && req.WorkplaceIDs[0] == workplaceID
	})
}

func barInvoices(t *testing.T) []*integration.Document {
	return mustDocs(t,
		`{"WorkplaceId":"7","WorkplaceName":"Centro","PosId":"3","PosName":"Barra","Serie":"T","Number":10,
		  "Date":"2025-06-01T10:00:00","TotalAmount":30,"Payments":[{"MethodName":"Efectivo","Amount":30}]}`,
		`{"WorkplaceId":"7","PosId":"3","Serie":"T","Number":12,
		  "Date":"2025-06-01T12:30:00","TotalAmount":"20,00","Payments":[{"MethodName":"Tarjeta","Amount":"20,00"}]}`,
	)
}

func TestSyncService_SyncDay(t *testing.T) {
	t.Run("maps invoices into one ledger row per till", func(t *testing.T) {
		vendor := new(MockVendorClient)
		stubDay(vendor, day1, barInvoices(t), nil, nil)
		ledger := newMemLedger()
		archive := &fakeArchive{}
		metrics := &countingMetrics{}
		svc := newTestSyncService(t, vendor, ledger, WithFeedArchive(archive), WithMetrics(metrics))

		result, err := svc.SyncDay(context.Background(), SyncDayRequest{BusinessDay: day1})
		require.NoError(t, err)

		assert.Equal(t, "run-1", result.RunID)
		assert.Equal(t, integration.FeedTypeInvoices.String(), result.Source)
		assert.Equal(t, 2, result.Fetched)
		assert.Equal(t, 1, result.Upserted)
		assert.Equal(t, []string{"7"}, result.Workplaces)

		rows := ledger.all()
		require.Len(t, rows, 1)
		row := rows[0]
		assert.Equal(t, "7 / 2025-06-01#3#1", row.Key().String())
		assert.Equal(t, "Barra", row.PosName)
		assert.Equal(t, "50", row.Amounts.Gross.String())
		assert.Equal(t, canonicalFive, methodNames(row.InvoicePayments))
		assert.Equal(t, []string{"30", "20", "0", "0", "0"}, []string{
			row.InvoicePayments[0].Amount.String(),
			row.InvoicePayments[1].Amount.String(),
			row.InvoicePayments[2].Amount.String(),
			row.InvoicePayments[3].Amount.String(),
			row.InvoicePayments[4].Amount.String(),
		})
		require.Len(t, row.Documents, 1)
		assert.Equal(t, int64(10), row.Documents[0].FirstNumber)
		assert.Equal(t, int64(12), row.Documents[0].LastNumber)

		assert.Equal(t, []string{"run-1/2025-06-01/Invoices"}, archive.feeds)
		assert.Equal(t, 2, metrics.fetched)
		assert.Equal(t, 1, metrics.upserted)
		vendor.AssertNumberOfCalls(t, "FetchFeed", 3)
	})

	t.Run("rerun is idempotent and keeps creation time", func(t *testing.T) {
		vendor := new(MockVendorClient)
		stubDay(vendor, day1, barInvoices(t), nil, nil)
		ledger := newMemLedger()

		first := time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)
		now := first
		svc := newTestSyncService(t, vendor, ledger, WithClock(func() time.Time { return now }))

		_, err := svc.SyncDay(context.Background(), SyncDayRequest{BusinessDay: day1})
		require.NoError(t, err)
		before := ledger.all()

		now = first.Add(24 * time.Hour)
		result, err := svc.SyncDay(context.Background(), SyncDayRequest{BusinessDay: day1})
		require.NoError(t, err)
		assert.Zero(t, result.Deleted)

		after := ledger.all()
		require.Len(t, after, len(before))
		assert.Equal(t, before[0].Key(), after[0].Key())
		assert.Equal(t, first, after[0].CreatedAt)
		assert.Equal(t, now, after[0].UpdatedAt)
		assert.Equal(t, before[0].InvoicePayments, after[0].InvoicePayments)
	})

	t.Run("system closeouts win over pos closeouts", func(t *testing.T) {
		vendor := new(MockVendorClient)
		stubDay(vendor, day1, nil,
			mustDocs(t, `{"WorkplaceId":"7","BusinessDay":"2025-06-01","Number":2,"GrossAmount":80,"TotalsByMethod":{"Cash":50,"Card":30}}`),
			mustDocs(t, `{"WorkplaceId":"7","PosId":"1","BusinessDay":"2025-06-01","GrossAmount":80}`),
		)
		ledger := newMemLedger()
		svc := newTestSyncService(t, vendor, ledger)

		result, err := svc.SyncDay(context.Background(), SyncDayRequest{BusinessDay: day1})
		require.NoError(t, err)
		assert.Equal(t, integration.FeedTypeSystemCloseOuts.String(), result.Source)
		require.NotNil(t, ledger.get("7", "2025-06-01#2"))
		assert.Len(t, ledger.all(), 1)
	})

	t.Run("stale rows of the day are deleted", func(t *testing.T) {
		gross := decimal.NewFromInt(10)
		ledger := newMemLedger(
			&closeout.SalesCloseout{WorkplaceID: "7", BusinessDay: day1, PosID: "9", SequenceNumber: 1, Source: closeout.SourceAgora},
			&closeout.SalesCloseout{WorkplaceID: "7", BusinessDay: "2025-05-31", PosID: "3", SequenceNumber: 1, Source: closeout.SourceAgora},
			&closeout.SalesCloseout{WorkplaceID: "8", BusinessDay: day1, Amounts: closeout.Amounts{Gross: &gross}, Source: closeout.SourceManual},
		)
		vendor := new(MockVendorClient)
		stubDay(vendor, day1, barInvoices(t), nil, nil)
		svc := newTestSyncService(t, vendor, ledger)

		result, err := svc.SyncDay(context.Background(), SyncDayRequest{BusinessDay: day1})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Deleted)

		assert.Nil(t, ledger.get("7", "2025-06-01#9#1"))
		assert.NotNil(t, ledger.get("7", "2025-06-01#3#1"))
		assert.NotNil(t, ledger.get("7", "2025-05-31#3#1"), "other days untouched")
		assert.NotNil(t, ledger.get("8", "2025-06-01"), "other workplaces untouched")
	})

	t.Run("vendor rejection aborts the day", func(t *testing.T) {
		vendor := new(MockVendorClient)
		vendor.On("FetchFeed", mock.Anything, feedIs(integration.FeedTypeInvoices)).
			Return(nil, fmt.Errorf("status 401: %w", integration.ErrVendorRejected))
		vendor.On("FetchFeed", mock.Anything, feedIs(integration.FeedTypeSystemCloseOuts)).Return(nil, nil).Maybe()
		vendor.On("FetchFeed", mock.Anything, feedIs(integration.FeedTypePosCloseOuts)).Return(nil, nil).Maybe()
		ledger := newMemLedger()
		metrics := &countingMetrics{}
		svc := newTestSyncService(t, vendor, ledger, WithMetrics(metrics))

		_, err := svc.SyncDay(context.Background(), SyncDayRequest{BusinessDay: day1})
		require.Error(t, err)
		assert.True(t, errors.Is(err, integration.ErrVendorRejected))
		assert.Empty(t, ledger.all())
		assert.Equal(t, 1, metrics.dayErrors)
	})

	t.Run("unavailable feed degrades to empty", func(t *testing.T) {
		vendor := new(MockVendorClient)
		vendor.On("FetchFeed", mock.Anything, feedIs(integration.FeedTypeInvoices)).
			Return(nil, integration.ErrVendorUnavailable)
		vendor.On("FetchFeed", mock.Anything, feedIs(integration.FeedTypeSystemCloseOuts)).Return(nil, nil)
		vendor.On("FetchFeed", mock.Anything, feedIs(integration.FeedTypePosCloseOuts)).
			Return(mustDocs(t, `{"WorkplaceId":"7","PosId":"1","BusinessDay":"2025-06-01","GrossAmount":12}`), nil)
		ledger := newMemLedger()
		svc := newTestSyncService(t, vendor, ledger)

		result, err := svc.SyncDay(context.Background(), SyncDayRequest{BusinessDay: day1})
		require.NoError(t, err)
		assert.Equal(t, integration.FeedTypePosCloseOuts.String(), result.Source)
		assert.NotNil(t, ledger.get("7", "2025-06-01#1"))
	})

	t.Run("no feed data writes nothing", func(t *testing.T) {
		vendor := new(MockVendorClient)
		stubDay(vendor, day1, nil, nil, nil)
		ledger := newMemLedger()
		svc := newTestSyncService(t, vendor, ledger)

		result, err := svc.SyncDay(context.Background(), SyncDayRequest{BusinessDay: day1})
		require.NoError(t, err)
		assert.Equal(t, SourceNone, result.Source)
		assert.Zero(t, ledger.saves)
	})

	t.Run("rejects a malformed day", func(t *testing.T) {
		vendor := new(MockVendorClient)
		svc := newTestSyncService(t, vendor, newMemLedger())

		_, err := svc.SyncDay(context.Background(), SyncDayRequest{BusinessDay: "2025-6-1"})
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		assert.Contains(t, err.Error(), "business_day")
		vendor.AssertNotCalled(t, "FetchFeed", mock.Anything, mock.Anything)
	})

	t.Run("ledger write failure is returned", func(t *testing.T) {
		vendor := new(MockVendorClient)
		stubDay(vendor, day1, barInvoices(t), nil, nil)
		ledger := newMemLedger()
		ledger.saveErr = closeout.ErrLedgerWriteFailed
		svc := newTestSyncService(t, vendor, ledger)

		_, err := svc.SyncDay(context.Background(), SyncDayRequest{BusinessDay: day1})
		assert.ErrorIs(t, err, closeout.ErrLedgerWriteFailed)
	})
}

func TestSyncService_SyncDay_Validation(t *testing.T) {
	pos := func(t *testing.T) []*integration.Document {
		return mustDocs(t,
			`{"WorkplaceId":"7","PosId":"1","GrossAmount":10}`,
			`{"WorkplaceId":"7","PosId":"2","BusinessDay":"2025-06-01","GrossAmount":15}`,
			`{"WorkplaceId":"7","PosId":"3","BusinessDay":"2025-05-31","GrossAmount":15}`,
		)
	}

	t.Run("validation rejects records without a day", func(t *testing.T) {
		vendor := new(MockVendorClient)
		stubDay(vendor, day1, nil, nil, pos(t))
		ledger := newMemLedger()
		svc := newTestSyncService(t, vendor, ledger)

		result, err := svc.SyncDay(context.Background(), SyncDayRequest{BusinessDay: day1, Validate: true})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Upserted)
		assert.Equal(t, 2, result.Skipped)
	})

	t.Run("without validation the synced day is assumed", func(t *testing.T) {
		vendor := new(MockVendorClient)
		stubDay(vendor, day1, nil, nil, pos(t))
		ledger := newMemLedger()
		svc := newTestSyncService(t, vendor, ledger)

		result, err := svc.SyncDay(context.Background(), SyncDayRequest{BusinessDay: day1})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Upserted)
		assert.Equal(t, 1, result.Skipped, "record of another day")
		assert.NotNil(t, ledger.get("7", "2025-06-01#1"))
	})

	t.Run("validation rejects invoices before aggregation", func(t *testing.T) {
		invoices := mustDocs(t,
			`{"PosId":"3","BusinessDay":"not-a-day","TotalAmount":30,"Payments":[{"MethodName":"Cash","Amount":30}]}`,
		)
		vendor := new(MockVendorClient)
		stubDay(vendor, day1, invoices, nil, nil)
		ledger := newMemLedger()
		svc := newTestSyncService(t, vendor, ledger)

		result, err := svc.SyncDay(context.Background(), SyncDayRequest{BusinessDay: day1, Validate: true})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Upserted)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, SourceNone, result.Source)
		assert.Nil(t, ledger.get(closeout.DefaultWorkplaceID, "2025-06-01#3#1"))
		assert.Empty(t, ledger.all())
	})

	t.Run("rejected invoices fall through to the closeout feeds", func(t *testing.T) {
		invoices := mustDocs(t,
			`{"WorkplaceId":"7","PosId":"3","TotalAmount":30}`,
			`{"PosId":"3","Date":"2025-06-01","TotalAmount":30}`,
		)
		vendor := new(MockVendorClient)
		stubDay(vendor, day1, invoices, nil, pos(t))
		ledger := newMemLedger()
		svc := newTestSyncService(t, vendor, ledger)

		result, err := svc.SyncDay(context.Background(), SyncDayRequest{BusinessDay: day1, Validate: true})
		require.NoError(t, err)
		assert.Equal(t, integration.FeedTypePosCloseOuts.String(), result.Source)
		assert.Equal(t, 1, result.Upserted)
		assert.Equal(t, 4, result.Skipped, "two invoices and two closeouts")
		assert.NotNil(t, ledger.get("7", "2025-06-01#2"))
	})

	t.Run("without validation invoices keep the fallback workplace", func(t *testing.T) {
		invoices := mustDocs(t,
			`{"PosId":"3","TotalAmount":30,"Payments":[{"MethodName":"Cash","Amount":30}]}`,
		)
		vendor := new(MockVendorClient)
		stubDay(vendor, day1, invoices, nil, nil)
		ledger := newMemLedger()
		svc := newTestSyncService(t, vendor, ledger)

		result, err := svc.SyncDay(context.Background(), SyncDayRequest{BusinessDay: day1})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Upserted)
		assert.NotNil(t, ledger.get(closeout.DefaultWorkplaceID, "2025-06-01#3#1"))
	})
}

func TestSyncService_Lock(t *testing.T) {
	t.Run("held lock refuses the run", func(t *testing.T) {
		vendor := new(MockVendorClient)
		locker := &fakeLocker{held: true}
		svc := newTestSyncService(t, vendor, newMemLedger(), WithSyncLocker(locker, time.Minute))

		_, err := svc.SyncDay(context.Background(), SyncDayRequest{BusinessDay: day1})
		assert.ErrorIs(t, err, shared.ErrSyncInProgress)
		vendor.AssertNotCalled(t, "FetchFeed", mock.Anything, mock.Anything)
	})

	t.Run("lock is released after the run", func(t *testing.T) {
		vendor := new(MockVendorClient)
		stubDay(vendor, day1, nil, nil, nil)
		locker := &fakeLocker{}
		svc := newTestSyncService(t, vendor, newMemLedger(), WithSyncLocker(locker, time.Minute))

		_, err := svc.SyncDay(context.Background(), SyncDayRequest{BusinessDay: day1})
		require.NoError(t, err)
		assert.Equal(t, 1, locker.acquired)
		assert.Equal(t, 1, locker.released)
		assert.False(t, locker.held)
	})
}

func TestSyncService_FullSync(t *testing.T) {
	gross := decimal.NewFromInt(5)
	legacy := &closeout.SalesCloseout{
		WorkplaceID: "7", BusinessDay: "2025-06-02", PosID: "3", SequenceNumber: 1,
		Amounts: closeout.Amounts{Gross: &gross}, Source: closeout.SourceAgora,
		StoredSortKey: "2025-06-02#3#1#legacy",
	}
	ledger := newMemLedger(
		&closeout.SalesCloseout{WorkplaceID: "7", BusinessDay: "2025-05-20", PosID: "3", SequenceNumber: 1, Source: closeout.SourceAgora},
		&closeout.SalesCloseout{WorkplaceID: "7", BusinessDay: "2025-06-02", PosID: "3", SequenceNumber: 1, Amounts: closeout.Amounts{Gross: &gross}, Source: closeout.SourceAgora},
		legacy,
	)

	vendor := new(MockVendorClient)
	stubDay(vendor, "2025-06-01", barInvoices(t), nil, nil)
	stubDay(vendor, "2025-06-02", nil, nil, nil)
	vendor.On("FetchFeed", mock.Anything, feedFor(integration.FeedTypeInvoices, "2025-06-03")).
		Return(nil, fmt.Errorf("status 403: %w", integration.ErrVendorRejected))
	vendor.On("FetchFeed", mock.Anything, feedFor(integration.FeedTypeSystemCloseOuts, "2025-06-03")).Return(nil, nil).Maybe()
	vendor.On("FetchFeed", mock.Anything, feedFor(integration.FeedTypePosCloseOuts, "2025-06-03")).Return(nil, nil).Maybe()

	var pauses []time.Duration
	svc := newTestSyncService(t, vendor, ledger,
		WithDayDelay(2*time.Second),
		withSleeper(func(_ context.Context, d time.Duration) error {
			pauses = append(pauses, d)
			return nil
		}),
	)

	result, err := svc.FullSync(context.Background(), FullSyncRequest{
		DateFrom:         "2025-06-01",
		DateTo:           "2025-06-03",
		DeleteOutOfRange: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Days)
	assert.Equal(t, 1, result.OutOfRangeDeleted)
	assert.Equal(t, 1, result.DuplicatesDeleted)
	assert.Equal(t, 1, result.Upserted)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, pauses)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "2025-06-03", result.Errors[0].BusinessDay)

	assert.Nil(t, ledger.get("7", "2025-05-20#3#1"))
	assert.Nil(t, ledger.get("7", "2025-06-02#3#1#legacy"))
	assert.NotNil(t, ledger.get("7", "2025-06-02#3#1"))
	assert.NotNil(t, ledger.get("7", "2025-06-01#3#1"))
}

func TestSyncService_FullSync_RejectsInvertedRange(t *testing.T) {
	svc := newTestSyncService(t, new(MockVendorClient), newMemLedger())

	_, err := svc.FullSync(context.Background(), FullSyncRequest{DateFrom: "2025-06-03", DateTo: "2025-06-01"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestSyncService_FullSync_StopsOnCancellation(t *testing.T) {
	vendor := new(MockVendorClient)
	stubDay(vendor, "2025-06-01", nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	svc := newTestSyncService(t, vendor, newMemLedger(),
		WithDayDelay(time.Second),
		withSleeper(func(context.Context, time.Duration) error {
			cancel()
			return context.Canceled
		}),
	)

	result, err := svc.FullSync(ctx, FullSyncRequest{DateFrom: "2025-06-01", DateTo: "2025-06-05"})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Days)
}

func TestSyncService_CompleteFields(t *testing.T) {
	gross := decimal.NewFromInt(50)
	open := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	closed := open.Add(14 * time.Hour)
	created := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	full := func(r *closeout.SalesCloseout) *closeout.SalesCloseout {
		r.Amounts.Gross = &gross
		r.OpenDate, r.CloseDate = &open, &closed
		r.InvoicePayments = closeout.OrderPayments([]closeout.PaymentLine{{MethodName: closeout.MethodCash, Amount: gross}})
		r.Documents = []closeout.DocumentRange{{Series: "T", FirstNumber: 1, LastNumber: 5, Count: 5, Amount: gross}}
		r.Source = closeout.SourceAgora
		r.CreatedAt = created
		return r
	}

	ledger := newMemLedger(
		full(&closeout.SalesCloseout{WorkplaceID: "7", WorkplaceName: "Centro", BusinessDay: day1, PosID: "3", SequenceNumber: 1}),
		&closeout.SalesCloseout{WorkplaceID: "7", BusinessDay: day1, PosID: "4", PosName: "Terraza", SequenceNumber: 1, Source: closeout.SourceAgora, CreatedAt: created},
		full(&closeout.SalesCloseout{WorkplaceID: "7", WorkplaceName: "Centro", BusinessDay: day1, PosID: "5", PosName: "Sala", SequenceNumber: 1}),
		&closeout.SalesCloseout{WorkplaceID: "8", WorkplaceName: "Puerto", BusinessDay: "2025-06-02", Source: closeout.SourceAgora, CreatedAt: created},
	)

	vendor := new(MockVendorClient)
	vendor.On("FetchFeed", mock.Anything, feedForWorkplace(integration.FeedTypeInvoices, day1, "7")).
		Return(mustDocs(t, `{"WorkplaceId":"7","WorkplaceName":"Centro","PosId":"4","PosName":"Terraza 2","Serie":"F","Number":1,
			"Date":"2025-06-01T20:00:00","TotalAmount":20,"Payments":[{"MethodName":"Card","Amount":20}]}`), nil)
	vendor.On("FetchFeed", mock.Anything, feedForWorkplace(integration.FeedTypeSystemCloseOuts, day1, "7")).Return(nil, nil)
	vendor.On("FetchFeed", mock.Anything, feedForWorkplace(integration.FeedTypePosCloseOuts, day1, "7")).Return(nil, nil)
	for _, feed := range integration.AllFeedTypes {
		vendor.On("FetchFeed", mock.Anything, feedForWorkplace(feed, "2025-06-02", "8")).Return(nil, nil)
	}

	svc := newTestSyncService(t, vendor, ledger,
		WithSaleCenterDirectory(fakeDirectory{"3": "Barra", "4": "Otra"}))

	result, err := svc.CompleteFields(context.Background(), CompleteFieldsRequest{})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Scanned)
	assert.Equal(t, 1, result.Fetched)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Errors)

	named := ledger.get("7", "2025-06-01#3#1")
	assert.Equal(t, "Barra", named.PosName)
	assert.Equal(t, fixedClock()(), named.UpdatedAt)

	filled := ledger.get("7", "2025-06-01#4#1")
	assert.Equal(t, "Terraza", filled.PosName, "populated fields are kept")
	assert.Equal(t, "Centro", filled.WorkplaceName)
	require.NotNil(t, filled.Amounts.Gross)
	assert.Equal(t, "20", filled.Amounts.Gross.String())
	assert.Equal(t, "20", paymentMap(filled.InvoicePayments)[closeout.MethodCard])
	require.Len(t, filled.Documents, 1)
	assert.Equal(t, "F", filled.Documents[0].Series)
	assert.Equal(t, created, filled.CreatedAt)

	untouched := ledger.get("8", "2025-06-02")
	assert.Nil(t, untouched.Amounts.Gross)
}

func TestSyncService_CompleteFields_WorkplaceName(t *testing.T) {
	gross := decimal.NewFromInt(20)
	open := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	closed := open.Add(14 * time.Hour)
	ledger := newMemLedger(&closeout.SalesCloseout{
		WorkplaceID: "9", BusinessDay: day1, PosID: "2", PosName: "Sala", SequenceNumber: 1,
		OpenDate: &open, CloseDate: &closed,
		Amounts:         closeout.Amounts{Gross: &gross},
		InvoicePayments: closeout.OrderPayments([]closeout.PaymentLine{{MethodName: closeout.MethodCard, Amount: gross}}),
		Documents:       []closeout.DocumentRange{{Series: "F", FirstNumber: 1, LastNumber: 1, Count: 1, Amount: gross}},
		Source:          closeout.SourceAgora,
	})

	vendor := new(MockVendorClient)
	vendor.On("FetchFeed", mock.Anything, feedForWorkplace(integration.FeedTypeInvoices, day1, "9")).
		Return(mustDocs(t, `{"WorkplaceId":"9","WorkplaceName":"Playa","PosId":"2","Serie":"F","Number":1,
			"Date":"2025-06-01T20:00:00","TotalAmount":20,"Payments":[{"MethodName":"Card","Amount":20}]}`), nil)
	vendor.On("FetchFeed", mock.Anything, feedForWorkplace(integration.FeedTypeSystemCloseOuts, day1, "9")).Return(nil, nil)
	vendor.On("FetchFeed", mock.Anything, feedForWorkplace(integration.FeedTypePosCloseOuts, day1, "9")).Return(nil, nil)
	svc := newTestSyncService(t, vendor, ledger)

	result, err := svc.CompleteFields(context.Background(), CompleteFieldsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Fetched)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, "Playa", ledger.get("9", "2025-06-01#2#1").WorkplaceName)
	vendor.AssertExpectations(t)
}

func TestSyncService_CompleteFields_RespectsLimit(t *testing.T) {
	ledger := newMemLedger(
		&closeout.SalesCloseout{WorkplaceID: "7", BusinessDay: "2025-06-01", PosID: "3", Source: closeout.SourceAgora},
		&closeout.SalesCloseout{WorkplaceID: "7", BusinessDay: "2025-06-02", PosID: "3", Source: closeout.SourceAgora},
	)
	vendor := new(MockVendorClient)
	vendor.On("FetchFeed", mock.Anything, mock.Anything).Return(nil, nil)
	svc := newTestSyncService(t, vendor, ledger, WithSaleCenterDirectory(fakeDirectory{"3": "Barra"}))

	result, err := svc.CompleteFields(context.Background(), CompleteFieldsRequest{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, "Barra", ledger.get("7", "2025-06-01#3").PosName)
	assert.Empty(t, ledger.get("7", "2025-06-02#3").PosName)
}
