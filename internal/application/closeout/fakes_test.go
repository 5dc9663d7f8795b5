package closeout

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/closeout/backend/internal/domain/closeout"
	"github.com/closeout/backend/internal/domain/integration"
	"github.com/closeout/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Document helpers
// ---------------------------------------------------------------------------

func mustDoc(t *testing.T, raw string) *integration.Document {
	t.Helper()
	var doc integration.Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return &doc
}

func mustDocs(t *testing.T, raws ...string) []*integration.Document {
	t.Helper()
	out := make([]*integration.Document, len(raws))
	for i, raw := range raws {
		out[i] = mustDoc(t, raw)
	}
	return out
}

func fixedClock() func() time.Time {
	now := time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func paymentMap(lines []closeout.PaymentLine) map[string]string {
	out := make(map[string]string, len(lines))
	for _, l := range lines {
		out[l.MethodName] = l.Amount.String()
	}
	return out
}

func methodNames(lines []closeout.PaymentLine) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.MethodName
	}
	return out
}

// ---------------------------------------------------------------------------
// MockVendorClient
// ---------------------------------------------------------------------------

type MockVendorClient struct {
	mock.Mock
}

func (m *MockVendorClient) FetchFeed(ctx context.Context, req *integration.FeedRequest) ([]*integration.Document, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.Document), args.Error(1)
}

func feedIs(feed integration.FeedType) any {
	return mock.MatchedBy(func(req *integration.FeedRequest) bool { return req.Feed == feed })
}

func feedFor(feed integration.FeedType, day string) any {
	return mock.MatchedBy(func(req *integration.FeedRequest) bool {
		return req.Feed == feed && req.BusinessDay == day
	})
}

// ---------------------------------------------------------------------------
// memLedger is an in-memory LedgerRepository
// ---------------------------------------------------------------------------

type memLedger struct {
	mu        sync.Mutex
	rows      map[closeout.RecordKey]*closeout.SalesCloseout
	saveErr   error
	saves     int
	deletions int
}

func newMemLedger(records ...*closeout.SalesCloseout) *memLedger {
	l := &memLedger{rows: make(map[closeout.RecordKey]*closeout.SalesCloseout)}
	for _, r := range records {
		l.put(r)
	}
	return l
}

// put stores r under its key, recording the key the way a real store reads it back
func (l *memLedger) put(r *closeout.SalesCloseout) {
	c := clone(r)
	c.StoredSortKey = r.Key().SortKey
	l.rows[r.Key()] = c
}

func clone(r *closeout.SalesCloseout) *closeout.SalesCloseout {
	c := *r
	c.InvoicePayments = append([]closeout.PaymentLine(nil), r.InvoicePayments...)
	c.Documents = append([]closeout.DocumentRange(nil), r.Documents...)
	return &c
}

func (l *memLedger) SaveBatch(_ context.Context, records []*closeout.SalesCloseout) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.saveErr != nil {
		return l.saveErr
	}
	for _, r := range records {
		l.put(r)
		l.saves++
	}
	return nil
}

func (l *memLedger) DeleteBatch(_ context.Context, keys []closeout.RecordKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		delete(l.rows, k)
		l.deletions++
	}
	return nil
}

func (l *memLedger) FindByDay(_ context.Context, workplaceID, businessDay string) ([]*closeout.SalesCloseout, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*closeout.SalesCloseout
	for _, k := range l.sortedKeys() {
		if k.WorkplaceID == workplaceID && strings.HasPrefix(k.SortKey, closeout.SortKeyDayPrefix(businessDay)) {
			out = append(out, clone(l.rows[k]))
		}
	}
	return out, nil
}

func (l *memLedger) FindByKey(_ context.Context, key closeout.RecordKey) (*closeout.SalesCloseout, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[key]
	if !ok {
		return nil, closeout.ErrRecordNotFound
	}
	return clone(r), nil
}

func (l *memLedger) Scan(_ context.Context, filter closeout.ScanFilter, fn func(*closeout.SalesCloseout) bool) error {
	l.mu.Lock()
	keys := l.sortedKeys()
	rows := make([]*closeout.SalesCloseout, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, clone(l.rows[k]))
	}
	l.mu.Unlock()

	visited := 0
	for _, r := range rows {
		if filter.WorkplaceID != "" && r.WorkplaceID != filter.WorkplaceID {
			continue
		}
		if !r.InRange(filter.DateFrom, filter.DateTo) {
			continue
		}
		if filter.Limit > 0 && visited >= filter.Limit {
			return nil
		}
		visited++
		if !fn(r) {
			return nil
		}
	}
	return nil
}

func (l *memLedger) sortedKeys() []closeout.RecordKey {
	keys := make([]closeout.RecordKey, 0, len(l.rows))
	for k := range l.rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].WorkplaceID != keys[j].WorkplaceID {
			return keys[i].WorkplaceID < keys[j].WorkplaceID
		}
		return keys[i].SortKey < keys[j].SortKey
	})
	return keys
}

func (l *memLedger) all() []*closeout.SalesCloseout {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*closeout.SalesCloseout, 0, len(l.rows))
	for _, k := range l.sortedKeys() {
		out = append(out, clone(l.rows[k]))
	}
	return out
}

func (l *memLedger) get(workplaceID, sortKey string) *closeout.SalesCloseout {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows[closeout.RecordKey{WorkplaceID: workplaceID, SortKey: sortKey}]
}

var _ closeout.LedgerRepository = (*memLedger)(nil)

// ---------------------------------------------------------------------------
// Other fakes
// ---------------------------------------------------------------------------

type fakeLocker struct {
	held     bool
	acquired int
	released int
}

func (f *fakeLocker) Acquire(_ context.Context, _ string, _ time.Duration) (func(context.Context) error, error) {
	if f.held {
		return nil, shared.ErrSyncInProgress
	}
	f.held = true
	f.acquired++
	return func(context.Context) error {
		f.held = false
		f.released++
		return nil
	}, nil
}

type fakeArchive struct {
	mu    sync.Mutex
	feeds []string
}

func (f *fakeArchive) Archive(_ context.Context, runID, day string, feed integration.FeedType, docs []*integration.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds = append(f.feeds, runID+"/"+day+"/"+feed.String())
	return nil
}

type fakeDirectory map[string]string

func (d fakeDirectory) Names(context.Context) (map[string]string, error) {
	return d, nil
}

type countingMetrics struct {
	mu        sync.Mutex
	fetched   int
	upserted  int
	skipped   int
	deleted   int
	dayErrors int
}

func (m *countingMetrics) RecordFetched(_ context.Context, _ string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetched += n
}

func (m *countingMetrics) RecordUpserted(_ context.Context, _ string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted += n
}

func (m *countingMetrics) RecordSkipped(_ context.Context, _ string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped += n
}

func (m *countingMetrics) RecordDeleted(_ context.Context, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted += n
}

func (m *countingMetrics) RecordDayError(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dayErrors++
}
