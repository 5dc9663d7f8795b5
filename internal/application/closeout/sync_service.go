package closeout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/closeout/backend/internal/domain/closeout"
	"github.com/closeout/backend/internal/domain/integration"
	"github.com/closeout/backend/internal/domain/shared"
	"github.com/closeout/backend/internal/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	syncLockName            = "closeout-sync"
	defaultLockTTL          = 30 * time.Minute
	defaultMaintenanceLimit = 200
	tracerName              = "github.com/closeout/backend/internal/application/closeout"
)

// SyncService orchestrates vendor-to-ledger synchronisation: single days,
// date ranges, and the fill-missing-fields maintenance pass.
type SyncService struct {
	vendor      integration.VendorFeedClient
	ledger      closeout.LedgerRepository
	mapper      *RecordMapper
	saleCenters SaleCenterDirectory
	archive     FeedArchive
	locker      SyncLocker
	metrics     SyncMetrics
	tracer      trace.Tracer
	logger      *zap.Logger

	now      func() time.Time
	newRunID func() string
	sleep    func(ctx context.Context, d time.Duration) error

	dayDelay         time.Duration
	lockTTL          time.Duration
	maintenanceLimit int
}

// SyncServiceOption is a functional option for configuring SyncService
type SyncServiceOption func(*SyncService)

// WithLogger sets the base logger
func WithLogger(l *zap.Logger) SyncServiceOption {
	return func(s *SyncService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used to stamp records
func WithClock(now func() time.Time) SyncServiceOption {
	return func(s *SyncService) {
		if now != nil {
			s.now = now
			s.mapper = NewRecordMapper(now)
		}
	}
}

// WithFeedArchive archives every fetched feed
func WithFeedArchive(a FeedArchive) SyncServiceOption {
	return func(s *SyncService) { s.archive = a }
}

// WithSyncLocker serialises triggers through the given locker
func WithSyncLocker(l SyncLocker, ttl time.Duration) SyncServiceOption {
	return func(s *SyncService) {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithSaleCenterDirectory sets the till-name source used by the maintenance pass
func WithSaleCenterDirectory(d SaleCenterDirectory) SyncServiceOption {
	return func(s *SyncService) { s.saleCenters = d }
}

// WithMetrics sets the pipeline counters
func WithMetrics(m SyncMetrics) SyncServiceOption {
	return func(s *SyncService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer used for day spans
func WithTracer(t trace.Tracer) SyncServiceOption {
	return func(s *SyncService) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithDayDelay sets the pause between consecutive vendor days
func WithDayDelay(d time.Duration) SyncServiceOption {
	return func(s *SyncService) { s.dayDelay = d }
}

// WithMaintenanceLimit sets the default scan window of the maintenance pass
func WithMaintenanceLimit(n int) SyncServiceOption {
	return func(s *SyncService) {
		if n > 0 {
			s.maintenanceLimit = n
		}
	}
}

// WithRunIDGenerator overrides run id generation
func WithRunIDGenerator(fn func() string) SyncServiceOption {
	return func(s *SyncService) {
		if fn != nil {
			s.newRunID = fn
		}
	}
}

// withSleeper overrides the inter-day pause (tests)
func withSleeper(fn func(ctx context.Context, d time.Duration) error) SyncServiceOption {
	return func(s *SyncService) { s.sleep = fn }
}

// NewSyncService creates a new SyncService
func NewSyncService(
	vendor integration.VendorFeedClient,
	ledger closeout.LedgerRepository,
	opts ...SyncServiceOption,
) *SyncService {
	s := &SyncService{
		vendor:           vendor,
		ledger:           ledger,
		mapper:           NewRecordMapper(time.Now),
		metrics:          noopMetrics{},
		tracer:           otel.Tracer(tracerName),
		logger:           zap.NewNop(),
		now:              time.Now,
		newRunID:         func() string { return uuid.NewString() },
		sleep:            sleepContext,
		lockTTL:          defaultLockTTL,
		maintenanceLimit: defaultMaintenanceLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ---------------------------------------------------------------------------
// Triggers
// ---------------------------------------------------------------------------

// SyncDay rewrites the ledger rows of one business day from the vendor feeds
func (s *SyncService) SyncDay(ctx context.Context, req SyncDayRequest) (*SyncDayResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	ctx, runID := s.startRun(ctx, "sync-day")
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.syncDay(ctx, runID, req.BusinessDay, req.WorkplaceIDs, req.Validate)
}

// FullSync syncs every day of [DateFrom, DateTo] in order. Day failures are
// collected in the result and never abort the range.
func (s *SyncService) FullSync(ctx context.Context, req FullSyncRequest) (*FullSyncResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	from, _ := time.Parse(time.DateOnly, req.DateFrom)
	to, _ := time.Parse(time.DateOnly, req.DateTo)
	if to.Before(from) {
		return nil, shared.NewDomainError("INVALID_INPUT", "date_to must not be before date_from")
	}

	ctx, runID := s.startRun(ctx, "full-sync")
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &FullSyncResult{
		RunID:    runID,
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
		Errors:   make([]DayError, 0),
	}

	if req.DeleteOutOfRange {
		outOfRange, duplicates, err := s.cleanupLedger(ctx, req.DateFrom, req.DateTo)
		if err != nil {
			return nil, fmt.Errorf("ledger cleanup: %w", err)
		}
		result.OutOfRangeDeleted = outOfRange
		result.DuplicatesDeleted = duplicates
		result.Deleted += outOfRange + duplicates
	}

	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if result.Days > 0 && s.dayDelay > 0 {
			if err := s.sleep(ctx, s.dayDelay); err != nil {
				return result, err
			}
		}
		day := d.Format(time.DateOnly)
		result.Days++

		dayResult, err := s.syncDay(ctx, runID, day, nil, true)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			logctx.L(ctx).Warn("Business day sync failed, continuing with next day",
				zap.String("business_day", day),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, DayError{BusinessDay: day, Error: err.Error()})
			continue
		}
		result.Fetched += dayResult.Fetched
		result.Upserted += dayResult.Upserted
		result.Skipped += dayResult.Skipped
		result.Deleted += dayResult.Deleted
	}

	logctx.L(ctx).Info("Full sync completed",
		zap.Int("days", result.Days),
		zap.Int("fetched", result.Fetched),
		zap.Int("upserted", result.Upserted),
		zap.Int("skipped", result.Skipped),
		zap.Int("deleted", result.Deleted),
		zap.Int("day_errors", len(result.Errors)),
	)
	return result, nil
}

// CompleteFields fills absent attributes of a bounded window of ledger rows.
// Till names come from the sale-center directory; amounts, dates, payments
// and documents come from re-fetching the vendor feeds for the row's
// workplace and day. Populated attributes are never overwritten.
func (s *SyncService) CompleteFields(ctx context.Context, req CompleteFieldsRequest) (*CompleteFieldsResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = s.maintenanceLimit
	}

	ctx, runID := s.startRun(ctx, "complete-fields")
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &CompleteFieldsResult{RunID: runID, Errors: make([]string, 0)}

	var candidates []*closeout.SalesCloseout
	filter := closeout.ScanFilter{
		WorkplaceID: req.WorkplaceID,
		DateFrom:    req.DateFrom,
		DateTo:      req.DateTo,
		Limit:       limit,
	}
	if err := s.ledger.Scan(ctx, filter, func(r *closeout.SalesCloseout) bool {
		result.Scanned++
		if len(r.MissingFields()) > 0 {
			candidates = append(candidates, r)
		}
		return true
	}); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return result, nil
	}

	changed := make(map[string]bool)
	s.fillPosNames(ctx, candidates, changed, result)
	s.fillFromVendor(ctx, runID, candidates, changed, result)

	updates := make([]*closeout.SalesCloseout, 0, len(changed))
	now := s.now()
	for _, r := range candidates {
		if changed[r.Key().String()] {
			r.Touch(now)
			updates = append(updates, r)
		}
	}
	if len(updates) > 0 {
		if err := s.ledger.SaveBatch(ctx, updates); err != nil {
			return nil, err
		}
	}
	result.Updated = len(updates)
	result.Skipped = len(candidates) - len(updates)

	logctx.L(ctx).Info("Missing fields completed",
		zap.Int("scanned", result.Scanned),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

// dayOutcome is the reconciled, mapped output of one business day
type dayOutcome struct {
	source  string
	fetched int
	skipped int
	records []*closeout.SalesCloseout
}

func (s *SyncService) syncDay(ctx context.Context, runID, day string, workplaceIDs []string, validate bool) (*SyncDayResult, error) {
	ctx, span := s.tracer.Start(ctx, "closeout.SyncDay",
		trace.WithAttributes(attribute.String("business_day", day)))
	defer span.End()
	ctx, _ = logctx.WithBusinessDay(ctx, logctx.FromContext(ctx), day)

	outcome, err := s.reconcileDay(ctx, runID, day, workplaceIDs, validate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordDayError(ctx)
		return nil, err
	}
	span.SetAttributes(attribute.String("source", outcome.source))

	result := &SyncDayResult{
		RunID:       runID,
		BusinessDay: day,
		Source:      outcome.source,
		Fetched:     outcome.fetched,
		Skipped:     outcome.skipped,
		Workplaces:  make([]string, 0),
	}

	order, byWorkplace := groupByWorkplace(outcome.records)
	for _, wp := range order {
		deleted, err := s.replaceDay(ctx, wp, day, byWorkplace[wp])
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.metrics.RecordDayError(ctx)
			return nil, fmt.Errorf("workplace %s: %w", wp, err)
		}
		result.Deleted += deleted
		result.Upserted += len(byWorkplace[wp])
		result.Workplaces = append(result.Workplaces, wp)
	}

	s.metrics.RecordUpserted(ctx, outcome.source, result.Upserted)
	s.metrics.RecordSkipped(ctx, outcome.source, result.Skipped)
	s.metrics.RecordDeleted(ctx, result.Deleted)

	logctx.L(ctx).Info("Business day synced",
		zap.String("source", result.Source),
		zap.Int("fetched", result.Fetched),
		zap.Int("upserted", result.Upserted),
		zap.Int("skipped", result.Skipped),
		zap.Int("deleted", result.Deleted),
	)
	return result, nil
}

// reconcileDay fetches the three feeds and runs aggregation, source choice,
// validation and mapping. Records are unique by key, first seen wins.
func (s *SyncService) reconcileDay(ctx context.Context, runID, day string, workplaceIDs []string, validate bool) (*dayOutcome, error) {
	feeds, err := s.fetchFeeds(ctx, day, workplaceIDs)
	if err != nil {
		return nil, err
	}
	outcome := &dayOutcome{}
	for _, feed := range integration.AllFeedTypes {
		docs := feeds[feed]
		outcome.fetched += len(docs)
		s.metrics.RecordFetched(ctx, feed.String(), len(docs))
		s.archiveFeed(ctx, runID, day, feed, docs)
	}

	// Aggregation fills workplace and day, so invoices are checked before it
	invoices := feeds[integration.FeedTypeInvoices]
	if validate {
		var rejected int
		invoices, rejected = validRawRecords(ctx, invoices)
		outcome.skipped += rejected
	}

	selection := ChooseSource(
		AggregateInvoices(invoices, day),
		feeds[integration.FeedTypeSystemCloseOuts],
		feeds[integration.FeedTypePosCloseOuts],
	)
	outcome.source = selection.Source

	seen := make(map[string]bool, len(selection.Records))
	for _, rec := range selection.Records {
		if validate {
			if reason := ValidateRawRecord(rec.Doc); reason != "" {
				logctx.L(ctx).Debug("Raw record rejected", zap.String("reason", reason))
				outcome.skipped++
				continue
			}
		}
		record := s.mapper.MapToRecord(rec.Doc, day, rec.Attributed)
		if !record.HasKey() || record.BusinessDay != day {
			outcome.skipped++
			continue
		}
		key := record.Key().String()
		if seen[key] {
			outcome.skipped++
			continue
		}
		seen[key] = true
		outcome.records = append(outcome.records, record)
	}
	return outcome, nil
}

// validRawRecords drops the documents failing ValidateRawRecord and reports how many it dropped
func validRawRecords(ctx context.Context, docs []*integration.Document) ([]*integration.Document, int) {
	valid := make([]*integration.Document, 0, len(docs))
	for _, doc := range docs {
		if reason := ValidateRawRecord(doc); reason != "" {
			logctx.L(ctx).Debug("Raw invoice rejected", zap.String("reason", reason))
			continue
		}
		valid = append(valid, doc)
	}
	return valid, len(docs) - len(valid)
}

// fetchFeeds fetches all feeds concurrently. Transient vendor failures
// degrade to an empty feed; rejections abort the day.
func (s *SyncService) fetchFeeds(ctx context.Context, day string, workplaceIDs []string) (map[integration.FeedType][]*integration.Document, error) {
	results := make([][]*integration.Document, len(integration.AllFeedTypes))
	g, gctx := errgroup.WithContext(ctx)
	for i, feed := range integration.AllFeedTypes {
		g.Go(func() error {
			docs, err := s.vendor.FetchFeed(gctx, &integration.FeedRequest{
				Feed:         feed,
				BusinessDay:  day,
				WorkplaceIDs: workplaceIDs,
			})
			if err == nil {
				results[i] = docs
				return nil
			}
			if errors.Is(err, integration.ErrVendorRejected) || errors.Is(err, integration.ErrVendorNotConfigured) {
				return fmt.Errorf("fetch %s: %w", feed, err)
			}
			logctx.L(ctx).Warn("Vendor feed unavailable, treating as empty",
				zap.String("feed", feed.String()),
				zap.Error(err),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	feeds := make(map[integration.FeedType][]*integration.Document, len(results))
	for i, feed := range integration.AllFeedTypes {
		feeds[feed] = results[i]
	}
	return feeds, nil
}

func (s *SyncService) archiveFeed(ctx context.Context, runID, day string, feed integration.FeedType, docs []*integration.Document) {
	if s.archive == nil || len(docs) == 0 {
		return
	}
	if err := s.archive.Archive(ctx, runID, day, feed, docs); err != nil {
		logctx.L(ctx).Warn("Failed to archive vendor feed",
			zap.String("feed", feed.String()),
			zap.Error(err),
		)
	}
}

// replaceDay makes the workplace's rows for the day exactly records: stale
// rows are deleted first, then records are written. Rows describing the same
// business fact keep their CreatedAt.
func (s *SyncService) replaceDay(ctx context.Context, workplaceID, day string, records []*closeout.SalesCloseout) (int, error) {
	existing, err := s.ledger.FindByDay(ctx, workplaceID, day)
	if err != nil {
		return 0, err
	}

	produced := make(map[string]bool, len(records))
	for _, r := range records {
		produced[r.Key().SortKey] = true
	}

	createdAt := make(map[string]time.Time, len(existing))
	var stale []closeout.RecordKey
	for _, r := range existing {
		if !r.CreatedAt.IsZero() {
			if _, ok := createdAt[r.BusinessKey()]; !ok {
				createdAt[r.BusinessKey()] = r.CreatedAt
			}
		}
		if !produced[r.Key().SortKey] {
			stale = append(stale, r.Key())
		}
	}
	for _, r := range records {
		if c, ok := createdAt[r.BusinessKey()]; ok {
			r.CreatedAt = c
		}
	}

	if len(stale) > 0 {
		if err := s.ledger.DeleteBatch(ctx, stale); err != nil {
			return 0, err
		}
	}
	if err := s.ledger.SaveBatch(ctx, records); err != nil {
		return len(stale), err
	}
	return len(stale), nil
}

// cleanupLedger deletes rows outside [from, to] and rows repeating an
// earlier row's business key.
func (s *SyncService) cleanupLedger(ctx context.Context, from, to string) (int, int, error) {
	seen := make(map[string]bool)
	var stale []closeout.RecordKey
	outOfRange, duplicates := 0, 0

	err := s.ledger.Scan(ctx, closeout.ScanFilter{}, func(r *closeout.SalesCloseout) bool {
		if !r.InRange(from, to) {
			outOfRange++
			stale = append(stale, r.Key())
			return true
		}
		bk := r.BusinessKey()
		if seen[bk] {
			duplicates++
			stale = append(stale, r.Key())
			return true
		}
		seen[bk] = true
		return true
	})
	if err != nil {
		return 0, 0, err
	}
	if len(stale) > 0 {
		if err := s.ledger.DeleteBatch(ctx, stale); err != nil {
			return 0, 0, err
		}
	}
	s.metrics.RecordDeleted(ctx, len(stale))

	logctx.L(ctx).Info("Ledger range cleanup completed",
		zap.String("date_from", from),
		zap.String("date_to", to),
		zap.Int("out_of_range", outOfRange),
		zap.Int("duplicates", duplicates),
	)
	return outOfRange, duplicates, nil
}

// fillPosNames resolves missing till names through the sale-center directory
func (s *SyncService) fillPosNames(ctx context.Context, candidates []*closeout.SalesCloseout, changed map[string]bool, result *CompleteFieldsResult) {
	if s.saleCenters == nil {
		return
	}
	var names map[string]string
	loaded := false
	for _, r := range candidates {
		if r.PosID == "" || r.PosName != "" {
			continue
		}
		if !loaded {
			loaded = true
			var err error
			if names, err = s.saleCenters.Names(ctx); err != nil {
				logctx.L(ctx).Warn("Failed to load sale-center names", zap.Error(err))
				result.Errors = append(result.Errors, "sale centers: "+err.Error())
				return
			}
		}
		if name := names[r.PosID]; name != "" {
			r.PosName = name
			changed[r.Key().String()] = true
		}
	}
}

// fillFromVendor re-fetches each (workplace, day) once and fills absent attributes
func (s *SyncService) fillFromVendor(ctx context.Context, runID string, candidates []*closeout.SalesCloseout, changed map[string]bool, result *CompleteFieldsResult) {
	type group struct {
		workplaceID string
		day         string
		records     []*closeout.SalesCloseout
	}
	var order []string
	groups := make(map[string]*group)
	for _, r := range candidates {
		if !r.NeedsVendorData() {
			continue
		}
		key := r.WorkplaceID + "|" + r.BusinessDay
		g, ok := groups[key]
		if !ok {
			g = &group{workplaceID: r.WorkplaceID, day: r.BusinessDay}
			groups[key] = g
			order = append(order, key)
		}
		g.records = append(g.records, r)
	}

	for i, key := range order {
		if i > 0 && s.dayDelay > 0 {
			if err := s.sleep(ctx, s.dayDelay); err != nil {
				result.Errors = append(result.Errors, err.Error())
				return
			}
		}
		g := groups[key]
		outcome, err := s.reconcileDay(ctx, runID, g.day, []string{g.workplaceID}, false)
		if err != nil {
			logctx.L(ctx).Warn("Failed to refetch vendor data",
				zap.String("workplace_id", g.workplaceID),
				zap.String("business_day", g.day),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("%s/%s: %v", g.workplaceID, g.day, err))
			continue
		}
		result.Fetched += outcome.fetched

		bySortKey := make(map[string]*closeout.SalesCloseout, len(outcome.records))
		byBusinessKey := make(map[string]*closeout.SalesCloseout, len(outcome.records))
		for _, fresh := range outcome.records {
			if fresh.WorkplaceID != g.workplaceID {
				continue
			}
			bySortKey[fresh.SortKey()] = fresh
			byBusinessKey[fresh.BusinessKey()] = fresh
		}
		for _, r := range g.records {
			fresh, ok := bySortKey[r.SortKey()]
			if !ok {
				fresh = byBusinessKey[r.BusinessKey()]
			}
			if r.FillMissingFrom(fresh) {
				changed[r.Key().String()] = true
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Run helpers
// ---------------------------------------------------------------------------

func (s *SyncService) startRun(ctx context.Context, trigger string) (context.Context, string) {
	runID := s.newRunID()
	ctx, l := logctx.WithSyncRunID(ctx, s.logger, runID)
	l.Info("Sync run started", zap.String("trigger", trigger))
	return ctx, runID
}

func (s *SyncService) acquire(ctx context.Context) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, syncLockName, s.lockTTL)
	if err != nil {
		return nil, err
	}
	return func() {
		// release even when ctx is already cancelled
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logctx.L(ctx).Warn("Failed to release sync lock", zap.Error(err))
		}
	}, nil
}

func groupByWorkplace(records []*closeout.SalesCloseout) ([]string, map[string][]*closeout.SalesCloseout) {
	var order []string
	grouped := make(map[string][]*closeout.SalesCloseout)
	for _, r := range records {
		if _, ok := grouped[r.WorkplaceID]; !ok {
			order = append(order, r.WorkplaceID)
		}
		grouped[r.WorkplaceID] = append(grouped[r.WorkplaceID], r)
	}
	return order, grouped
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
