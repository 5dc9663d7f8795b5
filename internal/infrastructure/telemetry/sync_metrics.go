package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	closeoutapp "github.com/closeout/backend/internal/application/closeout"
)

// Metric names of the sync pipeline
const (
	MetricRecordsFetched  = "closeout_records_fetched_total"
	MetricRecordsUpserted = "closeout_records_upserted_total"
	MetricRecordsSkipped  = "closeout_records_skipped_total"
	MetricRecordsDeleted  = "closeout_records_deleted_total"
	MetricDayErrors       = "closeout_sync_day_errors_total"
)

// Ensure SyncMetrics implements closeoutapp.SyncMetrics
var _ closeoutapp.SyncMetrics = (*SyncMetrics)(nil)

// SyncMetrics records the counters of closeout sync runs.
// Fetched records are tagged by feed, written and skipped records by the
// feed that sourced them.
type SyncMetrics struct {
	logger *zap.Logger

	recordsFetched  *Counter
	recordsUpserted *Counter
	recordsSkipped  *Counter
	recordsDeleted  *Counter
	dayErrors       *Counter
}

// SyncMetricsConfig holds configuration for sync metrics.
type SyncMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewSyncMetrics creates a new SyncMetrics instance.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{logger: logger}

	counters := []struct {
		dst         **Counter
		name        string
		description string
	}{
		{&sm.recordsFetched, MetricRecordsFetched, "Raw vendor records fetched"},
		{&sm.recordsUpserted, MetricRecordsUpserted, "Ledger records written"},
		{&sm.recordsSkipped, MetricRecordsSkipped, "Mapped records rejected by validation"},
		{&sm.recordsDeleted, MetricRecordsDeleted, "Ledger records deleted as stale, duplicate or out of range"},
		{&sm.dayErrors, MetricDayErrors, "Business days whose sync failed"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.description, "{record}")
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	return sm, nil
}

// RecordFetched counts raw records fetched from a feed
func (sm *SyncMetrics) RecordFetched(ctx context.Context, feed string, n int) {
	if n > 0 {
		sm.recordsFetched.Add(ctx, int64(n), AttrFeed.String(feed))
	}
}

// RecordUpserted counts records written for a source
func (sm *SyncMetrics) RecordUpserted(ctx context.Context, source string, n int) {
	if n > 0 {
		sm.recordsUpserted.Add(ctx, int64(n), AttrSource.String(source))
	}
}

// RecordSkipped counts records dropped by validation for a source
func (sm *SyncMetrics) RecordSkipped(ctx context.Context, source string, n int) {
	if n > 0 {
		sm.recordsSkipped.Add(ctx, int64(n), AttrSource.String(source))
	}
}

// RecordDeleted counts deleted ledger rows
func (sm *SyncMetrics) RecordDeleted(ctx context.Context, n int) {
	if n > 0 {
		sm.recordsDeleted.Add(ctx, int64(n))
	}
}

// RecordDayError counts a failed business day
func (sm *SyncMetrics) RecordDayError(ctx context.Context) {
	sm.dayErrors.Inc(ctx)
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
