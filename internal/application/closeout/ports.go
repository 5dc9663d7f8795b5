package closeout

import (
	"context"
	"time"

	"github.com/closeout/backend/internal/domain/integration"
)

// FeedArchive stores the raw vendor payload of each fetched feed
type FeedArchive interface {
	Archive(ctx context.Context, runID, businessDay string, feed integration.FeedType, docs []*integration.Document) error
}

// SyncLocker serialises sync triggers across processes
type SyncLocker interface {
	// Acquire takes the named lock for ttl. It returns shared.ErrSyncInProgress
	// when another holder owns it. The returned func releases the lock.
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, err error)
}

// SaleCenterDirectory resolves till ids to display names
type SaleCenterDirectory interface {
	Names(ctx context.Context) (map[string]string, error)
}

// SyncMetrics records pipeline counters
type SyncMetrics interface {
	RecordFetched(ctx context.Context, feed string, n int)
	RecordUpserted(ctx context.Context, source string, n int)
	RecordSkipped(ctx context.Context, source string, n int)
	RecordDeleted(ctx context.Context, n int)
	RecordDayError(ctx context.Context)
}

type noopMetrics struct{}

func (noopMetrics) RecordFetched(context.Context, string, int)  {}
func (noopMetrics) RecordUpserted(context.Context, string, int) {}
func (noopMetrics) RecordSkipped(context.Context, string, int)  {}
func (noopMetrics) RecordDeleted(context.Context, int)          {}
func (noopMetrics) RecordDayError(context.Context)              {}
