package closeout

import "context"

// ScanFilter bounds a ledger scan
type ScanFilter struct {
	// WorkplaceID restricts the scan to one partition when set
	WorkplaceID string
	// DateFrom and DateTo bound the business day (inclusive) when set
	DateFrom string
	DateTo   string
	// Limit caps the number of visited records; zero means unbounded
	Limit int
}

// LedgerRepository defines the interface for closeout ledger persistence
type LedgerRepository interface {
	// SaveBatch writes records, overwriting any row with the same key
	SaveBatch(ctx context.Context, records []*SalesCloseout) error

	// DeleteBatch removes rows by key; missing keys are ignored
	DeleteBatch(ctx context.Context, keys []RecordKey) error

	// FindByDay returns every row of a workplace whose sort key starts with the business day
	FindByDay(ctx context.Context, workplaceID, businessDay string) ([]*SalesCloseout, error)

	// FindByKey returns one row, or ErrRecordNotFound
	FindByKey(ctx context.Context, key RecordKey) (*SalesCloseout, error)

	// Scan visits rows matching the filter until fn returns false
	Scan(ctx context.Context, filter ScanFilter, fn func(*SalesCloseout) bool) error
}

// SaleCenterRepository reads the companion table of till display names
type SaleCenterRepository interface {
	// FindNames returns till id -> display name
	FindNames(ctx context.Context) (map[string]string, error)
}
