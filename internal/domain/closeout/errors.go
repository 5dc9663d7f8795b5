package closeout

import "errors"

var (
	// ErrRecordNotFound is returned when no ledger row matches a key
	ErrRecordNotFound = errors.New("closeout: record not found")
	// ErrLedgerWriteFailed is returned when a batch still has unprocessed items after retries
	ErrLedgerWriteFailed = errors.New("closeout: ledger write failed")
	// ErrLedgerReadFailed wraps store errors on query and scan
	ErrLedgerReadFailed = errors.New("closeout: ledger read failed")
)
