package integration

import (
	"context"
	"errors"
	"regexp"
)

// ---------------------------------------------------------------------------
// Vendor Feed Errors
// ---------------------------------------------------------------------------

var (
	// ErrVendorNotConfigured is returned when the vendor client lacks a base URL or token
	ErrVendorNotConfigured = errors.New("integration: vendor not configured")
	// ErrVendorUnavailable is returned after the retry budget is exhausted on 5xx or transport failures
	ErrVendorUnavailable = errors.New("integration: vendor temporarily unavailable")
	// ErrVendorRejected is returned for 4xx responses (bad token, bad parameters); never retried
	ErrVendorRejected = errors.New("integration: vendor rejected request")
	// ErrVendorInvalidResponse is returned when the body is not decodable JSON
	ErrVendorInvalidResponse = errors.New("integration: invalid vendor response")
	// ErrInvalidFeedType is returned for unknown feed types
	ErrInvalidFeedType = errors.New("integration: invalid feed type")
	// ErrInvalidBusinessDay is returned when a business day is not YYYY-MM-DD
	ErrInvalidBusinessDay = errors.New("integration: business day must be YYYY-MM-DD")
)

// ---------------------------------------------------------------------------
// FeedType identifies one of the vendor export shapes
// ---------------------------------------------------------------------------

// FeedType represents a vendor export feed
type FeedType string

const (
	// FeedTypeInvoices is the per-invoice export
	FeedTypeInvoices FeedType = "Invoices"
	// FeedTypeSystemCloseOuts is the per-workplace system closeout export
	FeedTypeSystemCloseOuts FeedType = "SystemCloseOuts"
	// FeedTypePosCloseOuts is the per-till POS closeout export
	FeedTypePosCloseOuts FeedType = "PosCloseOuts"
)

// AllFeedTypes lists feeds in source-priority order
var AllFeedTypes = []FeedType{FeedTypeInvoices, FeedTypeSystemCloseOuts, FeedTypePosCloseOuts}

// IsValid returns true if the feed type is known
func (f FeedType) IsValid() bool {
	switch f {
	case FeedTypeInvoices, FeedTypeSystemCloseOuts, FeedTypePosCloseOuts:
		return true
	default:
		return false
	}
}

// String returns the string representation of FeedType
func (f FeedType) String() string {
	return string(f)
}

var businessDayPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// IsBusinessDay reports whether s has the YYYY-MM-DD shape
func IsBusinessDay(s string) bool {
	return businessDayPattern.MatchString(s)
}

// FeedRequest describes one fetch of a vendor feed
type FeedRequest struct {
	// Feed is the export shape to fetch
	Feed FeedType
	// BusinessDay is the vendor accounting date (YYYY-MM-DD)
	BusinessDay string
	// WorkplaceIDs optionally restricts the export to some workplaces
	WorkplaceIDs []string
}

// Validate validates the request
func (r *FeedRequest) Validate() error {
	if !r.Feed.IsValid() {
		return ErrInvalidFeedType
	}
	if !IsBusinessDay(r.BusinessDay) {
		return ErrInvalidBusinessDay
	}
	return nil
}

// ---------------------------------------------------------------------------
// VendorFeedClient Port
// ---------------------------------------------------------------------------

// VendorFeedClient is the port to the hospitality back-office export API.
// Implementations return the feed's top-level array as weakly typed documents.
type VendorFeedClient interface {
	// FetchFeed fetches one feed for a business day.
	// Transient failures surface as ErrVendorUnavailable once retries are exhausted,
	// client errors as ErrVendorRejected.
	FetchFeed(ctx context.Context, req *FeedRequest) ([]*Document, error)
}
