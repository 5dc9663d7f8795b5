package closeout

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/closeout/backend/internal/domain/integration"
	"github.com/closeout/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Source identifies who produced a ledger record
type Source string

const (
	// SourceAgora marks records written by a vendor sync run
	SourceAgora Source = "agora"
	// SourceManual marks records created by an administrator
	SourceManual Source = "manual"
)

// IsValid returns true if the source is known
func (s Source) IsValid() bool {
	return s == SourceAgora || s == SourceManual
}

// DefaultWorkplaceID is used when a vendor document carries no resolvable workplace
const DefaultWorkplaceID = "0"

// sortKeySeparator joins the parts of the composite sort key
const sortKeySeparator = "#"

// Amounts holds the monetary totals of a closeout. A nil field means the
// vendor did not report it.
type Amounts struct {
	Gross     *decimal.Decimal
	Net       *decimal.Decimal
	Vat       *decimal.Decimal
	Surcharge *decimal.Decimal
}

// DocumentRange summarises one series of fiscal documents issued during the closeout
type DocumentRange struct {
	Series      string
	FirstNumber int64
	LastNumber  int64
	Count       int64
	Amount      decimal.Decimal
}

// RecordKey is the storage key of a ledger record
type RecordKey struct {
	WorkplaceID string
	SortKey     string
}

// String returns "workplace / sortKey"
func (k RecordKey) String() string {
	return k.WorkplaceID + " / " + k.SortKey
}

// SalesCloseout is the canonical ledger entity: one settled till or workplace
// period for a business day.
type SalesCloseout struct {
	WorkplaceID   string
	WorkplaceName string
	BusinessDay   string
	// PosID is empty for records without till granularity
	PosID          string
	PosName        string
	SequenceNumber int64
	OpenDate       *time.Time
	CloseDate      *time.Time
	Amounts        Amounts

	InvoicePayments      []PaymentLine
	Documents            []DocumentRange
	TicketPayments       []PaymentLine
	DeliveryNotePayments []PaymentLine
	SalesOrderPayments   []PaymentLine

	Source    Source
	CreatedAt time.Time
	UpdatedAt time.Time

	// StoredSortKey is the sort key the row was read under; empty for
	// records that have not been stored yet
	StoredSortKey string
}

// BuildSortKey composes the sort key from its parts.
//
//	day                 no till, no sequence
//	day#seq             no till, sequence known
//	day#pos             till, no sequence
//	day#pos#seq         till and sequence
func BuildSortKey(businessDay, posID string, sequence int64) string {
	parts := []string{businessDay}
	if posID != "" {
		parts = append(parts, posID)
	}
	if sequence > 0 {
		parts = append(parts, strconv.FormatInt(sequence, 10))
	}
	return strings.Join(parts, sortKeySeparator)
}

// SortKeyDayPrefix returns the prefix shared by all sort keys of a business day
func SortKeyDayPrefix(businessDay string) string {
	return businessDay
}

// SortKey returns the composite sort key of the record
func (r *SalesCloseout) SortKey() string {
	return BuildSortKey(r.BusinessDay, r.PosID, r.SequenceNumber)
}

// Key returns the storage key of the record, preferring the key it was read under
func (r *SalesCloseout) Key() RecordKey {
	sk := r.StoredSortKey
	if sk == "" {
		sk = r.SortKey()
	}
	return RecordKey{WorkplaceID: r.WorkplaceID, SortKey: sk}
}

// HasKey reports whether the record has a resolvable composite key
func (r *SalesCloseout) HasKey() bool {
	return strings.TrimSpace(r.WorkplaceID) != "" && integration.IsBusinessDay(r.BusinessDay)
}

// BusinessKey identifies the business fact a record describes, independent of
// how its sort key was spelled when it was written.
func (r *SalesCloseout) BusinessKey() string {
	return fmt.Sprintf("%s|%s|%s|%d", r.WorkplaceID, r.BusinessDay, r.PosID, r.SequenceNumber)
}

// InRange reports whether the business day falls inside [from, to]. Empty bounds are open.
func (r *SalesCloseout) InRange(from, to string) bool {
	if from != "" && r.BusinessDay < from {
		return false
	}
	if to != "" && r.BusinessDay > to {
		return false
	}
	return true
}

// Validate checks the invariants of a record before it is stored
func (r *SalesCloseout) Validate() error {
	if strings.TrimSpace(r.WorkplaceID) == "" {
		return shared.NewDomainError("INVALID_INPUT", "Workplace ID cannot be empty")
	}
	if !integration.IsBusinessDay(r.BusinessDay) {
		return shared.NewDomainError("INVALID_INPUT", "Business day must be formatted as YYYY-MM-DD")
	}
	if _, err := time.Parse(time.DateOnly, r.BusinessDay); err != nil {
		return shared.NewDomainError("INVALID_INPUT", "Business day is not a calendar date")
	}
	if r.SequenceNumber < 0 {
		return shared.NewDomainError("INVALID_INPUT", "Sequence number cannot be negative")
	}
	if !r.Source.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", "Source must be agora or manual")
	}
	if r.OpenDate != nil && r.CloseDate != nil && r.CloseDate.Before(*r.OpenDate) {
		return shared.NewDomainError("INVALID_INPUT", "Close date cannot be before open date")
	}
	for _, line := range r.InvoicePayments {
		if strings.TrimSpace(line.MethodName) == "" {
			return shared.NewDomainError("INVALID_INPUT", "Payment method name cannot be empty")
		}
	}
	return nil
}

// MissingFields lists the fillable attributes that are absent
func (r *SalesCloseout) MissingFields() []string {
	var missing []string
	if r.WorkplaceName == "" {
		missing = append(missing, "workplaceName")
	}
	if r.PosID != "" && r.PosName == "" {
		missing = append(missing, "posName")
	}
	if r.Amounts.Gross == nil {
		missing = append(missing, "amounts")
	}
	if r.OpenDate == nil || r.CloseDate == nil {
		missing = append(missing, "dates")
	}
	if len(r.InvoicePayments) == 0 {
		missing = append(missing, "invoicePayments")
	}
	if len(r.Documents) == 0 {
		missing = append(missing, "documents")
	}
	return missing
}

// NeedsVendorData reports whether filling the record requires re-fetching vendor feeds
func (r *SalesCloseout) NeedsVendorData() bool {
	return r.WorkplaceName == "" || r.Amounts.Gross == nil || r.OpenDate == nil || r.CloseDate == nil ||
		len(r.InvoicePayments) == 0 || len(r.Documents) == 0
}

// FillMissingFrom copies attributes from other that are absent on r. Populated
// attributes are never overwritten. It returns true if anything changed.
func (r *SalesCloseout) FillMissingFrom(other *SalesCloseout) bool {
	if other == nil {
		return false
	}
	changed := false

	if r.WorkplaceName == "" && other.WorkplaceName != "" {
		r.WorkplaceName = other.WorkplaceName
		changed = true
	}
	if r.PosName == "" && other.PosName != "" {
		r.PosName = other.PosName
		changed = true
	}
	if r.OpenDate == nil && other.OpenDate != nil {
		t := *other.OpenDate
		r.OpenDate = &t
		changed = true
	}
	if r.CloseDate == nil && other.CloseDate != nil {
		t := *other.CloseDate
		r.CloseDate = &t
		changed = true
	}

	changed = fillAmount(&r.Amounts.Gross, other.Amounts.Gross) || changed
	changed = fillAmount(&r.Amounts.Net, other.Amounts.Net) || changed
	changed = fillAmount(&r.Amounts.Vat, other.Amounts.Vat) || changed
	changed = fillAmount(&r.Amounts.Surcharge, other.Amounts.Surcharge) || changed

	if len(r.InvoicePayments) == 0 && len(other.InvoicePayments) > 0 {
		r.InvoicePayments = append([]PaymentLine(nil), other.InvoicePayments...)
		changed = true
	}
	if len(r.Documents) == 0 && len(other.Documents) > 0 {
		r.Documents = append([]DocumentRange(nil), other.Documents...)
		changed = true
	}
	if len(r.TicketPayments) == 0 && len(other.TicketPayments) > 0 {
		r.TicketPayments = append([]PaymentLine(nil), other.TicketPayments...)
		changed = true
	}
	if len(r.DeliveryNotePayments) == 0 && len(other.DeliveryNotePayments) > 0 {
		r.DeliveryNotePayments = append([]PaymentLine(nil), other.DeliveryNotePayments...)
		changed = true
	}
	if len(r.SalesOrderPayments) == 0 && len(other.SalesOrderPayments) > 0 {
		r.SalesOrderPayments = append([]PaymentLine(nil), other.SalesOrderPayments...)
		changed = true
	}
	return changed
}

func fillAmount(dst **decimal.Decimal, src *decimal.Decimal) bool {
	if *dst != nil || src == nil {
		return false
	}
	v := *src
	*dst = &v
	return true
}

// Touch sets UpdatedAt, and CreatedAt when the record is new
func (r *SalesCloseout) Touch(now time.Time) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
}
