package closeout

import (
	"time"

	"github.com/closeout/backend/internal/domain/closeout"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// SyncDayRequest triggers a single-day sync
type SyncDayRequest struct {
	BusinessDay  string   `json:"business_day" validate:"required,datetime=2006-01-02"`
	WorkplaceIDs []string `json:"workplace_ids,omitempty" validate:"omitempty,dive,required"`
	// Validate rejects raw records failing the pre-mapping checks
	Validate bool `json:"validate"`
}

// FullSyncRequest triggers a date-range sync
type FullSyncRequest struct {
	DateFrom         string `json:"date_from" validate:"required,datetime=2006-01-02"`
	DateTo           string `json:"date_to" validate:"required,datetime=2006-01-02"`
	DeleteOutOfRange bool   `json:"delete_out_of_range"`
}

// CompleteFieldsRequest triggers the fill-missing-fields maintenance pass
type CompleteFieldsRequest struct {
	Limit       int    `json:"limit" validate:"omitempty,min=1,max=10000"`
	DateFrom    string `json:"date_from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DateTo      string `json:"date_to,omitempty" validate:"omitempty,datetime=2006-01-02"`
	WorkplaceID string `json:"workplace_id,omitempty"`
}

// PaymentLineInput is one payment line of a manual record
type PaymentLineInput struct {
	MethodName string          `json:"method_name" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
}

// CreateManualRequest creates an administrator-entered ledger record
type CreateManualRequest struct {
	WorkplaceID     string             `json:"workplace_id" validate:"required"`
	WorkplaceName   string             `json:"workplace_name,omitempty"`
	BusinessDay     string             `json:"business_day" validate:"required,datetime=2006-01-02"`
	PosID           string             `json:"pos_id,omitempty"`
	PosName         string             `json:"pos_name,omitempty"`
	SequenceNumber  int64              `json:"sequence_number" validate:"min=0"`
	OpenDate        *time.Time         `json:"open_date,omitempty"`
	CloseDate       *time.Time         `json:"close_date,omitempty"`
	Gross           *decimal.Decimal   `json:"gross,omitempty"`
	Net             *decimal.Decimal   `json:"net,omitempty"`
	Vat             *decimal.Decimal   `json:"vat,omitempty"`
	Surcharge       *decimal.Decimal   `json:"surcharge,omitempty"`
	InvoicePayments []PaymentLineInput `json:"invoice_payments,omitempty" validate:"omitempty,dive"`
}

// ---------------------------------------------------------------------------
// Result DTOs
// ---------------------------------------------------------------------------

// SyncDayResult reports the outcome of one day
type SyncDayResult struct {
	RunID       string   `json:"run_id"`
	BusinessDay string   `json:"business_day"`
	Source      string   `json:"source"`
	Fetched     int      `json:"fetched"`
	Upserted    int      `json:"upserted"`
	Skipped     int      `json:"skipped"`
	Deleted     int      `json:"deleted"`
	Workplaces  []string `json:"workplaces"`
}

// DayError is a per-day failure collected by a range sync
type DayError struct {
	BusinessDay string `json:"business_day"`
	Error       string `json:"error"`
}

// FullSyncResult reports the outcome of a date-range sync
type FullSyncResult struct {
	RunID             string     `json:"run_id"`
	DateFrom          string     `json:"date_from"`
	DateTo            string     `json:"date_to"`
	Days              int        `json:"days"`
	Fetched           int        `json:"fetched"`
	Upserted          int        `json:"upserted"`
	Skipped           int        `json:"skipped"`
	Deleted           int        `json:"deleted"`
	OutOfRangeDeleted int        `json:"out_of_range_deleted"`
	DuplicatesDeleted int        `json:"duplicates_deleted"`
	Errors            []DayError `json:"errors"`
}

// CompleteFieldsResult reports the outcome of the maintenance pass
type CompleteFieldsResult struct {
	RunID   string   `json:"run_id"`
	Scanned int      `json:"scanned"`
	Fetched int      `json:"fetched"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// PaymentLineResponse is one payment line in responses
type PaymentLineResponse struct {
	MethodName string          `json:"method_name"`
	Amount     decimal.Decimal `json:"amount"`
}

// RecordResponse represents a ledger record in responses
type RecordResponse struct {
	WorkplaceID     string                `json:"workplace_id"`
	SortKey         string                `json:"sort_key"`
	BusinessDay     string                `json:"business_day"`
	WorkplaceName   string                `json:"workplace_name,omitempty"`
	PosID           string                `json:"pos_id,omitempty"`
	PosName         string                `json:"pos_name,omitempty"`
	SequenceNumber  int64                 `json:"sequence_number"`
	Gross           *decimal.Decimal      `json:"gross,omitempty"`
	InvoicePayments []PaymentLineResponse `json:"invoice_payments"`
	Source          closeout.Source       `json:"source"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// ToRecordResponse converts a domain SalesCloseout to a response DTO
func ToRecordResponse(r *closeout.SalesCloseout) RecordResponse {
	payments := make([]PaymentLineResponse, len(r.InvoicePayments))
	for i, line := range r.InvoicePayments {
		payments[i] = PaymentLineResponse{MethodName: line.MethodName, Amount: line.Amount}
	}
	return RecordResponse{
		WorkplaceID:     r.WorkplaceID,
		SortKey:         r.SortKey(),
		BusinessDay:     r.BusinessDay,
		WorkplaceName:   r.WorkplaceName,
		PosID:           r.PosID,
		PosName:         r.PosName,
		SequenceNumber:  r.SequenceNumber,
		Gross:           r.Amounts.Gross,
		InvoicePayments: payments,
		Source:          r.Source,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}
