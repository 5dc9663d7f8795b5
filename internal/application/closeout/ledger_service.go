package closeout

import (
	"context"
	"errors"
	"time"

	"github.com/closeout/backend/internal/domain/closeout"
	"go.uber.org/zap"
)

// LedgerService provides administrative operations on individual ledger records
type LedgerService struct {
	ledger closeout.LedgerRepository
	now    func() time.Time
	logger *zap.Logger
}

// NewLedgerService creates a new LedgerService; nil now uses time.Now
func NewLedgerService(ledger closeout.LedgerRepository, now func() time.Time, logger *zap.Logger) *LedgerService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{ledger: ledger, now: now, logger: logger}
}

// CreateManual stores an administrator-entered record, overwriting any row
// with the same key. Payments are put in canonical order and a missing gross
// is derived from them.
func (s *LedgerService) CreateManual(ctx context.Context, req CreateManualRequest) (*RecordResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	record := &closeout.SalesCloseout{
		WorkplaceID:    req.WorkplaceID,
		WorkplaceName:  req.WorkplaceName,
		BusinessDay:    req.BusinessDay,
		PosID:          req.PosID,
		PosName:        req.PosName,
		SequenceNumber: req.SequenceNumber,
		OpenDate:       req.OpenDate,
		CloseDate:      req.CloseDate,
		Amounts: closeout.Amounts{
			Gross:     req.Gross,
			Net:       req.Net,
			Vat:       req.Vat,
			Surcharge: req.Surcharge,
		},
		Source: closeout.SourceManual,
	}
	if len(req.InvoicePayments) > 0 {
		lines := make([]closeout.PaymentLine, len(req.InvoicePayments))
		for i, in := range req.InvoicePayments {
			lines[i] = closeout.PaymentLine{MethodName: in.MethodName, Amount: in.Amount}
		}
		record.InvoicePayments = closeout.OrderPayments(lines)
		if record.Amounts.Gross == nil {
			sum := closeout.SumPayments(record.InvoicePayments)
			record.Amounts.Gross = &sum
		}
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.ledger.FindByKey(ctx, record.Key())
	switch {
	case err == nil:
		record.CreatedAt = existing.CreatedAt
	case !errors.Is(err, closeout.ErrRecordNotFound):
		return nil, err
	}
	record.Touch(s.now())

	if err := s.ledger.SaveBatch(ctx, []*closeout.SalesCloseout{record}); err != nil {
		return nil, err
	}
	s.logger.Info("Manual closeout stored",
		zap.String("workplace_id", record.WorkplaceID),
		zap.String("sort_key", record.SortKey()),
	)
	resp := ToRecordResponse(record)
	return &resp, nil
}

// Get returns one record by key
func (s *LedgerService) Get(ctx context.Context, workplaceID, sortKey string) (*RecordResponse, error) {
	record, err := s.ledger.FindByKey(ctx, closeout.RecordKey{WorkplaceID: workplaceID, SortKey: sortKey})
	if err != nil {
		return nil, err
	}
	resp := ToRecordResponse(record)
	return &resp, nil
}

// Delete removes one record by key, returning closeout.ErrRecordNotFound when absent
func (s *LedgerService) Delete(ctx context.Context, workplaceID, sortKey string) error {
	key := closeout.RecordKey{WorkplaceID: workplaceID, SortKey: sortKey}
	if _, err := s.ledger.FindByKey(ctx, key); err != nil {
		return err
	}
	if err := s.ledger.DeleteBatch(ctx, []closeout.RecordKey{key}); err != nil {
		return err
	}
	s.logger.Info("Closeout deleted",
		zap.String("workplace_id", workplaceID),
		zap.String("sort_key", sortKey),
	)
	return nil
}
