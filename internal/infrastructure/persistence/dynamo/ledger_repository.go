package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/closeout/backend/internal/domain/closeout"
)

// maxBatchWriteItems is the DynamoDB limit of requests per BatchWriteItem call
const maxBatchWriteItems = 25

// Ensure LedgerRepository implements closeout.LedgerRepository
var _ closeout.LedgerRepository = (*LedgerRepository)(nil)

// LedgerRepository implements closeout.LedgerRepository on a DynamoDB table
// keyed by workplaceId (partition) and sortKey (sort).
type LedgerRepository struct {
	api          API
	table        string
	logger       *zap.Logger
	batchRetries uint64
	retryBase    time.Duration
}

// LedgerOption configures a LedgerRepository
type LedgerOption func(*LedgerRepository)

// WithLedgerLogger sets the logger
func WithLedgerLogger(l *zap.Logger) LedgerOption {
	return func(r *LedgerRepository) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithBatchRetry sets how often unprocessed batch items are resubmitted and
// the initial backoff between attempts
func WithBatchRetry(retries int, base time.Duration) LedgerOption {
	return func(r *LedgerRepository) {
		if retries >= 0 {
			r.batchRetries = uint64(retries)
		}
		if base > 0 {
			r.retryBase = base
		}
	}
}

// NewLedgerRepository creates a new LedgerRepository
func NewLedgerRepository(api API, table string, opts ...LedgerOption) *LedgerRepository {
	r := &LedgerRepository{
		api:          api,
		table:        table,
		logger:       zap.NewNop(),
		batchRetries: 5,
		retryBase:    100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SaveBatch writes records in chunks of 25. Records sharing a key within one
// call collapse to the last one, since a batch may not address a key twice.
func (r *LedgerRepository) SaveBatch(ctx context.Context, records []*closeout.SalesCloseout) error {
	if len(records) == 0 {
		return nil
	}

	index := make(map[closeout.RecordKey]int, len(records))
	requests := make([]types.WriteRequest, 0, len(records))
	for _, rec := range records {
		av, err := marshalRecord(rec)
		if err != nil {
			return err
		}
		req := types.WriteRequest{PutRequest: &types.PutRequest{Item: av}}
		if i, ok := index[rec.Key()]; ok {
			requests[i] = req
			continue
		}
		index[rec.Key()] = len(requests)
		requests = append(requests, req)
	}
	return r.writeAll(ctx, requests)
}

// DeleteBatch removes rows by key in chunks of 25
func (r *LedgerRepository) DeleteBatch(ctx context.Context, keys []closeout.RecordKey) error {
	if len(keys) == 0 {
		return nil
	}
	seen := make(map[closeout.RecordKey]bool, len(keys))
	requests := make([]types.WriteRequest, 0, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: keyAttributes(k)}})
	}
	return r.writeAll(ctx, requests)
}

func (r *LedgerRepository) writeAll(ctx context.Context, requests []types.WriteRequest) error {
	for start := 0; start < len(requests); start += maxBatchWriteItems {
		end := min(start+maxBatchWriteItems, len(requests))
		if err := r.writeChunk(ctx, requests[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// writeChunk submits one batch and resubmits unprocessed items with
// exponential backoff until none remain or the retry budget is spent.
func (r *LedgerRepository) writeChunk(ctx context.Context, chunk []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{r.table: chunk}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.retryBase
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, r.batchRetries), ctx)

	operation := func() error {
		out, err := r.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: %v", closeout.ErrLedgerWriteFailed, err))
		}
		if len(out.UnprocessedItems[r.table]) == 0 {
			return nil
		}
		pending = out.UnprocessedItems
		return fmt.Errorf("%w: %d unprocessed items", closeout.ErrLedgerWriteFailed, len(pending[r.table]))
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("Ledger batch write incomplete, retrying",
			zap.Int("unprocessed", len(pending[r.table])),
			zap.Duration("wait", wait),
		)
	}

	if err := backoff.RetryNotify(operation, retry, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// FindByDay returns every row of a workplace whose sort key starts with the business day
func (r *LedgerRepository) FindByDay(ctx context.Context, workplaceID, businessDay string) ([]*closeout.SalesCloseout, error) {
	keyCond := expression.Key(attrWorkplaceID).Equal(expression.Value(workplaceID)).
		And(expression.Key(attrSortKey).BeginsWith(closeout.SortKeyDayPrefix(businessDay)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("dynamo: failed to build query: %w", err)
	}

	var out []*closeout.SalesCloseout
	err = r.query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, func(rec *closeout.SalesCloseout) bool {
		out = append(out, rec)
		return true
	})
	return out, err
}

// FindByKey returns one row, or closeout.ErrRecordNotFound
func (r *LedgerRepository) FindByKey(ctx context.Context, key closeout.RecordKey) (*closeout.SalesCloseout, error) {
	out, err := r.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       keyAttributes(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", closeout.ErrLedgerReadFailed, err)
	}
	if len(out.Item) == 0 {
		return nil, closeout.ErrRecordNotFound
	}
	return unmarshalRecord(out.Item)
}

// Scan visits rows matching the filter until fn returns false or the
// filter limit is reached. A workplace filter turns the scan into a
// partition query.
func (r *LedgerRepository) Scan(ctx context.Context, filter closeout.ScanFilter, fn func(*closeout.SalesCloseout) bool) error {
	visited := 0
	visit := func(rec *closeout.SalesCloseout) bool {
		if filter.Limit > 0 && visited >= filter.Limit {
			return false
		}
		visited++
		return fn(rec) && (filter.Limit == 0 || visited < filter.Limit)
	}

	dayCond, hasDayCond := dayRangeCondition(filter.DateFrom, filter.DateTo)

	if filter.WorkplaceID != "" {
		builder := expression.NewBuilder().
			WithKeyCondition(expression.Key(attrWorkplaceID).Equal(expression.Value(filter.WorkplaceID)))
		if hasDayCond {
			builder = builder.WithFilter(dayCond)
		}
		expr, err := builder.Build()
		if err != nil {
			return fmt.Errorf("dynamo: failed to build query: %w", err)
		}
		return r.query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.table),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}, visit)
	}

	input := &dynamodb.ScanInput{TableName: aws.String(r.table)}
	if hasDayCond {
		expr, err := expression.NewBuilder().WithFilter(dayCond).Build()
		if err != nil {
			return fmt.Errorf("dynamo: failed to build scan: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	paginator := dynamodb.NewScanPaginator(r.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return readError(err)
		}
		cont, err := visitItems(page.Items, visit)
		if err != nil || !cont {
			return err
		}
	}
	return nil
}

func (r *LedgerRepository) query(ctx context.Context, input *dynamodb.QueryInput, fn func(*closeout.SalesCloseout) bool) error {
	paginator := dynamodb.NewQueryPaginator(r.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return readError(err)
		}
		cont, err := visitItems(page.Items, fn)
		if err != nil || !cont {
			return err
		}
	}
	return nil
}

func visitItems(items []map[string]types.AttributeValue, fn func(*closeout.SalesCloseout) bool) (bool, error) {
	for _, item := range items {
		rec, err := unmarshalRecord(item)
		if err != nil {
			return false, err
		}
		if !fn(rec) {
			return false, nil
		}
	}
	return true, nil
}

// dayRangeCondition builds the business day filter; empty bounds are open
func dayRangeCondition(from, to string) (expression.ConditionBuilder, bool) {
	day := expression.Name(attrBusinessDay)
	switch {
	case from != "" && to != "":
		return day.Between(expression.Value(from), expression.Value(to)), true
	case from != "":
		return day.GreaterThanEqual(expression.Value(from)), true
	case to != "":
		return day.LessThanEqual(expression.Value(to)), true
	default:
		return expression.ConditionBuilder{}, false
	}
}

func readError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", closeout.ErrLedgerReadFailed, err)
}
