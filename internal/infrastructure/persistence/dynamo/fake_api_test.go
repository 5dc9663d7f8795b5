package dynamo

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeAPI is a scripted DynamoDB API. Writes apply to an in-memory table;
// queries and scans return the configured pages in order.
type fakeAPI struct {
	mu sync.Mutex

	rows map[string]map[string]types.AttributeValue

	pages      [][]map[string]types.AttributeValue
	queries    []*dynamodb.QueryInput
	scans      []*dynamodb.ScanInput
	readErr    error
	batchCalls []int

	// unprocessedRounds is the number of batch calls that hand back their last request unprocessed
	unprocessedRounds int
	batchErr          error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{rows: make(map[string]map[string]types.AttributeValue)}
}

func rowID(item map[string]types.AttributeValue) string {
	return stringAttr(item, attrWorkplaceID) + "|" + stringAttr(item, attrSortKey)
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if s, ok := item[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeAPI) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return &dynamodb.GetItemOutput{Item: f.rows[rowID(in.Key)]}, nil
}

func (f *fakeAPI) page(start map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue) {
	idx := 0
	if n, ok := start["page"].(*types.AttributeValueMemberN); ok {
		idx, _ = strconv.Atoi(n.Value)
	}
	if idx >= len(f.pages) {
		return nil, nil
	}
	var next map[string]types.AttributeValue
	if idx+1 < len(f.pages) {
		next = map[string]types.AttributeValue{"page": &types.AttributeValueMemberN{Value: strconv.Itoa(idx + 1)}}
	}
	return f.pages[idx], next
}

func (f *fakeAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, in)
	if f.readErr != nil {
		return nil, f.readErr
	}
	items, next := f.page(in.ExclusiveStartKey)
	return &dynamodb.QueryOutput{Items: items, LastEvaluatedKey: next}, nil
}

func (f *fakeAPI) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans = append(f.scans, in)
	if f.readErr != nil {
		return nil, f.readErr
	}
	items, next := f.page(in.ExclusiveStartKey)
	return &dynamodb.ScanOutput{Items: items, LastEvaluatedKey: next}, nil
}

func (f *fakeAPI) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.batchErr != nil {
		return nil, f.batchErr
	}

	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	for table, reqs := range in.RequestItems {
		if len(reqs) > maxBatchWriteItems {
			return nil, errors.New("ValidationException: too many items")
		}
		f.batchCalls = append(f.batchCalls, len(reqs))
		if f.unprocessedRounds > 0 && len(reqs) > 0 {
			f.unprocessedRounds--
			out.UnprocessedItems[table] = reqs[len(reqs)-1:]
			reqs = reqs[:len(reqs)-1]
		}
		for _, req := range reqs {
			switch {
			case req.PutRequest != nil:
				f.rows[rowID(req.PutRequest.Item)] = req.PutRequest.Item
			case req.DeleteRequest != nil:
				delete(f.rows, rowID(req.DeleteRequest.Key))
			}
		}
	}
	return out, nil
}

// valueStrings returns the string values bound in an expression
func valueStrings(values map[string]types.AttributeValue) []string {
	var out []string
	for _, v := range values {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			out = append(out, s.Value)
		}
	}
	return out
}
