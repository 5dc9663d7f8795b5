package agora

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/closeout/backend/internal/domain/integration"
)

// envelopeKeys are the wrapper members the export API has used for the record array
var envelopeKeys = []string{"data", "items", "results", "value", "records"}

// unwrapFeed extracts the record array from a response body. The array may be
// the top-level value or wrapped under the feed name or a generic envelope key.
func unwrapFeed(feed integration.FeedType, body []byte) ([]*integration.Document, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return []*integration.Document{}, nil
	}
	v, err := integration.DecodeValue(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrVendorInvalidResponse, err)
	}

	switch t := v.(type) {
	case nil:
		return []*integration.Document{}, nil
	case []any:
		return documentsOf(t), nil
	case *integration.Document:
		for _, key := range append([]string{feed.String()}, envelopeKeys...) {
			if arr, ok := memberArray(t, key); ok {
				return documentsOf(arr), nil
			}
		}
		return nil, fmt.Errorf("%w: no %s array in response", integration.ErrVendorInvalidResponse, feed)
	default:
		return nil, fmt.Errorf("%w: unexpected %T body", integration.ErrVendorInvalidResponse, v)
	}
}

func memberArray(doc *integration.Document, key string) ([]any, bool) {
	var out []any
	found := false
	doc.Each(func(k string, v any) bool {
		if !strings.EqualFold(k, key) {
			return true
		}
		if arr, ok := v.([]any); ok {
			out, found = arr, true
			return false
		}
		return true
	})
	return out, found
}

// documentsOf keeps the object elements of an array
func documentsOf(arr []any) []*integration.Document {
	out := make([]*integration.Document, 0, len(arr))
	for _, item := range arr {
		if doc, ok := item.(*integration.Document); ok {
			out = append(out, doc)
		}
	}
	return out
}
