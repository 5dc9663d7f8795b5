package integration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// ErrDocumentNotObject is returned when a JSON value expected to be an object is not one
var ErrDocumentNotObject = errors.New("integration: document is not a JSON object")

// Document is a weakly typed JSON object that keeps its members in the order
// they appeared in the source payload.
//
// Member values are one of: nil, bool, json.Number, string, *Document or []any
// (whose elements follow the same rules). Vendor payloads change shape between
// endpoints and releases, so the pipeline never binds them to closed structs.
type Document struct {
	keys   []string
	values map[string]any
}

// NewDocument creates an empty document
func NewDocument() *Document {
	return &Document{values: make(map[string]any)}
}

// Len returns the number of members
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Keys returns the member names in insertion order
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Get returns the value stored under the exact key
func (d *Document) Get(key string) (any, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.values[key]
	return v, ok
}

// Set stores a value, appending the key if it is new. Numeric Go values are
// normalised to json.Number so documents built in code look like decoded ones.
func (d *Document) Set(key string, value any) *Document {
	if d.values == nil {
		d.values = make(map[string]any)
	}
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = normalizeValue(value)
	return d
}

// Each visits members in insertion order until fn returns false
func (d *Document) Each(fn func(key string, value any) bool) {
	if d == nil {
		return
	}
	for _, k := range d.keys {
		if !fn(k, d.values[k]) {
			return
		}
	}
}

// MarshalJSON encodes the document preserving member order
func (d *Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(d.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving member order
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return err
	}
	doc, ok := v.(*Document)
	if !ok {
		return ErrDocumentNotObject
	}
	*d = *doc
	return nil
}

// DecodeValue decodes any JSON value into the document value model
func DecodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("integration: trailing data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			doc := NewDocument()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("integration: unexpected object key %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				doc.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return doc, nil
		case '[':
			arr := make([]any, 0)
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("integration: unexpected delimiter %q", t)
		}
	default:
		return t, nil
	}
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case int:
		return json.Number(fmt.Sprintf("%d", t))
	case int64:
		return json.Number(fmt.Sprintf("%d", t))
	case float64:
		b, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		return json.Number(b)
	case decimal.Decimal:
		return json.Number(t.String())
	case time.Time:
		return t.Format(time.RFC3339)
	case []*Document:
		arr := make([]any, len(t))
		for i, d := range t {
			arr[i] = d
		}
		return arr
	default:
		return v
	}
}
