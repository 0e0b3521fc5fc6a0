package store

import (
	"encoding/json"
	"maps"
	"time"
)

// Fields is the payload of a document.
type Fields map[string]any

// Increment is a field value that adds to the stored number instead of
// replacing it. A missing field counts as zero.
type Increment int64

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	return maps.Clone(f)
}

// Document is a stored document or the absence of one.
type Document struct {
	Path    Path
	Fields  Fields
	Exists  bool
	Version int64
}

// ID is the document's key within its collection.
func (d Document) ID() string {
	return d.Path.ID()
}

// Has reports whether the field is present.
func (d Document) Has(key string) bool {
	_, ok := d.Fields[key]
	return ok
}

// String returns the field as a string, or "".
func (d Document) String(key string) string {
	if s, ok := d.Fields[key].(string); ok {
		return s
	}
	return ""
}

// Bool returns the field as a bool, or false.
func (d Document) Bool(key string) bool {
	if b, ok := d.Fields[key].(bool); ok {
		return b
	}
	return false
}

// Int returns the field as an int64, or 0.
func (d Document) Int(key string) int64 {
	n, _ := toInt64(d.Fields[key])
	return n
}

// Time returns the field as a time, or the zero time.
func (d Document) Time(key string) time.Time {
	if t, ok := d.Fields[key].(time.Time); ok {
		return t
	}
	return time.Time{}
}

// TimePtr is like Time but returns nil when the field is absent.
func (d Document) TimePtr(key string) *time.Time {
	t, ok := d.Fields[key].(time.Time)
	if !ok {
		return nil
	}
	return &t
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	case Increment:
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		return int64(f), err == nil
	}
	return 0, false
}

// normalize converts values to the canonical in-memory representation:
// integers become int64, floats float64, times UTC.
func normalize(v any) any {
	switch x := v.(type) {
	case int, int8, int16, int32, uint, uint8, uint16, uint32, uint64:
		n, _ := toInt64(x)
		return n
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC()
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC()
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case Fields:
		return normalize(map[string]any(x))
	default:
		return v
	}
}

func normalizeFields(f Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = normalize(v)
	}
	return out
}
