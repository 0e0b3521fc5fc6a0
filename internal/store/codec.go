package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// timeKey tags a JSON object that carries a timestamp, so times survive a
// round trip through backends that persist fields as JSON text.
const timeKey = "$time"

func encodeFields(f Fields) ([]byte, error) {
	return json.Marshal(encodeValue(map[string]any(f)))
}

func encodeValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return map[string]any{timeKey: x.UTC().Format(time.RFC3339Nano)}
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = encodeValue(e)
		}
		return out
	case Fields:
		return encodeValue(map[string]any(x))
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = encodeValue(e)
		}
		return out
	default:
		return v
	}
}

func decodeFields(data []byte) (Fields, error) {
	if len(data) == 0 {
		return Fields{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	out := make(Fields, len(raw))
	for k, v := range raw {
		out[k] = decodeValue(v)
	}
	return out, nil
}

func decodeValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		if s, ok := x[timeKey].(string); ok && len(x) == 1 {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t.UTC()
			}
		}
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = decodeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = decodeValue(e)
		}
		return out
	default:
		return v
	}
}
