package docops

import (
	"time"

	json "github.com/goccy/go-json"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

const dateKey = "$date"

// DecodeDate reads an extended JSON date, {"$date": <unix millis>} or
// {"$date": "<RFC 3339>"}.
func DecodeDate(m map[string]any) (time.Time, bool) {
	if len(m) != 1 {
		return time.Time{}, false
	}
	raw, ok := m[dateKey]
	if !ok {
		return time.Time{}, false
	}
	if s, ok := raw.(string); ok {
		ts, err := time.Parse(time.RFC3339Nano, s)
		return ts.UTC(), err == nil
	}
	if f, ok := ToFloat(raw); ok {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	return time.Time{}, false
}

// ToExtended returns a copy of v with every time.Time replaced by its
// extended JSON form.
func ToExtended(v any) any {
	switch t := v.(type) {
	case time.Time:
		return map[string]any{dateKey: t.UnixMilli()}
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = ToExtended(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = ToExtended(e)
		}
		return out
	}
	return v
}

// FromExtended reverses ToExtended in place and returns the result.
func FromExtended(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if ts, ok := DecodeDate(t); ok {
			return ts
		}
		for k, e := range t {
			t[k] = FromExtended(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = FromExtended(e)
		}
		return t
	}
	return v
}

// MarshalDocument encodes d as extended JSON.
func MarshalDocument(d domain.Document) ([]byte, error) {
	return json.Marshal(ToExtended(map[string]any(d)))
}

// UnmarshalDocument decodes extended JSON produced by MarshalDocument.
func UnmarshalDocument(data []byte) (domain.Document, error) {
	var d domain.Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	FromExtended(d)
	return d, nil
}
