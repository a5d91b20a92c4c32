// Package docops holds the document operations shared by the schema
// adapters and the storage engines: cloning, dotted-path access, modifier
// application and equality selector matching.
package docops

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

// Clone deep-copies maps and slices. Other values are returned as is.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneDocument(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	default:
		return v
	}
}

// CloneDocument deep-copies d. A nil document stays nil.
func CloneDocument(d domain.Document) domain.Document {
	if d == nil {
		return nil
	}
	out := make(domain.Document, len(d))
	for k, v := range d {
		out[k] = Clone(v)
	}
	return out
}

// ShallowCopy copies the top level of d.
func ShallowCopy(d domain.Document) domain.Document {
	out := make(domain.Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// SplitPath splits a dotted path into segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Get reads the value at a dotted path. Numeric segments index arrays.
func Get(doc domain.Document, path string) (any, bool) {
	var cur any = doc
	for _, seg := range SplitPath(path) {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set writes value at a dotted path, creating intermediate objects.
func Set(doc domain.Document, path string, value any) {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return
	}
	var cur any = doc
	for i, seg := range segs {
		last := i == len(segs)-1
		switch c := cur.(type) {
		case map[string]any:
			if last {
				c[seg] = value
				return
			}
			next, ok := c[seg]
			if !ok || !isContainer(next) {
				next = map[string]any{}
				c[seg] = next
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return
			}
			if last {
				c[idx] = value
				return
			}
			if !isContainer(c[idx]) {
				c[idx] = map[string]any{}
			}
			cur = c[idx]
		default:
			return
		}
	}
}

// Unset removes the value at a dotted path. Array elements are set to nil.
func Unset(doc domain.Document, path string) {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return
	}
	parent, ok := Get(doc, strings.Join(segs[:len(segs)-1], "."))
	if len(segs) == 1 {
		parent, ok = doc, true
	}
	if !ok {
		return
	}
	last := segs[len(segs)-1]
	switch p := parent.(type) {
	case map[string]any:
		delete(p, last)
	case []any:
		if i, err := strconv.Atoi(last); err == nil && i >= 0 && i < len(p) {
			p[i] = nil
		}
	}
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

// ToFloat converts any Go numeric kind to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Equal compares two JSON-shaped values, treating all numeric kinds alike.
func Equal(a, b any) bool {
	if fa, ok := ToFloat(a); ok {
		fb, ok := ToFloat(b)
		return ok && fa == fb
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			if !Equal(v, bv[k]) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// IsEmpty reports whether d has no keys.
func IsEmpty(d domain.Document) bool {
	return len(d) == 0
}
