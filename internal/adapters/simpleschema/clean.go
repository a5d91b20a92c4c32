package simpleschema

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/docgate/internal/core/docops"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

// Clean implements ports.Schema. Structural steps run first, then
// auto-values and defaults.
func (s *Schema) Clean(target domain.Document, opts ports.CleanOptions) {
	if target == nil {
		return
	}
	modifier := domain.IsModifier(target) || (opts.IsModifier && len(target) == 0)
	if modifier {
		s.cleanModifier(target, opts)
	} else {
		s.cleanMap(target, "", opts)
	}
	if opts.GetAutoValues {
		if modifier {
			s.modifierAutoValues(target, opts)
		} else {
			s.documentAutoValues(target, opts)
		}
	}
}

func (s *Schema) cleanMap(m map[string]any, prefix string, opts ports.CleanOptions) {
	for k, v := range m {
		nv, keep := s.cleanValue(joinPath(prefix, k), v, opts)
		if !keep {
			delete(m, k)
			continue
		}
		m[k] = nv
	}
}

func (s *Schema) cleanValue(path string, v any, opts ports.CleanOptions) (any, bool) {
	gk := genericKey(path)
	if s.inBlackbox(gk) {
		return v, true
	}
	f := s.fields[gk]
	if f == nil {
		return v, !opts.Filter
	}
	if opts.AutoConvert {
		v = convert(f.Type, v)
	}
	switch val := v.(type) {
	case string:
		if opts.TrimStrings && (f.Trim == nil || *f.Trim) {
			val = strings.TrimSpace(val)
		}
		if opts.RemoveEmptyStrings && val == "" {
			return nil, false
		}
		return val, true
	case map[string]any:
		if f.Blackbox || f.Type == Any {
			return val, true
		}
		s.cleanMap(val, path, opts)
		return val, true
	case []any:
		return s.cleanArray(path, val, opts), true
	}
	return v, true
}

func (s *Schema) cleanArray(path string, list []any, opts ports.CleanOptions) []any {
	out := list[:0:0]
	for i, el := range list {
		if el == nil {
			if !opts.RemoveNullsFromArrays {
				out = append(out, nil)
			}
			continue
		}
		if nv, keep := s.cleanValue(joinPath(path, strconv.Itoa(i)), el, opts); keep {
			out = append(out, nv)
		}
	}
	return out
}

func (s *Schema) cleanModifier(mod domain.Document, opts ports.CleanOptions) {
	for op, arg := range mod {
		fields, ok := arg.(map[string]any)
		if !ok {
			continue
		}
		for path, v := range fields {
			allowed := s.AllowsKey(path)
			switch op {
			case domain.OpSet, domain.OpSetOnInsert:
				nv, keep := s.cleanValue(path, v, opts)
				if !keep {
					delete(fields, path)
					continue
				}
				fields[path] = nv
			case domain.OpInc:
				if opts.Filter && !allowed {
					delete(fields, path)
					continue
				}
				if opts.AutoConvert {
					fields[path] = convert(Number, v)
				}
			case domain.OpPush, domain.OpAddToSet:
				if opts.Filter && !allowed {
					delete(fields, path)
					continue
				}
				fields[path] = s.cleanPushArg(path, v, opts)
			default:
				if opts.Filter && !allowed {
					delete(fields, path)
				}
			}
		}
		if len(fields) == 0 {
			delete(mod, op)
		}
	}
}

func (s *Schema) cleanPushArg(path string, v any, opts ports.CleanOptions) any {
	elem := path + ".$"
	if m, ok := v.(map[string]any); ok {
		if each, ok := m["$each"].([]any); ok {
			cleaned := make([]any, 0, len(each))
			for _, el := range each {
				if nv, keep := s.cleanValue(elem, el, opts); keep {
					cleaned = append(cleaned, nv)
				}
			}
			m["$each"] = cleaned
			return m
		}
	}
	if nv, keep := s.cleanValue(elem, v, opts); keep {
		return nv
	}
	return v
}

// convert coerces v toward t when it can be done without losing meaning.
func convert(t Type, v any) any {
	switch t {
	case String:
		switch x := v.(type) {
		case bool:
			return strconv.FormatBool(x)
		case time.Time:
			return x.Format(time.RFC3339Nano)
		}
		if f, ok := docops.ToFloat(v); ok {
			return formatNumber(f)
		}
	case Number, Integer:
		switch x := v.(type) {
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
				return f
			}
		case time.Time:
			return float64(x.UnixMilli())
		}
	case Boolean:
		if x, ok := v.(string); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
				return b
			}
		}
	case Date:
		switch x := v.(type) {
		case string:
			if ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(x)); err == nil {
				return ts.UTC()
			}
		case map[string]any:
			if ts, ok := docops.DecodeDate(x); ok {
				return ts
			}
		}
		if f, ok := docops.ToFloat(v); ok {
			return time.UnixMilli(int64(f)).UTC()
		}
	case Array:
		switch v.(type) {
		case nil, []any:
			return v
		}
		return []any{v}
	}
	return v
}

func (s *Schema) documentAutoValues(doc domain.Document, opts ports.CleanOptions) {
	lookup := func(key string) FieldValue {
		v, ok := docops.Get(doc, key)
		return FieldValue{IsSet: ok, Value: v}
	}
	for _, key := range s.keys {
		f := s.fields[key]
		if (f.AutoValue == nil && f.DefaultValue == nil) || strings.Contains(key, "$") {
			continue
		}
		if parent, _ := splitLast(key); parent != "" {
			if _, ok := docops.Get(doc, parent); !ok {
				continue
			}
		}
		if f.AutoValue != nil {
			cur := lookup(key)
			call := &AutoValueCall{
				AutoValueContext: opts.AutoValueContext,
				Key:              key,
				IsSet:            cur.IsSet,
				Value:            cur.Value,
				lookup:           lookup,
			}
			v, ok := f.AutoValue(call)
			switch {
			case call.unset:
				docops.Unset(doc, key)
			case ok:
				if ov, isOp := v.(operatorValue); isOp {
					v = ov.value
				}
				docops.Set(doc, key, v)
			}
		}
		if f.DefaultValue != nil {
			if _, ok := docops.Get(doc, key); !ok {
				docops.Set(doc, key, docops.Clone(f.DefaultValue))
			}
		}
	}
}

// modifierLookup finds key in any operator of mod, either written literally
// or nested under a written ancestor.
func modifierLookup(mod domain.Document, key string) FieldValue {
	for op, arg := range mod {
		fields, ok := arg.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := fields[key]; ok {
			return FieldValue{IsSet: true, Value: v, Operator: op}
		}
		if v, ok := docops.Get(fields, key); ok {
			return FieldValue{IsSet: true, Value: v, Operator: op}
		}
	}
	return FieldValue{}
}

func (s *Schema) modifierAutoValues(mod domain.Document, opts ports.CleanOptions) {
	lookup := func(key string) FieldValue { return modifierLookup(mod, key) }
	for _, key := range s.keys {
		f := s.fields[key]
		if (f.AutoValue == nil && f.DefaultValue == nil) || strings.Contains(key, "$") {
			continue
		}
		if parent, _ := splitLast(key); parent != "" && !lookup(parent).IsSet {
			continue
		}
		if f.AutoValue != nil {
			cur := lookup(key)
			call := &AutoValueCall{
				AutoValueContext: opts.AutoValueContext,
				Key:              key,
				IsSet:            cur.IsSet,
				Value:            cur.Value,
				Operator:         cur.Operator,
				lookup:           lookup,
			}
			v, ok := f.AutoValue(call)
			switch {
			case call.unset:
				removeFromOperators(mod, key)
			case ok:
				op := domain.OpSet
				if ov, isOp := v.(operatorValue); isOp {
					op, v = ov.op, ov.value
				}
				removeFromOperators(mod, key)
				setOperator(mod, op, key, v)
			}
		}
		if f.DefaultValue != nil && opts.IsUpsert && !lookup(key).IsSet {
			setOperator(mod, domain.OpSetOnInsert, key, docops.Clone(f.DefaultValue))
		}
	}
}

func removeFromOperators(mod domain.Document, key string) {
	for op, arg := range mod {
		fields, ok := arg.(map[string]any)
		if !ok {
			continue
		}
		delete(fields, key)
		if len(fields) == 0 {
			delete(mod, op)
		}
	}
}

func setOperator(mod domain.Document, op, key string, v any) {
	fields, ok := mod[op].(map[string]any)
	if !ok {
		fields = map[string]any{}
		mod[op] = fields
	}
	fields[key] = v
}
