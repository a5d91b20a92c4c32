package jsonschema

import (
	"strconv"
	"strings"

	"github.com/atvirokodosprendimai/docgate/internal/core/docops"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

// Clean implements ports.Schema. JSON Schema has no auto-value functions;
// GetAutoValues applies property defaults instead.
func (s *Schema) Clean(target domain.Document, opts ports.CleanOptions) {
	if target == nil {
		return
	}
	if domain.IsModifier(target) || (opts.IsModifier && len(target) == 0) {
		s.cleanModifier(target, opts)
		if opts.GetAutoValues && opts.IsUpsert {
			s.upsertDefaults(target)
		}
		return
	}
	s.cleanObject(target, "", opts)
	if opts.GetAutoValues {
		for name, p := range properties(s.raw) {
			m, _ := p.(map[string]any)
			def, ok := m["default"]
			if _, present := target[name]; ok && !present {
				target[name] = docops.Clone(def)
			}
		}
	}
}

func (s *Schema) cleanObject(m map[string]any, prefix string, opts ports.CleanOptions) {
	for k, v := range m {
		nv, keep := s.cleanValue(joinPath(prefix, k), v, opts)
		if !keep {
			delete(m, k)
			continue
		}
		m[k] = nv
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func (s *Schema) cleanValue(path string, v any, opts ports.CleanOptions) (any, bool) {
	n, open := s.node(path)
	if n == nil {
		return v, open || !opts.Filter
	}
	if opts.AutoConvert {
		v = coerce(typeOf(n), v)
	}
	switch val := v.(type) {
	case string:
		if opts.TrimStrings {
			val = strings.TrimSpace(val)
		}
		if opts.RemoveEmptyStrings && val == "" {
			return nil, false
		}
		return val, true
	case map[string]any:
		s.cleanObject(val, path, opts)
		return val, true
	case []any:
		out := val[:0:0]
		for i, el := range val {
			if el == nil && opts.RemoveNullsFromArrays {
				continue
			}
			if nv, keep := s.cleanValue(joinPath(path, strconv.Itoa(i)), el, opts); keep {
				out = append(out, nv)
			}
		}
		return out, true
	}
	return v, true
}

func (s *Schema) cleanModifier(mod domain.Document, opts ports.CleanOptions) {
	for op, arg := range mod {
		fields, ok := arg.(map[string]any)
		if !ok {
			continue
		}
		for path, v := range fields {
			switch op {
			case domain.OpSet, domain.OpSetOnInsert:
				nv, keep := s.cleanValue(path, v, opts)
				if !keep {
					delete(fields, path)
					continue
				}
				fields[path] = nv
			default:
				if opts.Filter && !s.AllowsKey(path) {
					delete(fields, path)
				}
			}
		}
		if len(fields) == 0 {
			delete(mod, op)
		}
	}
}

func (s *Schema) upsertDefaults(mod domain.Document) {
	for name, p := range properties(s.raw) {
		m, _ := p.(map[string]any)
		def, ok := m["default"]
		if !ok || touched(mod, name) {
			continue
		}
		soi, _ := mod[domain.OpSetOnInsert].(map[string]any)
		if soi == nil {
			soi = map[string]any{}
			mod[domain.OpSetOnInsert] = soi
		}
		soi[name] = docops.Clone(def)
	}
}

func touched(mod domain.Document, name string) bool {
	for _, arg := range mod {
		fields, ok := arg.(map[string]any)
		if !ok {
			continue
		}
		for path := range fields {
			if path == name || strings.HasPrefix(path, name+".") {
				return true
			}
		}
	}
	return false
}

// typeOf returns the first declared type of a subschema.
func typeOf(n map[string]any) string {
	switch t := n["type"].(type) {
	case string:
		return t
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && s != "null" {
				return s
			}
		}
	}
	return ""
}

func coerce(t string, v any) any {
	switch t {
	case "string":
		switch x := v.(type) {
		case bool:
			return strconv.FormatBool(x)
		}
		if f, ok := docops.ToFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	case "number", "integer":
		if x, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return f
			}
		}
	case "boolean":
		if x, ok := v.(string); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
				return b
			}
		}
	case "array":
		switch v.(type) {
		case nil, []any:
			return v
		}
		return []any{v}
	}
	return v
}
