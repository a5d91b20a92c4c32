package docops

import (
	"fmt"
	"sort"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

// Apply applies modifier to doc in place. A modifier without operators
// replaces every field but _id. $setOnInsert only applies when isInsert.
func Apply(doc, modifier domain.Document, isInsert bool) error {
	if !domain.IsModifier(modifier) {
		for k := range doc {
			if k != domain.IDField {
				delete(doc, k)
			}
		}
		for k, v := range modifier {
			if k == domain.IDField {
				continue
			}
			doc[k] = Clone(v)
		}
		return nil
	}

	ops := make([]string, 0, len(modifier))
	for op := range modifier {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	for _, op := range ops {
		fields, ok := modifier[op].(map[string]any)
		if !ok {
			return fmt.Errorf("modifier %s must be an object", op)
		}
		for _, path := range sortedKeys(fields) {
			if path == domain.IDField && op != domain.OpSetOnInsert {
				if cur, ok := doc[domain.IDField]; ok && !Equal(cur, fields[path]) {
					return fmt.Errorf("cannot modify _id")
				}
			}
			if err := applyOne(doc, op, path, fields[path], isInsert); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyOne(doc domain.Document, op, path string, arg any, isInsert bool) error {
	switch op {
	case domain.OpSet:
		Set(doc, path, Clone(arg))
	case domain.OpSetOnInsert:
		if isInsert {
			Set(doc, path, Clone(arg))
		}
	case domain.OpUnset:
		Unset(doc, path)
	case domain.OpInc:
		delta, ok := ToFloat(arg)
		if !ok {
			return fmt.Errorf("$inc of %s needs a number", path)
		}
		cur, exists := Get(doc, path)
		if !exists || cur == nil {
			Set(doc, path, delta)
			return nil
		}
		base, ok := ToFloat(cur)
		if !ok {
			return fmt.Errorf("$inc of non-numeric field %s", path)
		}
		Set(doc, path, base+delta)
	case domain.OpPush, domain.OpAddToSet:
		list, err := arrayAt(doc, path)
		if err != nil {
			return err
		}
		for _, v := range eachValues(arg) {
			if op == domain.OpAddToSet && contains(list, v) {
				continue
			}
			list = append(list, Clone(v))
		}
		Set(doc, path, list)
	case domain.OpPull:
		list, err := arrayAt(doc, path)
		if err != nil {
			return err
		}
		kept := list[:0]
		for _, v := range list {
			if !Equal(v, arg) {
				kept = append(kept, v)
			}
		}
		Set(doc, path, kept)
	default:
		return fmt.Errorf("unsupported modifier %s", op)
	}
	return nil
}

func arrayAt(doc domain.Document, path string) ([]any, error) {
	cur, ok := Get(doc, path)
	if !ok || cur == nil {
		return []any{}, nil
	}
	list, ok := cur.([]any)
	if !ok {
		return nil, fmt.Errorf("field %s is not an array", path)
	}
	return list, nil
}

// EachValues expands a $push/$addToSet argument, honouring {$each: [...]}.
func EachValues(arg any) []any {
	return eachValues(arg)
}

func eachValues(arg any) []any {
	if m, ok := arg.(map[string]any); ok {
		if each, ok := m["$each"].([]any); ok {
			return each
		}
	}
	return []any{arg}
}

func contains(list []any, v any) bool {
	for _, e := range list {
		if Equal(e, v) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
