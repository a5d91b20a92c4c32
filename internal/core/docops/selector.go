package docops

import (
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

// Matches reports whether doc satisfies an equality selector. Supported
// operators are $and, $eq, $ne, $in and $exists.
func Matches(doc, selector domain.Document) bool {
	for key, want := range selector {
		if key == "$and" {
			clauses, _ := want.([]any)
			for _, c := range clauses {
				sub, ok := c.(map[string]any)
				if !ok || !Matches(doc, sub) {
					return false
				}
			}
			continue
		}
		if domain.IsOperator(key) {
			return false
		}
		got, exists := Get(doc, key)
		if !matchValue(got, exists, want) {
			return false
		}
	}
	return true
}

func matchValue(got any, exists bool, want any) bool {
	if cond, ok := want.(map[string]any); ok && hasOperator(cond) {
		for op, arg := range cond {
			switch op {
			case "$eq":
				if !exists || !equalOrContains(got, arg) {
					return false
				}
			case "$ne":
				if exists && equalOrContains(got, arg) {
					return false
				}
			case "$in":
				list, _ := arg.([]any)
				found := false
				for _, v := range list {
					if exists && equalOrContains(got, v) {
						found = true
						break
					}
				}
				if !found {
					return false
				}
			case "$exists":
				if want, _ := arg.(bool); want != exists {
					return false
				}
			default:
				return false
			}
		}
		return true
	}
	if want == nil {
		return !exists || got == nil
	}
	return exists && equalOrContains(got, want)
}

func equalOrContains(got, want any) bool {
	if Equal(got, want) {
		return true
	}
	if list, ok := got.([]any); ok {
		return contains(list, want)
	}
	return false
}

func hasOperator(m map[string]any) bool {
	for k := range m {
		if domain.IsOperator(k) {
			return true
		}
	}
	return false
}

// FlattenSelector turns a selector into the plain field values it pins.
// Clauses of $and are merged in; logical and query operators are dropped,
// except $eq and a single-element $in which pin a value.
func FlattenSelector(selector domain.Document) domain.Document {
	out := domain.Document{}
	if clauses, ok := selector["$and"].([]any); ok {
		for _, c := range clauses {
			if sub, ok := c.(map[string]any); ok {
				for k, v := range FlattenSelector(sub) {
					out[k] = v
				}
			}
		}
	}
	for key, value := range selector {
		if domain.IsOperator(key) {
			continue
		}
		cond, ok := value.(map[string]any)
		if !ok {
			out[key] = Clone(value)
			continue
		}
		if eq, ok := cond["$eq"]; ok {
			out[key] = Clone(eq)
		} else if in, ok := cond["$in"].([]any); ok && len(in) == 1 {
			out[key] = Clone(in[0])
		} else if !hasOperator(cond) {
			out[key] = Clone(cond)
		}
	}
	return out
}
