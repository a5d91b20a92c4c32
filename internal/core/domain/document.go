package domain

import "strings"

// Document is a JSON-shaped document or modifier as it travels through the
// mutation pipeline.
type Document = map[string]any

// IDField is the primary key every stored document carries.
const IDField = "_id"

// Modifier operators understood by the adapters and storage engines.
const (
	OpSet         = "$set"
	OpUnset       = "$unset"
	OpSetOnInsert = "$setOnInsert"
	OpInc         = "$inc"
	OpPush        = "$push"
	OpAddToSet    = "$addToSet"
	OpPull        = "$pull"
)

// IsOperator reports whether key is a modifier or query operator.
func IsOperator(key string) bool {
	return strings.HasPrefix(key, "$")
}

// IsModifier reports whether every top-level key of m is an operator.
func IsModifier(m Document) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !IsOperator(k) {
			return false
		}
	}
	return true
}

// SelectorID extracts a document id from a selector that is either a plain
// string id or an object with a string _id.
func SelectorID(selector any) string {
	switch s := selector.(type) {
	case string:
		return s
	case map[string]any:
		if id, ok := s[IDField].(string); ok {
			return id
		}
	}
	return ""
}

// NormalizeSelector turns a string id selector into {_id: id}. Object
// selectors are returned unchanged; nil becomes an empty selector.
func NormalizeSelector(selector any) map[string]any {
	switch s := selector.(type) {
	case nil:
		return map[string]any{}
	case string:
		return map[string]any{IDField: s}
	case map[string]any:
		return s
	}
	return map[string]any{}
}
