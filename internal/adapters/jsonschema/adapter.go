package jsonschema

import (
	"bytes"

	json "github.com/goccy/go-json"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

const (
	AdapterName        = "jsonschema"
	DefaultContextName = "default"
)

type Adapter struct{}

var _ ports.SchemaAdapter = Adapter{}

func NewAdapter() Adapter { return Adapter{} }

func (Adapter) Name() string { return AdapterName }

// Is accepts compiled schemas and JSON objects that look like a schema
// document.
func (Adapter) Is(candidate any) bool {
	switch c := candidate.(type) {
	case *Schema:
		return c != nil
	case map[string]any:
		return looksLikeSchema(c)
	case json.RawMessage:
		return isObject(c)
	case []byte:
		return isObject(c)
	case string:
		return isObject([]byte(c))
	}
	return false
}

func looksLikeSchema(m map[string]any) bool {
	if _, ok := m["$schema"]; ok {
		return true
	}
	if _, ok := m["properties"].(map[string]any); ok {
		return true
	}
	t, _ := m["type"].(string)
	return t == "object"
}

func isObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}

func (Adapter) Create(definition any) (ports.Schema, error) {
	if s, ok := definition.(*Schema); ok {
		return s, nil
	}
	return New(definition)
}

func (Adapter) Extend(a, b ports.Schema) (ports.Schema, error) {
	sa, ok := a.(*Schema)
	if !ok {
		return nil, domain.ErrConfiguration.New("cannot extend %s schema with %s", a.Adapter(), AdapterName)
	}
	sb, ok := b.(*Schema)
	if !ok {
		return nil, domain.ErrConfiguration.New("cannot extend %s schema with %s", AdapterName, b.Adapter())
	}
	return extend(sa, sb)
}

func (Adapter) ErrorObject(vc domain.ValidationContext, suffix, code string) *domain.ValidationError {
	return domain.NewValidationError(vc, suffix, code)
}
