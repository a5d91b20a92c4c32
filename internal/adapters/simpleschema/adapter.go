package simpleschema

import (
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

const (
	AdapterName        = "simpleschema"
	DefaultContextName = "default"
)

// Adapter plugs field-definition schemas into a collection.
type Adapter struct{}

var _ ports.SchemaAdapter = Adapter{}

func NewAdapter() Adapter { return Adapter{} }

func (Adapter) Name() string { return AdapterName }

func (Adapter) Is(candidate any) bool {
	switch candidate.(type) {
	case *Schema, Definition, map[string]Field:
		return true
	}
	return false
}

func (Adapter) Create(definition any) (ports.Schema, error) {
	switch d := definition.(type) {
	case *Schema:
		if d == nil {
			return nil, domain.ErrConfiguration.New("nil schema")
		}
		return d, nil
	case Definition:
		return New(d)
	case map[string]Field:
		return New(Definition(d))
	}
	return nil, domain.ErrConfiguration.New("%T is not a %s definition", definition, AdapterName)
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
