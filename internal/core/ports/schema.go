package ports

import (
	"context"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

// CleanOptions toggle the individual cleaning steps.
type CleanOptions struct {
	Filter                bool
	AutoConvert           bool
	TrimStrings           bool
	RemoveEmptyStrings    bool
	RemoveNullsFromArrays bool
	GetAutoValues         bool

	IsModifier bool
	IsUpsert   bool

	AutoValueContext domain.AutoValueContext
}

// DefaultCleanOptions are used when neither the schema nor the caller say
// otherwise.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		Filter:             true,
		AutoConvert:        true,
		TrimStrings:        true,
		RemoveEmptyStrings: true,
		GetAutoValues:      true,
	}
}

// Schema is an adapter-specific validator for one document shape. Schemas
// are immutable; Extend produces a new one.
type Schema interface {
	// Adapter names the technology that built the schema.
	Adapter() string
	// AllowsKey reports whether the schema declares key.
	AllowsKey(key string) bool
	// UniqueKeys lists fields that must be unique across the collection.
	UniqueKeys() []string
	// Clean mutates target in place. It is best effort and never fails.
	Clean(target domain.Document, opts CleanOptions)
	// NamedContext returns the cached context called name, creating it on
	// first use. An empty name selects the default context.
	NamedContext(name string) domain.ValidationContext
	Pick(keys ...string) (Schema, error)
	Omit(keys ...string) (Schema, error)
}

// SchemaAdapter wraps one validation technology.
type SchemaAdapter interface {
	Name() string
	// Is reports whether candidate is a schema, or a raw definition, of this
	// technology.
	Is(candidate any) bool
	// Create builds a Schema from a definition, returning schemas of this
	// technology unchanged.
	Create(definition any) (Schema, error)
	// Extend returns a schema with b's fields layered over a's.
	Extend(a, b Schema) (Schema, error)
	// ErrorObject builds the structured error from vc's current errors.
	ErrorObject(vc domain.ValidationContext, suffix, code string) *domain.ValidationError
}

// SchemaRepository persists schema attachments across restarts.
type SchemaRepository interface {
	Upsert(ctx context.Context, schema domain.StoredSchema) error
	// List returns stored schemas, base schemas before selector schemas.
	// An empty collection lists every collection.
	List(ctx context.Context, collection string) ([]domain.StoredSchema, error)
	Delete(ctx context.Context, collection string, selector map[string]any) (bool, error)
}

// DefinitionDecoder turns a stored definition into one an adapter accepts.
type DefinitionDecoder interface {
	Decode(adapter string, raw []byte) (any, error)
}
