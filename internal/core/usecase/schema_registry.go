package usecase

import (
	"sync"

	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/docgate/internal/core/docops"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

// AttachOptions control how a schema joins a collection.
type AttachOptions struct {
	// Selector makes the schema apply only to documents whose single
	// selector field equals the given value.
	Selector map[string]any
	// Replace discards what the new schema would otherwise extend.
	Replace bool
}

type registryEntry struct {
	schema   ports.Schema
	selector map[string]any
	field    string
}

// SchemaRegistry owns the schemas of one collection. The base schema, when
// present, is always entries[0].
type SchemaRegistry struct {
	mu       sync.RWMutex
	adapters AdapterList
	adapter  ports.SchemaAdapter
	entries  []registryEntry
	hasBase  bool
	// initialized is set by the first successful attach.
	initialized bool
	log         *zap.Logger
}

func NewSchemaRegistry(adapters AdapterList, log *zap.Logger) *SchemaRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	return &SchemaRegistry{adapters: adapters, log: log}
}

// Adapter returns the technology the collection's schemas use, or nil
// before the first attach.
func (r *SchemaRegistry) Adapter() ports.SchemaAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapter
}

// Len reports the number of attached entries, base included.
func (r *SchemaRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Schemas lists every attached schema in attach order, base first.
func (r *SchemaRegistry) Schemas() []ports.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ports.Schema, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.schema
	}
	return out
}

// Attach adds definition to the collection and returns the schema of the
// entry it landed in. first reports whether this was the collection's
// first attach.
func (r *SchemaRegistry) Attach(definition any, opts AttachOptions) (schema ports.Schema, first bool, err error) {
	adapter, err := r.adapters.detect(definition)
	if err != nil {
		return nil, false, err
	}
	incoming, err := adapter.Create(definition)
	if err != nil {
		return nil, false, err
	}

	var field string
	if opts.Selector != nil {
		if len(opts.Selector) != 1 {
			return nil, false, domain.ErrConfiguration.New("selector must name exactly one field, got %d", len(opts.Selector))
		}
		for k := range opts.Selector {
			field = k
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.adapter != nil && r.adapter.Name() != adapter.Name() {
		return nil, false, domain.ErrConfiguration.New("collection uses %s schemas, cannot attach %s", r.adapter.Name(), adapter.Name())
	}

	if opts.Selector == nil {
		schema, err = r.attachBase(adapter, incoming, opts.Replace)
	} else {
		schema, err = r.attachSelector(adapter, incoming, opts.Selector, field, opts.Replace)
	}
	if err != nil {
		return nil, false, err
	}

	r.adapter = adapter
	first = !r.initialized
	r.initialized = true
	r.log.Debug("schema attached",
		zap.String("adapter", adapter.Name()),
		zap.Bool("selector", opts.Selector != nil),
		zap.Bool("replace", opts.Replace),
		zap.Int("entries", len(r.entries)))
	return schema, first, nil
}

func (r *SchemaRegistry) attachBase(adapter ports.SchemaAdapter, incoming ports.Schema, replace bool) (ports.Schema, error) {
	switch {
	case replace:
		r.entries = []registryEntry{{schema: incoming}}
		r.hasBase = true
		return incoming, nil
	case !r.hasBase:
		// Selector schemas attached so far gain the new base underneath.
		for i := range r.entries {
			merged, err := adapter.Extend(incoming, r.entries[i].schema)
			if err != nil {
				return nil, err
			}
			r.entries[i].schema = merged
		}
		r.entries = append([]registryEntry{{schema: incoming}}, r.entries...)
		r.hasBase = true
		return incoming, nil
	}

	updated := make([]registryEntry, len(r.entries))
	for i, e := range r.entries {
		merged, err := adapter.Extend(e.schema, incoming)
		if err != nil {
			return nil, err
		}
		e.schema = merged
		updated[i] = e
	}
	r.entries = updated
	return r.entries[0].schema, nil
}

func (r *SchemaRegistry) attachSelector(adapter ports.SchemaAdapter, incoming ports.Schema, selector map[string]any, field string, replace bool) (ports.Schema, error) {
	if r.hasBase {
		merged, err := adapter.Extend(r.entries[0].schema, incoming)
		if err != nil {
			return nil, err
		}
		incoming = merged
	}
	for i, e := range r.entries {
		if e.selector == nil || !docops.Equal(e.selector, selector) {
			continue
		}
		if replace {
			r.entries[i].schema = incoming
			return incoming, nil
		}
		merged, err := adapter.Extend(e.schema, incoming)
		if err != nil {
			return nil, err
		}
		r.entries[i].schema = merged
		return merged, nil
	}
	r.entries = append(r.entries, registryEntry{
		schema:   incoming,
		selector: docops.CloneDocument(selector),
		field:    field,
	})
	return incoming, nil
}

// Resolve picks the schema for a mutation. The selector field's value is
// read from doc.$set, doc, opts.Selector and query in that order; the first
// source holding the field decides.
func (r *SchemaRegistry) Resolve(doc domain.Document, opts *domain.MutationOptions, query map[string]any) (ports.Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.entries) == 0 {
		return nil, domain.ErrConfiguration.New("no schema attached")
	}
	if r.hasBase && len(r.entries) == 1 {
		return r.entries[0].schema, nil
	}

	var optSelector map[string]any
	if opts != nil {
		optSelector = opts.Selector
	}
	set, _ := doc[domain.OpSet].(map[string]any)

	for _, e := range r.entries {
		if e.selector == nil {
			continue
		}
		got, ok := firstValue(e.field, set, doc, optSelector, query)
		if ok && docops.Equal(got, e.selector[e.field]) {
			return e.schema, nil
		}
	}
	if r.hasBase {
		return r.entries[0].schema, nil
	}
	return nil, domain.ErrConfiguration.New("no default schema")
}

// firstValue returns the first non-nil value of field across sources.
func firstValue(field string, sources ...map[string]any) (any, bool) {
	for _, src := range sources {
		if v, ok := src[field]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
