// Package schemafile loads collection and schema declarations from YAML.
package schemafile

import (
	"context"
	"fmt"
	"os"
	"sort"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/atvirokodosprendimai/docgate/internal/adapters/jsonschema"
	"github.com/atvirokodosprendimai/docgate/internal/adapters/simpleschema"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
	"github.com/atvirokodosprendimai/docgate/internal/core/usecase"
)

type File struct {
	Collections map[string]Collection `yaml:"collections"`
}

type Collection struct {
	Local                  bool     `yaml:"local"`
	ClientSide             bool     `yaml:"clientSide"`
	DisableCollectionNames bool     `yaml:"disableCollectionNames"`
	Schemas                []Schema `yaml:"schemas"`
}

// Schema is one attachment. Exactly one of Fields or JSONSchema is set.
// JSONSchema may be a JSON string or a YAML mapping.
type Schema struct {
	Selector   map[string]any          `yaml:"selector"`
	Fields     simpleschema.Definition `yaml:"fields"`
	JSONSchema yaml.Node               `yaml:"jsonSchema"`
	Replace    bool                    `yaml:"replace"`
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, domain.ErrConfiguration.New("parse schema file: %v", err)
	}
	for _, name := range f.Names() {
		c := f.Collections[name]
		if c.Local && c.ClientSide {
			return nil, domain.ErrConfiguration.New("collection %q cannot be both local and client side", name)
		}
		for i, s := range c.Schemas {
			hasJSON := !s.JSONSchema.IsZero()
			if (len(s.Fields) > 0) == hasJSON {
				return nil, domain.ErrConfiguration.New("collection %q schema %d needs exactly one of fields or jsonSchema", name, i)
			}
		}
	}
	return &f, nil
}

// Names lists the declared collections in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Collections))
	for name := range f.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stored converts s to the form SchemaService persists.
func (s Schema) Stored(collection string) (domain.StoredSchema, error) {
	out := domain.StoredSchema{Collection: collection, Selector: s.Selector, Replace: s.Replace}
	if len(s.Fields) > 0 {
		raw, err := json.Marshal(s.Fields)
		if err != nil {
			return out, domain.ErrConfiguration.New("encode fields: %v", err)
		}
		out.Adapter, out.Definition = simpleschema.AdapterName, raw
		return out, nil
	}
	raw, err := s.jsonSchema()
	if err != nil {
		return out, err
	}
	out.Adapter, out.Definition = jsonschema.AdapterName, raw
	return out, nil
}

func (s Schema) jsonSchema() ([]byte, error) {
	if s.JSONSchema.Kind == yaml.ScalarNode {
		return []byte(s.JSONSchema.Value), nil
	}
	var v map[string]any
	if err := s.JSONSchema.Decode(&v); err != nil {
		return nil, domain.ErrConfiguration.New("decode jsonSchema: %v", err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, domain.ErrConfiguration.New("encode jsonSchema: %v", err)
	}
	return raw, nil
}

func (s Schema) definition() (any, error) {
	if len(s.Fields) > 0 {
		return s.Fields, nil
	}
	return s.jsonSchema()
}

// Apply defines every collection of f in catalog and attaches its schemas.
// Local collections get a store from newLocal.
func (f *File) Apply(ctx context.Context, catalog *usecase.Catalog, newLocal func() ports.DocumentStore) error {
	for _, name := range f.Names() {
		c := f.Collections[name]
		cfg := usecase.CollectionConfig{
			Name:                   name,
			Local:                  c.Local,
			ClientSide:             c.ClientSide,
			DisableCollectionNames: c.DisableCollectionNames,
		}
		if c.Local && newLocal != nil {
			cfg.Store = newLocal()
		}
		coll, err := catalog.Define(cfg)
		if err != nil {
			return err
		}
		for i, s := range c.Schemas {
			def, err := s.definition()
			if err != nil {
				return err
			}
			selector := s.Selector
			if len(selector) == 0 {
				selector = nil
			}
			if err := coll.AttachSchema(ctx, def, usecase.AttachOptions{Selector: selector, Replace: s.Replace}); err != nil {
				return fmt.Errorf("collection %s schema %d: %w", name, i, err)
			}
		}
	}
	return nil
}

// Decoder turns stored definitions back into adapter input.
type Decoder struct{}

var _ ports.DefinitionDecoder = Decoder{}

func (Decoder) Decode(adapter string, raw []byte) (any, error) {
	switch adapter {
	case simpleschema.AdapterName:
		var def simpleschema.Definition
		if err := json.Unmarshal(raw, &def); err != nil {
			return nil, domain.ErrConfiguration.New("decode %s definition: %v", adapter, err)
		}
		return def, nil
	case jsonschema.AdapterName:
		return append([]byte(nil), raw...), nil
	}
	return nil, domain.ErrConfiguration.New("unknown schema adapter %q", adapter)
}
