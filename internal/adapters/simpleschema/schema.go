// Package simpleschema is the reference schema adapter: schemas are maps of
// dotted field paths to field definitions. Array elements are addressed with
// a "$" segment, as in "tags.$" or "items.$.sku".
package simpleschema

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

// Type is the data type a field holds.
type Type string

const (
	String  Type = "string"
	Number  Type = "number"
	Integer Type = "integer"
	Boolean Type = "boolean"
	Date    Type = "date"
	Object  Type = "object"
	Array   Type = "array"
	Any     Type = "any"
)

func (t Type) valid() bool {
	switch t {
	case String, Number, Integer, Boolean, Date, Object, Array, Any:
		return true
	}
	return false
}

// CustomFunc is a field level validator. It returns the failed rule, or an
// empty kind when the value is acceptable.
type CustomFunc func(c *CustomCall) domain.ErrorKind

// CustomCall is passed to custom validators.
type CustomCall struct {
	Key      string
	Value    any
	IsSet    bool
	Operator string
	Extended domain.AutoValueContext
}

// Field defines one schema key.
type Field struct {
	Type          Type     `json:"type,omitempty" yaml:"type"`
	Label         string   `json:"label,omitempty" yaml:"label"`
	Optional      bool     `json:"optional,omitempty" yaml:"optional"`
	Min           *float64 `json:"min,omitempty" yaml:"min"`
	Max           *float64 `json:"max,omitempty" yaml:"max"`
	ExclusiveMin  bool     `json:"exclusiveMin,omitempty" yaml:"exclusiveMin"`
	ExclusiveMax  bool     `json:"exclusiveMax,omitempty" yaml:"exclusiveMax"`
	MinCount      *int     `json:"minCount,omitempty" yaml:"minCount"`
	MaxCount      *int     `json:"maxCount,omitempty" yaml:"maxCount"`
	AllowedValues []any    `json:"allowedValues,omitempty" yaml:"allowedValues"`
	RegEx         string   `json:"regEx,omitempty" yaml:"regEx"`
	DefaultValue  any      `json:"defaultValue,omitempty" yaml:"defaultValue"`
	AutoValueName string   `json:"autoValue,omitempty" yaml:"autoValue"`
	Unique        bool     `json:"unique,omitempty" yaml:"unique"`
	DenyInsert    bool     `json:"denyInsert,omitempty" yaml:"denyInsert"`
	DenyUpdate    bool     `json:"denyUpdate,omitempty" yaml:"denyUpdate"`
	Blackbox      bool     `json:"blackbox,omitempty" yaml:"blackbox"`
	Trim          *bool    `json:"trim,omitempty" yaml:"trim"`

	AutoValue AutoValueFunc `json:"-" yaml:"-"`
	Custom    CustomFunc    `json:"-" yaml:"-"`

	implied bool
	regex   *regexp.Regexp
}

// Definition is the raw form of a schema.
type Definition map[string]Field

// Schema is a compiled Definition.
type Schema struct {
	fields   map[string]*Field
	keys     []string
	children map[string][]string

	mu       sync.Mutex
	contexts map[string]*ValidationContext
}

var _ ports.Schema = (*Schema)(nil)

// New compiles def. Parents of nested keys that are not defined are added
// as optional objects or arrays.
func New(def Definition) (*Schema, error) {
	fields := make(map[string]*Field, len(def))
	for key, f := range def {
		if err := checkKey(key); err != nil {
			return nil, err
		}
		c := f
		fields[key] = &c
	}
	return compile(fields)
}

// MustNew is New for package level schema variables.
func MustNew(def Definition) *Schema {
	s, err := New(def)
	if err != nil {
		panic(err)
	}
	return s
}

func checkKey(key string) error {
	if key == "" {
		return domain.ErrConfiguration.New("empty field key")
	}
	for _, seg := range strings.Split(key, ".") {
		if seg == "" {
			return domain.ErrConfiguration.New("invalid field key %q", key)
		}
		if domain.IsOperator(seg) && seg != "$" {
			return domain.ErrConfiguration.New("field key %q may not contain operators", key)
		}
	}
	return nil
}

func compile(fields map[string]*Field) (*Schema, error) {
	explicit := make([]string, 0, len(fields))
	for k := range fields {
		explicit = append(explicit, k)
	}
	for _, key := range explicit {
		segs := strings.Split(key, ".")
		for i := 1; i < len(segs); i++ {
			parent := strings.Join(segs[:i], ".")
			want := Object
			if segs[i] == "$" {
				want = Array
			}
			existing, ok := fields[parent]
			if !ok {
				fields[parent] = &Field{Type: want, Optional: true, implied: true}
				continue
			}
			if existing.Type != want && existing.Type != Any {
				return nil, domain.ErrConfiguration.New("field %q must be of type %s to have child %q", parent, want, key)
			}
		}
	}

	children := make(map[string][]string)
	keys := make([]string, 0, len(fields))
	for key, f := range fields {
		if f.Type == "" {
			return nil, domain.ErrConfiguration.New("field %q has no type", key)
		}
		if !f.Type.valid() {
			return nil, domain.ErrConfiguration.New("field %q has unknown type %q", key, f.Type)
		}
		if f.RegEx != "" {
			re, err := regexp.Compile(f.RegEx)
			if err != nil {
				return nil, domain.ErrConfiguration.New("field %q has invalid regEx: %v", key, err)
			}
			f.regex = re
		}
		if f.AutoValue == nil && f.AutoValueName != "" {
			fn, ok := namedAutoValues[f.AutoValueName]
			if !ok {
				return nil, domain.ErrConfiguration.New("field %q uses unknown autoValue %q", key, f.AutoValueName)
			}
			f.AutoValue = fn
		}
		keys = append(keys, key)
		parent, last := splitLast(key)
		children[parent] = append(children[parent], last)
	}
	sort.Strings(keys)
	for p := range children {
		sort.Strings(children[p])
	}
	return &Schema{fields: fields, keys: keys, children: children}, nil
}

func splitLast(key string) (string, string) {
	i := strings.LastIndex(key, ".")
	if i < 0 {
		return "", key
	}
	return key[:i], key[i+1:]
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// genericKey replaces array indexes in path with "$".
func genericKey(path string) string {
	segs := strings.Split(path, ".")
	for i, s := range segs {
		if _, err := strconv.Atoi(s); err == nil {
			segs[i] = "$"
		}
	}
	return strings.Join(segs, ".")
}

// Adapter implements ports.Schema.
func (s *Schema) Adapter() string { return AdapterName }

// Field returns the definition of the generic key.
func (s *Schema) Field(key string) (Field, bool) {
	f, ok := s.fields[genericKey(key)]
	if !ok {
		return Field{}, false
	}
	return *f, true
}

// Keys lists every schema key, parents first.
func (s *Schema) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

func (s *Schema) AllowsKey(key string) bool {
	return s.lookup(key) != nil || s.inBlackbox(genericKey(key))
}

func (s *Schema) lookup(path string) *Field {
	return s.fields[genericKey(path)]
}

// inBlackbox reports whether the nearest declared ancestor of the generic key
// gk is a blackbox, or an untyped field or array whose content is not
// described.
func (s *Schema) inBlackbox(gk string) bool {
	segs := strings.Split(gk, ".")
	for i := len(segs) - 1; i > 0; i-- {
		if f, ok := s.fields[strings.Join(segs[:i], ".")]; ok {
			undeclared := len(s.children[strings.Join(segs[:i], ".")]) == 0
			if f.Blackbox || ((f.Type == Any || f.Type == Array) && undeclared) {
				return true
			}
			return false
		}
	}
	return false
}

func (s *Schema) UniqueKeys() []string {
	var out []string
	for _, k := range s.keys {
		if s.fields[k].Unique {
			out = append(out, k)
		}
	}
	return out
}

// label returns the display label of path.
func (s *Schema) label(path string) string {
	if f := s.lookup(path); f != nil && f.Label != "" {
		return f.Label
	}
	segs := strings.Split(path, ".")
	for i := len(segs) - 1; i >= 0; i-- {
		seg := segs[i]
		if _, err := strconv.Atoi(seg); err == nil || seg == "$" {
			continue
		}
		return humanize(seg)
	}
	return humanize(path)
}

func (s *Schema) definition() map[string]*Field {
	out := make(map[string]*Field, len(s.fields))
	for k, f := range s.fields {
		c := *f
		out[k] = &c
	}
	return out
}

// extend layers b's explicit fields over a's.
func extend(a, b *Schema) (*Schema, error) {
	fields := a.definition()
	for k, f := range b.definition() {
		if f.implied {
			if _, ok := fields[k]; ok {
				continue
			}
		}
		fields[k] = f
	}
	return compile(fields)
}

func (s *Schema) Pick(keys ...string) (ports.Schema, error) {
	fields := make(map[string]*Field)
	for _, want := range keys {
		if _, ok := s.fields[want]; !ok {
			return nil, domain.ErrConfiguration.New("pick: %q is not in the schema", want)
		}
		for k, f := range s.definition() {
			if k == want || strings.HasPrefix(k, want+".") {
				fields[k] = f
			}
		}
	}
	return compile(fields)
}

func (s *Schema) Omit(keys ...string) (ports.Schema, error) {
	fields := s.definition()
	for _, drop := range keys {
		for k := range fields {
			if k == drop || strings.HasPrefix(k, drop+".") {
				delete(fields, k)
			}
		}
	}
	return compile(fields)
}

func (s *Schema) NamedContext(name string) domain.ValidationContext {
	if name == "" {
		name = DefaultContextName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contexts == nil {
		s.contexts = make(map[string]*ValidationContext)
	}
	vc, ok := s.contexts[name]
	if !ok {
		vc = &ValidationContext{name: name, schema: s}
		s.contexts[name] = vc
	}
	return vc
}

func (s *Schema) String() string {
	return fmt.Sprintf("simpleschema(%d keys)", len(s.keys))
}
