// Package jsonschema adapts JSON Schema (draft 7) documents to the schema
// contract. Two extension keywords are understood on properties: "unique"
// requests a unique index and "readOnly" rejects updates.
package jsonschema

import (
	"bytes"
	"sort"
	"strconv"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atvirokodosprendimai/docgate/internal/core/docops"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

const resourceURL = "schema.json"

// Schema is a compiled JSON Schema document.
type Schema struct {
	raw map[string]any

	full    *santhosh.Schema
	partial *santhosh.Schema

	mu       sync.Mutex
	contexts map[string]*ValidationContext
}

var _ ports.Schema = (*Schema)(nil)

// New compiles a schema document given as bytes, a string, a
// json.RawMessage or an already decoded map.
func New(definition any) (*Schema, error) {
	raw, err := decode(definition)
	if err != nil {
		return nil, err
	}
	return compile(raw)
}

func decode(definition any) (map[string]any, error) {
	var data []byte
	switch d := definition.(type) {
	case map[string]any:
		return docops.CloneDocument(d), nil
	case json.RawMessage:
		data = d
	case []byte:
		data = d
	case string:
		data = []byte(d)
	default:
		return nil, domain.ErrConfiguration.New("%T is not a %s definition", definition, AdapterName)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, domain.ErrConfiguration.New("decode json schema: %v", err)
	}
	return raw, nil
}

func compile(raw map[string]any) (*Schema, error) {
	full, err := compileDocument(raw)
	if err != nil {
		return nil, domain.ErrConfiguration.New("invalid json schema: %v", err)
	}
	partialRaw := docops.CloneDocument(raw)
	stripRequired(partialRaw)
	partial, err := compileDocument(partialRaw)
	if err != nil {
		return nil, domain.ErrConfiguration.New("invalid json schema: %v", err)
	}
	return &Schema{raw: raw, full: full, partial: partial}, nil
}

func compileDocument(raw map[string]any) (*santhosh.Schema, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource(resourceURL, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return compiler.Compile(resourceURL)
}

// stripRequired removes every "required" list so modifiers can be checked
// against the fields they touch only.
func stripRequired(node any) {
	switch n := node.(type) {
	case map[string]any:
		if _, ok := n["required"].([]any); ok {
			delete(n, "required")
		}
		for _, v := range n {
			stripRequired(v)
		}
	case []any:
		for _, v := range n {
			stripRequired(v)
		}
	}
}

func (s *Schema) Adapter() string { return AdapterName }

// Raw returns a copy of the schema document.
func (s *Schema) Raw() map[string]any { return docops.CloneDocument(s.raw) }

func properties(node map[string]any) map[string]any {
	props, _ := node["properties"].(map[string]any)
	return props
}

func required(node map[string]any) []string {
	list, _ := node["required"].([]any)
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// node returns the subschema describing path, or nil when path is not
// declared. open reports that an ancestor leaves its content undescribed.
func (s *Schema) node(path string) (node map[string]any, open bool) {
	cur := s.raw
	for i, seg := range docops.SplitPath(path) {
		if _, err := strconv.Atoi(seg); err == nil || seg == "$" {
			items, ok := cur["items"].(map[string]any)
			if !ok {
				return nil, i > 0
			}
			cur = items
			continue
		}
		props := properties(cur)
		if props == nil {
			return nil, i > 0
		}
		next, ok := props[seg].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, false
}

func (s *Schema) AllowsKey(key string) bool {
	n, open := s.node(key)
	return n != nil || open
}

func (s *Schema) UniqueKeys() []string {
	return s.flagged("unique")
}

func (s *Schema) readOnlyKeys() []string {
	return s.flagged("readOnly")
}

func (s *Schema) flagged(keyword string) []string {
	var out []string
	for name, p := range properties(s.raw) {
		if m, ok := p.(map[string]any); ok {
			if b, _ := m[keyword].(bool); b {
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (s *Schema) readOnly(path string) bool {
	top, _, _ := strings.Cut(path, ".")
	for _, k := range s.readOnlyKeys() {
		if k == top {
			return true
		}
	}
	return false
}

func (s *Schema) label(path string) string {
	if n, _ := s.node(path); n != nil {
		if t, ok := n["title"].(string); ok && t != "" {
			return t
		}
	}
	segs := docops.SplitPath(path)
	for i := len(segs) - 1; i >= 0; i-- {
		if _, err := strconv.Atoi(segs[i]); err != nil && segs[i] != "$" {
			return segs[i]
		}
	}
	return path
}

// extend merges b's properties over a's. A property b redefines takes its
// required-ness from b.
func extend(a, b *Schema) (*Schema, error) {
	out := a.Raw()
	braw := b.Raw()
	for k, v := range braw {
		if k != "properties" && k != "required" {
			out[k] = v
		}
	}
	props := properties(out)
	if props == nil {
		props = map[string]any{}
	}
	bprops := properties(braw)
	for k, v := range bprops {
		props[k] = v
	}
	out["properties"] = props

	var req []any
	seen := map[string]bool{}
	for _, r := range required(a.raw) {
		if _, redefined := bprops[r]; redefined || seen[r] {
			continue
		}
		seen[r] = true
		req = append(req, r)
	}
	for _, r := range required(braw) {
		if !seen[r] {
			seen[r] = true
			req = append(req, r)
		}
	}
	if len(req) > 0 {
		out["required"] = req
	} else {
		delete(out, "required")
	}
	return compile(out)
}

func (s *Schema) Pick(keys ...string) (ports.Schema, error) {
	props := properties(s.raw)
	keep := map[string]bool{}
	for _, k := range keys {
		if _, ok := props[k]; !ok {
			return nil, domain.ErrConfiguration.New("pick: %q is not a top level property", k)
		}
		keep[k] = true
	}
	return s.filterProperties(func(k string) bool { return keep[k] })
}

func (s *Schema) Omit(keys ...string) (ports.Schema, error) {
	drop := map[string]bool{}
	for _, k := range keys {
		drop[k] = true
	}
	return s.filterProperties(func(k string) bool { return !drop[k] })
}

func (s *Schema) filterProperties(keep func(string) bool) (*Schema, error) {
	out := s.Raw()
	props := properties(out)
	for k := range props {
		if !keep(k) {
			delete(props, k)
		}
	}
	var req []any
	for _, r := range required(out) {
		if keep(r) {
			req = append(req, r)
		}
	}
	if len(req) > 0 {
		out["required"] = req
	} else {
		delete(out, "required")
	}
	return compile(out)
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
