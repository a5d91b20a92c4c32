package simpleschema

import (
	"math"
	"sort"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/atvirokodosprendimai/docgate/internal/core/docops"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

type checker struct {
	s        *Schema
	insert   bool
	op       string
	extended domain.AutoValueContext

	seen map[string]bool
	out  []domain.FieldError
}

func (c *checker) add(name string, kind domain.ErrorKind, value any) {
	id := name + "\x00" + string(kind)
	if c.seen[id] {
		return
	}
	if c.seen == nil {
		c.seen = make(map[string]bool)
	}
	c.seen[id] = true
	fe := domain.FieldError{Name: name, Type: kind, Value: value}
	fe.Message = c.s.message(fe)
	c.out = append(c.out, fe)
}

// validate returns every rule obj breaks. obj is never modified.
func (s *Schema) validate(obj domain.Document, opts domain.ValidateOptions) []domain.FieldError {
	c := &checker{s: s, extended: opts.Extended}
	switch {
	case !opts.Modifier || !domain.IsModifier(obj):
		c.insert = !opts.Modifier
		c.document(obj)
	case opts.Upsert:
		c.insert = true
		virtual := domain.Document{}
		if err := docops.Apply(virtual, docops.CloneDocument(obj), true); err != nil {
			c.modifier(obj)
			break
		}
		c.document(virtual)
		c.denyUpdates(obj)
	default:
		c.modifier(obj)
	}
	return c.out
}

func (c *checker) document(doc domain.Document) {
	c.unknownKeys(doc, "")
	c.object(doc, "", "")
}

func (c *checker) unknownKeys(m map[string]any, prefix string) {
	for _, k := range sortedKeys(m) {
		v := m[k]
		path := joinPath(prefix, k)
		gk := genericKey(path)
		if c.s.inBlackbox(gk) {
			continue
		}
		f := c.s.fields[gk]
		if f == nil {
			c.add(path, domain.KindKeyNotInSchema, v)
			continue
		}
		if f.Blackbox {
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			c.unknownKeys(val, path)
		case []any:
			for i, el := range val {
				if em, ok := el.(map[string]any); ok {
					c.unknownKeys(em, joinPath(path, strconv.Itoa(i)))
				}
			}
		}
	}
}

// object checks the declared children of the schema key gk against m.
func (c *checker) object(m map[string]any, gk, path string) {
	for _, name := range c.s.children[gk] {
		if name == "$" {
			continue
		}
		v, present := m[name]
		c.field(joinPath(gk, name), joinPath(path, name), v, present && v != nil)
	}
}

func (c *checker) field(gk, path string, v any, present bool) {
	f := c.s.fields[gk]
	if !present {
		if c.required(f) {
			c.add(path, domain.KindRequired, nil)
			return
		}
		c.custom(f, path, nil, false)
		return
	}
	if c.insert && f.DenyInsert {
		c.add(path, domain.KindInsertNotAllowed, v)
		return
	}
	c.value(gk, path, v)
}

func (c *checker) required(f *Field) bool {
	if f.Optional || f.implied {
		return false
	}
	return !(c.insert && f.DenyInsert)
}

func (c *checker) custom(f *Field, path string, v any, isSet bool) bool {
	if f.Custom == nil {
		return true
	}
	kind := f.Custom(&CustomCall{Key: path, Value: v, IsSet: isSet, Operator: c.op, Extended: c.extended})
	if kind == "" {
		return true
	}
	c.add(path, kind, v)
	return false
}

// value checks v against the key gk, recursing into objects and arrays.
func (c *checker) value(gk, path string, v any) {
	f := c.s.fields[gk]
	if !typeOK(f.Type, v) {
		if f.Type == Date {
			c.add(path, domain.KindBadDate, v)
		} else {
			c.add(path, domain.KindExpectedType, v)
		}
		return
	}
	switch f.Type {
	case String:
		s := v.(string)
		n := float64(utf8.RuneCountInString(s))
		if f.Min != nil && n < *f.Min {
			c.add(path, domain.KindMinString, v)
			return
		}
		if f.Max != nil && n > *f.Max {
			c.add(path, domain.KindMaxString, v)
			return
		}
		if f.regex != nil && !f.regex.MatchString(s) {
			c.add(path, domain.KindRegEx, v)
			return
		}
	case Number, Integer:
		n, _ := docops.ToFloat(v)
		if kind := numberBounds(f, n); kind != "" {
			c.add(path, kind, v)
			return
		}
	case Date:
		if kind := numberBounds(f, float64(v.(time.Time).UnixMilli())); kind != "" {
			c.add(path, kind, v)
			return
		}
	case Array:
		list := v.([]any)
		if f.MinCount != nil && len(list) < *f.MinCount {
			c.add(path, domain.KindMinCount, v)
			return
		}
		if f.MaxCount != nil && len(list) > *f.MaxCount {
			c.add(path, domain.KindMaxCount, v)
			return
		}
	}
	if len(f.AllowedValues) > 0 && f.Type != Array && !allowed(f.AllowedValues, v) {
		c.add(path, domain.KindNotAllowed, v)
		return
	}
	if !c.custom(f, path, v, true) {
		return
	}
	if f.Blackbox {
		return
	}
	switch val := v.(type) {
	case map[string]any:
		if f.Type == Object {
			c.object(val, gk, path)
		}
	case []any:
		c.elements(gk, path, val)
	}
}

func (c *checker) elements(gk, path string, list []any) {
	elem := joinPath(gk, "$")
	ef := c.s.fields[elem]
	if ef == nil {
		return
	}
	for i, el := range list {
		p := joinPath(path, strconv.Itoa(i))
		if el == nil {
			if !ef.Optional && !ef.implied {
				c.add(p, domain.KindRequired, nil)
			}
			continue
		}
		c.value(elem, p, el)
	}
}

func numberBounds(f *Field, n float64) domain.ErrorKind {
	if f.Min != nil {
		if f.ExclusiveMin && n <= *f.Min {
			return domain.KindMinNumberExcl
		}
		if n < *f.Min {
			return domain.KindMinNumber
		}
	}
	if f.Max != nil {
		if f.ExclusiveMax && n >= *f.Max {
			return domain.KindMaxNumberExcl
		}
		if n > *f.Max {
			return domain.KindMaxNumber
		}
	}
	return ""
}

func typeOK(t Type, v any) bool {
	switch t {
	case String:
		_, ok := v.(string)
		return ok
	case Number:
		_, ok := docops.ToFloat(v)
		return ok
	case Integer:
		n, ok := docops.ToFloat(v)
		return ok && n == math.Trunc(n)
	case Boolean:
		_, ok := v.(bool)
		return ok
	case Date:
		_, ok := v.(time.Time)
		return ok
	case Object:
		_, ok := v.(map[string]any)
		return ok
	case Array:
		_, ok := v.([]any)
		return ok
	}
	return true
}

func allowed(values []any, v any) bool {
	for _, a := range values {
		if docops.Equal(a, v) {
			return true
		}
	}
	return false
}

func (c *checker) deniedUpdate(gk string) bool {
	for key := gk; key != ""; key, _ = splitLast(key) {
		if f, ok := c.s.fields[key]; ok && f.DenyUpdate {
			return true
		}
	}
	return false
}

func (c *checker) denyUpdates(mod domain.Document) {
	for _, op := range sortedKeys(mod) {
		fields, ok := mod[op].(map[string]any)
		if !ok || op == domain.OpSetOnInsert {
			continue
		}
		for _, path := range sortedKeys(fields) {
			v := fields[path]
			if c.deniedUpdate(genericKey(path)) {
				c.add(path, domain.KindUpdateNotAllowed, v)
			}
		}
	}
}

func (c *checker) modifier(mod domain.Document) {
	for _, op := range sortedKeys(mod) {
		fields, ok := mod[op].(map[string]any)
		if !ok {
			continue
		}
		c.op = op
		for _, path := range sortedKeys(fields) {
			c.operand(op, path, fields[path])
		}
	}
	c.op = ""
}

func (c *checker) operand(op, path string, v any) {
	gk := genericKey(path)
	if !c.s.AllowsKey(path) {
		c.add(path, domain.KindKeyNotInSchema, v)
		return
	}
	if op != domain.OpSetOnInsert && c.deniedUpdate(gk) {
		c.add(path, domain.KindUpdateNotAllowed, v)
		return
	}
	f := c.s.fields[gk]
	if f == nil {
		// inside a blackbox
		return
	}
	switch op {
	case domain.OpSet, domain.OpSetOnInsert:
		if v == nil {
			if c.required(f) {
				c.add(path, domain.KindRequired, nil)
			}
			return
		}
		if m, ok := v.(map[string]any); ok && f.Type == Object {
			c.unknownKeys(m, path)
		}
		c.value(gk, path, v)
	case domain.OpUnset:
		if c.required(f) {
			c.add(path, domain.KindRequired, nil)
		}
	case domain.OpInc:
		if f.Type != Number && f.Type != Integer && f.Type != Any {
			c.add(path, domain.KindExpectedType, v)
			return
		}
		if _, ok := docops.ToFloat(v); !ok {
			c.add(path, domain.KindExpectedType, v)
		}
	case domain.OpPush, domain.OpAddToSet:
		if f.Type != Array && f.Type != Any {
			c.add(path, domain.KindExpectedType, v)
			return
		}
		elem := joinPath(gk, "$")
		if c.s.fields[elem] == nil {
			return
		}
		for _, el := range docops.EachValues(v) {
			if el == nil {
				continue
			}
			c.value(elem, path, el)
		}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
