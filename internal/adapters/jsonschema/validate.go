package jsonschema

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atvirokodosprendimai/docgate/internal/core/docops"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

var quoted = regexp.MustCompile(`'([^']*)'`)

var keywordKinds = map[string]domain.ErrorKind{
	"required":             domain.KindRequired,
	"type":                 domain.KindExpectedType,
	"minLength":            domain.KindMinString,
	"maxLength":            domain.KindMaxString,
	"minimum":              domain.KindMinNumber,
	"maximum":              domain.KindMaxNumber,
	"exclusiveMinimum":     domain.KindMinNumberExcl,
	"exclusiveMaximum":     domain.KindMaxNumberExcl,
	"minItems":             domain.KindMinCount,
	"maxItems":             domain.KindMaxCount,
	"enum":                 domain.KindNotAllowed,
	"const":                domain.KindNotAllowed,
	"pattern":              domain.KindRegEx,
	"additionalProperties": domain.KindKeyNotInSchema,
}

// validate returns every rule obj breaks. obj is never modified.
func (s *Schema) validate(obj domain.Document, opts domain.ValidateOptions) []domain.FieldError {
	r := &report{s: s}
	switch {
	case !opts.Modifier || !domain.IsModifier(obj):
		r.run(s.full, obj)
	case opts.Upsert:
		virtual := domain.Document{}
		if err := docops.Apply(virtual, docops.CloneDocument(obj), true); err != nil {
			r.operators(obj)
			r.run(s.partial, expandSet(obj))
			break
		}
		r.run(s.full, virtual)
		r.readOnly(obj)
	default:
		r.operators(obj)
		r.run(s.partial, expandSet(obj))
	}
	return r.out
}

// expandSet turns the $set paths of mod into a document.
func expandSet(mod domain.Document) domain.Document {
	doc := domain.Document{}
	set, _ := mod[domain.OpSet].(map[string]any)
	for path, v := range set {
		docops.Set(doc, path, docops.Clone(v))
	}
	return doc
}

type report struct {
	s    *Schema
	seen map[string]bool
	out  []domain.FieldError
}

func (r *report) add(fe domain.FieldError) {
	id := fe.Name + "\x00" + string(fe.Type)
	if r.seen[id] {
		return
	}
	if r.seen == nil {
		r.seen = make(map[string]bool)
	}
	r.seen[id] = true
	if fe.Message == "" {
		fe.Message = r.s.message(fe, "")
	}
	r.out = append(r.out, fe)
}

// normalize turns Go values into what the validator expects by a JSON
// round trip; dates become RFC 3339 strings.
func normalize(doc domain.Document) (any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *report) run(sch *santhosh.Schema, doc domain.Document) {
	v, err := normalize(doc)
	if err != nil {
		r.add(domain.FieldError{Name: "", Type: domain.KindFailed, Message: err.Error()})
		return
	}
	err = sch.Validate(v)
	if err == nil {
		return
	}
	var ve *santhosh.ValidationError
	if !errors.As(err, &ve) {
		r.add(domain.FieldError{Type: domain.KindFailed, Message: err.Error()})
		return
	}
	values, _ := v.(map[string]any)
	var leaves []*santhosh.ValidationError
	collectLeaves(ve, &leaves)
	sort.SliceStable(leaves, func(i, j int) bool { return leaves[i].InstanceLocation < leaves[j].InstanceLocation })
	for _, leaf := range leaves {
		r.leaf(leaf, values)
	}
}

func collectLeaves(ve *santhosh.ValidationError, out *[]*santhosh.ValidationError) {
	if len(ve.Causes) == 0 {
		*out = append(*out, ve)
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, out)
	}
}

func (r *report) leaf(ve *santhosh.ValidationError, values map[string]any) {
	path := pointerToPath(ve.InstanceLocation)
	loc := strings.Split(ve.KeywordLocation, "/")
	keyword := loc[len(loc)-1]
	kind, ok := keywordKinds[keyword]
	if !ok {
		kind = domain.KindFailed
		if keyword == "format" {
			kind = domain.KindBadDate
		}
	}
	switch kind {
	case domain.KindRequired, domain.KindKeyNotInSchema:
		for _, m := range quoted.FindAllStringSubmatch(ve.Message, -1) {
			name := joinPath(path, m[1])
			fe := domain.FieldError{Name: name, Type: kind}
			if kind == domain.KindKeyNotInSchema {
				fe.Value, _ = docops.Get(values, name)
			}
			r.add(fe)
		}
		return
	}
	value, _ := docops.Get(values, path)
	r.add(domain.FieldError{Name: path, Type: kind, Value: value, Message: r.s.message(domain.FieldError{Name: path, Type: kind}, ve.Message)})
}

func pointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}
	segs := strings.Split(ptr, "/")
	for i, s := range segs {
		s = strings.ReplaceAll(s, "~1", "/")
		segs[i] = strings.ReplaceAll(s, "~0", "~")
	}
	return strings.Join(segs, ".")
}

// operators checks what the partial schema cannot see: unknown keys,
// read only properties and required properties being unset.
func (r *report) operators(mod domain.Document) {
	req := map[string]bool{}
	for _, name := range required(r.s.raw) {
		req[name] = true
	}
	for _, op := range sortedKeys(mod) {
		fields, ok := mod[op].(map[string]any)
		if !ok {
			continue
		}
		for _, path := range sortedKeys(fields) {
			v := fields[path]
			switch {
			case !r.s.AllowsKey(path):
				r.add(domain.FieldError{Name: path, Type: domain.KindKeyNotInSchema, Value: v})
			case op != domain.OpSetOnInsert && r.s.readOnly(path):
				r.add(domain.FieldError{Name: path, Type: domain.KindUpdateNotAllowed, Value: v})
			case op == domain.OpUnset && req[path]:
				r.add(domain.FieldError{Name: path, Type: domain.KindRequired})
			case op == domain.OpSet && v == nil && req[path]:
				r.add(domain.FieldError{Name: path, Type: domain.KindRequired})
			case op == domain.OpInc:
				if n, _ := r.s.node(path); n != nil {
					if t := typeOf(n); t != "" && t != "number" && t != "integer" {
						r.add(domain.FieldError{Name: path, Type: domain.KindExpectedType, Value: v})
					}
				}
			case op == domain.OpPush || op == domain.OpAddToSet:
				if n, _ := r.s.node(path); n != nil {
					if t := typeOf(n); t != "" && t != "array" {
						r.add(domain.FieldError{Name: path, Type: domain.KindExpectedType, Value: v})
					}
				}
			}
		}
	}
}

func (r *report) readOnly(mod domain.Document) {
	for _, op := range sortedKeys(mod) {
		fields, ok := mod[op].(map[string]any)
		if !ok || op == domain.OpSetOnInsert {
			continue
		}
		for _, path := range sortedKeys(fields) {
			if r.s.readOnly(path) {
				r.add(domain.FieldError{Name: path, Type: domain.KindUpdateNotAllowed, Value: fields[path]})
			}
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

// message renders fe. detail is the validator's own wording, if any.
func (s *Schema) message(fe domain.FieldError, detail string) string {
	label := s.label(fe.Name)
	switch fe.Type {
	case domain.KindRequired:
		return label + " is required"
	case domain.KindKeyNotInSchema:
		return fe.Name + " is not allowed by the schema"
	case domain.KindNotUnique:
		return label + " must be unique"
	case domain.KindUpdateNotAllowed:
		return label + " cannot be updated"
	}
	if detail != "" {
		return label + " " + detail
	}
	return label + " is invalid"
}
