package domain

// MutationKind is the kind of write a request performs.
type MutationKind int

const (
	Insert MutationKind = iota + 1
	Update
	Upsert
	Remove
)

func (k MutationKind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Upsert:
		return "upsert"
	case Remove:
		return "remove"
	default:
		return "unknown"
	}
}

// MutationRequest is one insert, update, upsert or remove.
type MutationRequest struct {
	Kind     MutationKind
	Doc      Document
	Selector any
	Modifier Document
	Options  *MutationOptions
}

// IsUpsert reports whether the request may insert when nothing matches.
func (r MutationRequest) IsUpsert() bool {
	return r.Kind == Upsert || (r.Kind == Update && r.Options != nil && r.Options.Upsert)
}

// Target returns the document or modifier the request writes.
func (r MutationRequest) Target() Document {
	if r.Kind == Insert {
		return r.Doc
	}
	return r.Modifier
}

// MutationOptions are the per-operation options. Nil toggles fall back to
// the schema's clean defaults.
type MutationOptions struct {
	Bypass   bool
	Validate *bool
	// GetAutoValues set to false disables auto-values on trusted paths.
	GetAutoValues *bool

	Filter                *bool
	AutoConvert           *bool
	TrimStrings           *bool
	RemoveEmptyStrings    *bool
	RemoveNullsFromArrays *bool

	Pick []string
	Omit []string

	ValidationContextName string
	ValidationContext     ValidationContext

	ExtendAutoValueContext map[string]any
	ExtendedCustomContext  map[string]any

	// Selector feeds schema resolution for selector schemas.
	Selector map[string]any

	Upsert bool
	Multi  bool
}

// Clone returns a shallow copy of o. A nil receiver yields empty options.
func (o *MutationOptions) Clone() *MutationOptions {
	if o == nil {
		return &MutationOptions{}
	}
	c := *o
	return &c
}

// Bool returns a pointer to v for use in MutationOptions.
func Bool(v bool) *bool {
	return &v
}

// BoolOr dereferences p or returns def when it is nil.
func BoolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
