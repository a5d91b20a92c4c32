package httpapi

import (
	"github.com/atvirokodosprendimai/docgate/internal/core/docops"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

// Options is the wire form of domain.MutationOptions. Bypass and Validate
// are accepted but an untrusted caller cannot make them take effect.
type Options struct {
	Bypass                 bool           `json:"bypass,omitempty"`
	Validate               *bool          `json:"validate,omitempty"`
	GetAutoValues          *bool          `json:"getAutoValues,omitempty"`
	Filter                 *bool          `json:"filter,omitempty"`
	AutoConvert            *bool          `json:"autoConvert,omitempty"`
	TrimStrings            *bool          `json:"trimStrings,omitempty"`
	RemoveEmptyStrings     *bool          `json:"removeEmptyStrings,omitempty"`
	RemoveNullsFromArrays  *bool          `json:"removeNullsFromArrays,omitempty"`
	Pick                   []string       `json:"pick,omitempty"`
	Omit                   []string       `json:"omit,omitempty"`
	ValidationContext      string         `json:"validationContext,omitempty"`
	ExtendAutoValueContext map[string]any `json:"extendAutoValueContext,omitempty"`
	ExtendedCustomContext  map[string]any `json:"extendedCustomContext,omitempty"`
	Selector               map[string]any `json:"selector,omitempty"`
	Upsert                 bool           `json:"upsert,omitempty"`
	Multi                  bool           `json:"multi,omitempty"`
}

func (o *Options) toDomain() *domain.MutationOptions {
	if o == nil {
		return nil
	}
	return &domain.MutationOptions{
		Bypass:                 o.Bypass,
		Validate:               o.Validate,
		GetAutoValues:          o.GetAutoValues,
		Filter:                 o.Filter,
		AutoConvert:            o.AutoConvert,
		TrimStrings:            o.TrimStrings,
		RemoveEmptyStrings:     o.RemoveEmptyStrings,
		RemoveNullsFromArrays:  o.RemoveNullsFromArrays,
		Pick:                   o.Pick,
		Omit:                   o.Omit,
		ValidationContextName:  o.ValidationContext,
		ExtendAutoValueContext: o.ExtendAutoValueContext,
		ExtendedCustomContext:  o.ExtendedCustomContext,
		Selector:               o.Selector,
		Upsert:                 o.Upsert,
		Multi:                  o.Multi,
	}
}

// InsertBody is the body of POST .../documents.
type InsertBody struct {
	Doc     map[string]any `json:"doc"`
	Options *Options       `json:"options,omitempty"`
}

// UpdateBody is the body of PATCH .../documents.
type UpdateBody struct {
	Selector any            `json:"selector"`
	Modifier map[string]any `json:"modifier"`
	Options  *Options       `json:"options,omitempty"`
}

// RemoveBody is the body of POST .../documents:remove.
type RemoveBody struct {
	Selector any `json:"selector"`
}

// FindBody is the body of POST .../documents:find.
type FindBody struct {
	Selector any `json:"selector"`
	Limit    int `json:"limit,omitempty"`
}

type InsertResponse struct {
	ID string `json:"id"`
}

type UpdateResponse struct {
	Affected   int64  `json:"affected"`
	InsertedID string `json:"insertedId,omitempty"`
}

type ListResponse struct {
	Items []map[string]any `json:"items"`
}

// SchemaBody is the body of PUT .../schemas.
type SchemaBody struct {
	Adapter    string         `json:"adapter"`
	Selector   map[string]any `json:"selector,omitempty"`
	Definition any            `json:"definition"`
	Replace    bool           `json:"replace,omitempty"`
}

// fromWire converts extended JSON dates in a decoded body.
func fromWire(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	docops.FromExtended(m)
	return m
}

func selectorFromWire(s any) any {
	if m, ok := s.(map[string]any); ok {
		return fromWire(m)
	}
	return s
}

func toWire(docs []domain.Document) []map[string]any {
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, docops.ToExtended(map[string]any(d)).(map[string]any))
	}
	return out
}
