package usecase

import (
	"errors"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

// translate turns storage failures that concern a field into validation
// errors reported through the context the request was validated in.
func (c *Collection) translate(err error, a admitted) error {
	if a.vc == nil {
		return c.storageError(err)
	}
	kind := a.req.Kind

	var be *domain.BoundaryError
	if errors.As(err, &be) {
		switch {
		case be.Status == 400 && be.Reason == domain.ReasonInvalid:
			list, derr := domain.DecodeFieldErrors(be.Details)
			if derr != nil {
				c.log.Warn("undecodable authoritative errors", zap.Error(derr))
				return err
			}
			a.vc.AddValidationErrors(list)
			return c.registry.Adapter().ErrorObject(a.vc, c.suffix(kind), "")
		case strings.Contains(be.Reason, domain.DuplicateKeyMarker):
			return c.uniqueness(be.Reason, a, err)
		case strings.Contains(be.Details, domain.DuplicateKeyMarker):
			return c.uniqueness(be.Details, a, err)
		}
		return err
	}
	if strings.Contains(err.Error(), domain.DuplicateKeyMarker) {
		return c.uniqueness(err.Error(), a, err)
	}
	return c.storageError(err)
}

func (c *Collection) uniqueness(text string, a admitted, original error) error {
	name, value, ok := ParseDuplicateKey(text)
	if !ok {
		return c.storageError(original)
	}
	a.vc.AddValidationErrors([]domain.FieldError{{Name: name, Type: domain.KindNotUnique, Value: value}})
	return c.registry.Adapter().ErrorObject(a.vc, c.suffix(a.req.Kind), string(domain.KindNotUnique))
}

// ParseDuplicateKey recovers the field and value from a duplicate-key error.
// The field is the text following the unique index prefix up to the next
// space. The value is the JSON literal in the "dup key: { : ... }" tail, or
// the first quoted string when the tail does not decode.
func ParseDuplicateKey(text string) (field string, value any, ok bool) {
	if !strings.Contains(text, domain.DuplicateKeyMarker) {
		return "", nil, false
	}
	i := strings.Index(text, domain.UniqueIndexPrefix)
	if i < 0 {
		return "", nil, false
	}
	rest := text[i+len(domain.UniqueIndexPrefix):]
	if end := strings.IndexByte(rest, ' '); end >= 0 {
		rest = rest[:end]
	}
	if rest == "" {
		return "", nil, false
	}
	field = rest

	j := strings.Index(text, "dup key:")
	if j < 0 {
		return field, nil, true
	}
	tail := strings.TrimSpace(text[j+len("dup key:"):])
	tail = strings.TrimPrefix(tail, "{")
	if end := strings.LastIndexByte(tail, '}'); end >= 0 {
		tail = tail[:end]
	}
	tail = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tail), ":"))
	if tail == "" {
		return field, nil, true
	}
	var decoded any
	if err := json.Unmarshal([]byte(tail), &decoded); err == nil {
		return field, decoded, true
	}
	if q := strings.IndexByte(tail, '"'); q >= 0 {
		if e := strings.IndexByte(tail[q+1:], '"'); e >= 0 {
			return field, tail[q+1 : q+1+e], true
		}
	}
	return field, tail, true
}
