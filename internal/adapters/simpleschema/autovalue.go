package simpleschema

import (
	"time"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

// FieldValue describes a key as it appears in the object being cleaned.
type FieldValue struct {
	IsSet    bool
	Value    any
	Operator string
}

// AutoValueCall is passed to auto-value functions.
type AutoValueCall struct {
	domain.AutoValueContext

	Key      string
	IsSet    bool
	Value    any
	Operator string

	lookup func(key string) FieldValue
	unset  bool
}

// Field looks up another key of the object being cleaned.
func (c *AutoValueCall) Field(key string) FieldValue {
	if c.lookup == nil {
		return FieldValue{}
	}
	return c.lookup(key)
}

// SiblingField looks up a key that shares the current key's parent.
func (c *AutoValueCall) SiblingField(key string) FieldValue {
	parent, _ := splitLast(c.Key)
	return c.Field(joinPath(parent, key))
}

// Unset removes the key from the object. The value returned alongside it is
// ignored.
func (c *AutoValueCall) Unset() { c.unset = true }

// AutoValueFunc computes a value for a key. Returning false leaves the key
// as the caller provided it.
type AutoValueFunc func(c *AutoValueCall) (any, bool)

type operatorValue struct {
	op    string
	value any
}

// OnOperator makes an auto-value target a specific modifier operator.
func OnOperator(op string, v any) any {
	return operatorValue{op: op, value: v}
}

var now = func() time.Time { return time.Now().UTC() }

func setOnCreate(v func(*AutoValueCall) (any, bool)) AutoValueFunc {
	return func(c *AutoValueCall) (any, bool) {
		if !c.IsInsert && !c.IsUpsert {
			c.Unset()
			return nil, true
		}
		val, ok := v(c)
		if !ok {
			c.Unset()
			return nil, true
		}
		if c.IsUpsert {
			return OnOperator(domain.OpSetOnInsert, val), true
		}
		return val, true
	}
}

func setOnWrite(v func(*AutoValueCall) (any, bool)) AutoValueFunc {
	return func(c *AutoValueCall) (any, bool) {
		val, ok := v(c)
		if !ok {
			c.Unset()
			return nil, true
		}
		return val, true
	}
}

func timestamp(*AutoValueCall) (any, bool) { return now(), true }

// actor yields nothing for anonymous callers.
func actor(c *AutoValueCall) (any, bool) { return c.UserID, c.UserID != "" }

// namedAutoValues can be referenced by name from schema files.
var namedAutoValues = map[string]AutoValueFunc{
	"createdAt": setOnCreate(timestamp),
	"updatedAt": setOnWrite(timestamp),
	"createdBy": setOnCreate(actor),
	"updatedBy": setOnWrite(actor),
}
