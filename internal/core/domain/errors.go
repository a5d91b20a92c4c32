package domain

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/zeebo/errs"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrConfiguration marks mistakes in schema setup or in how a mutation was
	// requested. These are never retried.
	ErrConfiguration = errs.Class("schema configuration")
	// ErrAuthorization marks mutations the authoritative side refused.
	ErrAuthorization = errs.Class("access denied")
	// ErrStorage wraps failures of the underlying storage engine.
	ErrStorage = errs.Class("storage")
)

// ErrorKind names the rule a field failed.
type ErrorKind string

const (
	KindRequired         ErrorKind = "required"
	KindMinString        ErrorKind = "minString"
	KindMaxString        ErrorKind = "maxString"
	KindMinNumber        ErrorKind = "minNumber"
	KindMaxNumber        ErrorKind = "maxNumber"
	KindMinNumberExcl    ErrorKind = "minNumberExclusive"
	KindMaxNumberExcl    ErrorKind = "maxNumberExclusive"
	KindMinCount         ErrorKind = "minCount"
	KindMaxCount         ErrorKind = "maxCount"
	KindBadDate          ErrorKind = "badDate"
	KindExpectedType     ErrorKind = "expectedType"
	KindNotAllowed       ErrorKind = "notAllowed"
	KindKeyNotInSchema   ErrorKind = "keyNotInSchema"
	KindRegEx            ErrorKind = "regEx"
	KindNotUnique        ErrorKind = "notUnique"
	KindUpdateNotAllowed ErrorKind = "updateNotAllowed"
	KindInsertNotAllowed ErrorKind = "insertNotAllowed"
	KindFailed           ErrorKind = "failedValidation"
)

// FieldError is one validation failure tied to a field path.
type FieldError struct {
	Name    string    `json:"name"`
	Type    ErrorKind `json:"type"`
	Value   any       `json:"value,omitempty"`
	Message string    `json:"message,omitempty"`
}

// CopyFieldErrors returns a copy of errs that shares no slice storage with it.
func CopyFieldErrors(list []FieldError) []FieldError {
	if list == nil {
		return nil
	}
	out := make([]FieldError, len(list))
	copy(out, list)
	return out
}

// ValidationError is the structured error callers receive when a mutation
// fails validation.
type ValidationError struct {
	Message     string
	InvalidKeys []FieldError
	Code        string
	// Context is the validation context the errors were read from.
	Context ValidationContext
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Sanitized returns the view of e that may be handed to an untrusted
// caller: the field errors only, in the authoritative re-check shape.
func (e *ValidationError) Sanitized() *BoundaryError {
	return NewInvalidBoundaryError(e.InvalidKeys)
}

// ReasonInvalid is the reason an authoritative re-check failure is sent with.
const ReasonInvalid = "INVALID"

// BoundaryError is the only error shape that crosses an execution boundary.
type BoundaryError struct {
	Status  int    `json:"error"`
	Reason  string `json:"reason"`
	Details string `json:"details,omitempty"`
}

func (e *BoundaryError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s [%d] %s", e.Reason, e.Status, e.Details)
	}
	return fmt.Sprintf("%s [%d]", e.Reason, e.Status)
}

// NewInvalidBoundaryError packs field errors from an authoritative re-check.
func NewInvalidBoundaryError(list []FieldError) *BoundaryError {
	return &BoundaryError{Status: 400, Reason: ReasonInvalid, Details: EncodeFieldErrors(list)}
}

// EncodeFieldErrors serialises a FieldError list for transport.
func EncodeFieldErrors(list []FieldError) string {
	if list == nil {
		list = []FieldError{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// DecodeFieldErrors parses a list produced by EncodeFieldErrors.
func DecodeFieldErrors(details string) ([]FieldError, error) {
	var list []FieldError
	if err := json.Unmarshal([]byte(details), &list); err != nil {
		return nil, fmt.Errorf("decode field errors: %w", err)
	}
	return list, nil
}

// UniqueIndexPrefix prefixes the name of every unique index created for a
// schema field. The prefix lets duplicate-key failures be traced to a field.
const UniqueIndexPrefix = "c2_"

// DuplicateKeyMarker is the code storage engines put in front of a
// duplicate-key failure.
const DuplicateKeyMarker = "E11000"

// DuplicateKeyError is produced by storage engines when a write would violate
// a unique index.
type DuplicateKeyError struct {
	Collection string
	Index      string
	Value      any
}

func (e *DuplicateKeyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s duplicate key error collection: %s index: %s dup key: { : ", DuplicateKeyMarker, e.Collection, e.Index)
	if s, ok := e.Value.(string); ok {
		fmt.Fprintf(&b, "%q", s)
	} else {
		fmt.Fprintf(&b, "%v", e.Value)
	}
	b.WriteString(" }")
	return b.String()
}

// NewValidationError builds the structured error for the current errors of
// vc. The first error provides the headline; its path is appended when the
// field is nested.
func NewValidationError(vc ValidationContext, suffix, code string) *ValidationError {
	invalid := vc.ValidationErrors()
	message := "Failed validation"
	if len(invalid) > 0 {
		first := invalid[0].Name
		message = vc.KeyErrorMessage(first)
		if strings.Contains(first, ".") {
			message = fmt.Sprintf("%s (%s)", message, first)
		}
	}
	message = strings.TrimSpace(message + " " + suffix)
	return &ValidationError{
		Message:     message,
		InvalidKeys: invalid,
		Code:        code,
		Context:     vc,
	}
}
