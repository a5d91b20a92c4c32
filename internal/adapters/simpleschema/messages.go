package simpleschema

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

// humanize turns "firstName" or "first_name" into "First name".
func humanize(key string) string {
	var b strings.Builder
	for i, r := range key {
		switch {
		case r == '_' || r == '-':
			b.WriteRune(' ')
		case i > 0 && unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return key
	}
	runes := []rune(out)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (s *Schema) message(fe domain.FieldError) string {
	label := s.label(fe.Name)
	f := s.lookup(fe.Name)
	switch fe.Type {
	case domain.KindRequired:
		return label + " is required"
	case domain.KindMinString:
		return fmt.Sprintf("%s must be at least %s characters", label, boundOf(f, true))
	case domain.KindMaxString:
		return fmt.Sprintf("%s cannot exceed %s characters", label, boundOf(f, false))
	case domain.KindMinNumber:
		return fmt.Sprintf("%s must be at least %s", label, boundOf(f, true))
	case domain.KindMaxNumber:
		return fmt.Sprintf("%s cannot exceed %s", label, boundOf(f, false))
	case domain.KindMinNumberExcl:
		return fmt.Sprintf("%s must be greater than %s", label, boundOf(f, true))
	case domain.KindMaxNumberExcl:
		return fmt.Sprintf("%s must be less than %s", label, boundOf(f, false))
	case domain.KindMinCount:
		if f != nil && f.MinCount != nil {
			return fmt.Sprintf("You must specify at least %d values", *f.MinCount)
		}
		return "You must specify more values"
	case domain.KindMaxCount:
		if f != nil && f.MaxCount != nil {
			return fmt.Sprintf("You cannot specify more than %d values", *f.MaxCount)
		}
		return "You must specify fewer values"
	case domain.KindBadDate:
		return label + " is not a valid date"
	case domain.KindExpectedType:
		if f != nil {
			return fmt.Sprintf("%s must be of type %s", label, typeName(f.Type))
		}
		return label + " has the wrong type"
	case domain.KindNotAllowed:
		return fmt.Sprintf("%v is not an allowed value", fe.Value)
	case domain.KindKeyNotInSchema:
		return fe.Name + " is not allowed by the schema"
	case domain.KindRegEx:
		return label + " failed regular expression validation"
	case domain.KindNotUnique:
		return label + " must be unique"
	case domain.KindUpdateNotAllowed:
		return label + " cannot be updated"
	case domain.KindInsertNotAllowed:
		return label + " cannot be set during an insert"
	}
	return label + " is invalid"
}

func boundOf(f *Field, min bool) string {
	if f == nil {
		return "?"
	}
	if min && f.Min != nil {
		return formatNumber(*f.Min)
	}
	if !min && f.Max != nil {
		return formatNumber(*f.Max)
	}
	return "?"
}

func typeName(t Type) string {
	switch t {
	case String:
		return "String"
	case Number:
		return "Number"
	case Integer:
		return "Integer"
	case Boolean:
		return "Boolean"
	case Date:
		return "Date"
	case Object:
		return "Object"
	case Array:
		return "Array"
	}
	return string(t)
}
