package simpleschema

import (
	"strings"
	"sync"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

// ValidationContext holds the errors of the latest validation run against
// its schema.
type ValidationContext struct {
	name   string
	schema *Schema

	mu     sync.Mutex
	errors []domain.FieldError
}

var _ domain.ValidationContext = (*ValidationContext)(nil)

func (vc *ValidationContext) Name() string { return vc.name }

func (vc *ValidationContext) Validate(obj domain.Document, opts domain.ValidateOptions) bool {
	found := vc.schema.validate(obj, opts)
	vc.mu.Lock()
	defer vc.mu.Unlock()
	vc.errors = found
	return len(found) == 0
}

func (vc *ValidationContext) ValidateOne(obj domain.Document, key string, opts domain.ValidateOptions) bool {
	found := vc.schema.validate(obj, opts)
	vc.mu.Lock()
	defer vc.mu.Unlock()
	kept := vc.errors[:0:0]
	for _, fe := range vc.errors {
		if !coversKey(fe.Name, key) {
			kept = append(kept, fe)
		}
	}
	valid := true
	for _, fe := range found {
		if coversKey(fe.Name, key) {
			kept = append(kept, fe)
			valid = false
		}
	}
	vc.errors = kept
	return valid
}

func coversKey(name, key string) bool {
	return name == key || strings.HasPrefix(name, key+".")
}

func (vc *ValidationContext) ValidationErrors() []domain.FieldError {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return domain.CopyFieldErrors(vc.errors)
}

func (vc *ValidationContext) AddValidationErrors(list []domain.FieldError) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	for _, fe := range list {
		if fe.Message == "" {
			fe.Message = vc.schema.message(fe)
		}
		vc.errors = append(vc.errors, fe)
	}
}

func (vc *ValidationContext) SetValidationErrors(list []domain.FieldError) {
	vc.Reset()
	vc.AddValidationErrors(list)
}

func (vc *ValidationContext) Reset() {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	vc.errors = nil
}

func (vc *ValidationContext) IsValid() bool {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return len(vc.errors) == 0
}

func (vc *ValidationContext) KeyErrorMessage(key string) string {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	for _, fe := range vc.errors {
		if fe.Name == key {
			if fe.Message != "" {
				return fe.Message
			}
			return vc.schema.message(fe)
		}
	}
	return ""
}
