package jsonschema

import (
	"strings"
	"sync"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

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
	var kept []domain.FieldError
	for _, fe := range vc.errors {
		if fe.Name != key && !strings.HasPrefix(fe.Name, key+".") {
			kept = append(kept, fe)
		}
	}
	valid := true
	for _, fe := range found {
		if fe.Name == key || strings.HasPrefix(fe.Name, key+".") {
			kept = append(kept, fe)
			valid = false
		}
	}
	vc.errors = kept
	return valid
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
			fe.Message = vc.schema.message(fe, "")
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
			return fe.Message
		}
	}
	return ""
}
