package domain

// ValidateOptions select between whole-document and modifier validation.
type ValidateOptions struct {
	Modifier bool
	Upsert   bool
	// Extended is handed to custom validators.
	Extended AutoValueContext
}

// ValidationContext is a named holder of the most recent validation's
// errors. One validation at a time may run against a context.
type ValidationContext interface {
	Name() string
	// Validate resets the error list, validates obj and reports whether it
	// passed. It never panics on bad input.
	Validate(obj Document, opts ValidateOptions) bool
	// ValidateOne re-validates a single key, replacing only that key's errors.
	ValidateOne(obj Document, key string, opts ValidateOptions) bool
	ValidationErrors() []FieldError
	AddValidationErrors(list []FieldError)
	SetValidationErrors(list []FieldError)
	Reset()
	IsValid() bool
	// KeyErrorMessage returns the message of the first error for key.
	KeyErrorMessage(key string) string
}
