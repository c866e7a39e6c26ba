package importing

import (
	"errors"
	"fmt"
)

var (
	// ErrCurrencyNotFound is returned when an entry or statement names an
	// ISO 4217 code that is not in the currency table.
	ErrCurrencyNotFound = errors.New("currency not found")

	// ErrMissingIdentification is returned when an account cannot be
	// identified by any of IBAN, BIC or name.
	ErrMissingIdentification = errors.New("missing account identification")
)

// ValidationError reports input that was rejected before any database work.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a *ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
