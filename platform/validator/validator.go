// Package validator wraps go-playground/validator for inbound payloads.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// Validator is safe for concurrent use; share one instance.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (val *Validator) Struct(s any) error {
	return val.v.Struct(s)
}

// FirstFailedField names the struct field of the first failed rule, or "".
func FirstFailedField(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return ""
	}
	return errs[0].Field()
}
