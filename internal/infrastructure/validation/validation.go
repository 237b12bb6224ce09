// Package validation checks decoded payloads against their `validate` struct
// tags.
package validation

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Struct returns validator.ValidationErrors when a field breaks its rule.
func Struct(v any) error {
	return instance().Struct(v)
}
