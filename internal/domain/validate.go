package domain

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the struct tags of an entity before it is written.
func Validate(v any) error {
	if err := validatorInstance().Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if u, ok := v.(*User); ok && u.Status != UserDisabled && u.Status != UserActive {
		return fmt.Errorf("%w: user status must be 0 or 1, got %d", ErrValidation, u.Status)
	}
	return nil
}
