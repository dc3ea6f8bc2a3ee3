package contextutils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct checks v against its validate tags. A missing required field yields
// ErrMissingRequired, any other violation ErrInvalidInput.
func ValidateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return WrapErrorf(ErrInvalidInput, "validation failed: %v", err)
	}

	var missing, invalid []string
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Namespace())
			continue
		}
		invalid = append(invalid, fmt.Sprintf("%s (%s=%s)", fe.Namespace(), fe.Tag(), fe.Param()))
	}
	if len(missing) > 0 {
		return WrapErrorf(ErrMissingRequired, "missing required fields: %s", strings.Join(missing, ", "))
	}
	return WrapErrorf(ErrInvalidInput, "invalid fields: %s", strings.Join(invalid, ", "))
}
