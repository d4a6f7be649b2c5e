package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// formatValidationErrors converts validator errors into a field -> message map.
func formatValidationErrors(err error) map[string]string {
	details := make(map[string]string)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		details["request"] = err.Error()
		return details
	}

	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			details[fe.Field()] = "This field is required"
		case "min":
			details[fe.Field()] = fmt.Sprintf("Must have at least %s items", fe.Param())
		default:
			details[fe.Field()] = fmt.Sprintf("Failed validation: %s", fe.Tag())
		}
	}
	return details
}
