package editor

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"substore-client/internal/domain"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report wire names rather than Go field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := validate.RegisterValidation("platform", validatePlatform); err != nil {
		panic(fmt.Sprintf("failed to register platform validator: %v", err))
	}
}

func validatePlatform(fl validator.FieldLevel) bool {
	return domain.IsPlatform(fl.Field().String())
}

// validateStruct runs the struct tags of v and reports the first failing
// rule as a *domain.ValidationError.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return fmt.Errorf("validation failed: %w", err)
	}
	return toValidationError(validationErrors[0])
}

func toValidationError(fe validator.FieldError) error {
	var message string
	switch fe.Tag() {
	case "required":
		message = "cannot be empty"
	case "required_if":
		parts := strings.Fields(fe.Param())
		message = "cannot be empty"
		if len(parts) == 2 {
			message = fmt.Sprintf("cannot be empty when %s is %s", strings.ToLower(parts[0]), parts[1])
		}
	case "oneof":
		message = fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value())
	case "platform":
		message = fmt.Sprintf("must be one of [%s], got %q", strings.Join(domain.Platforms, " "), fe.Value())
	default:
		message = fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
	return domain.NewValidationError(fe.Field(), fe.Tag(), message)
}
