// internal/utils/validator.go
package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("license_key", validateLicenseKey)
	validate.RegisterValidation("domain", validateDomain)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validateLicenseKey(fl validator.FieldLevel) bool {
	return VerifyLicenseKeyFormat(strings.TrimSpace(fl.Field().String()))
}

func validateDomain(fl validator.FieldLevel) bool {
	return NormalizeDomain(fl.Field().String()) != ""
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

// FirstValidationMessage flattens validation errors into one line for the plugin
// endpoints, which answer with a bare {error} body.
func FirstValidationMessage(err error) string {
	if errs := GetValidationErrors(err); len(errs) > 0 {
		return errs[0].Message
	}
	return "Invalid request"
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return e.Field() + " must be at least " + e.Param() + " characters"
	case "max":
		return e.Field() + " must be at most " + e.Param() + " characters"
	case "gte":
		return e.Field() + " must be greater than or equal to " + e.Param()
	case "gt":
		return e.Field() + " must be greater than " + e.Param()
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	case "license_key":
		return "Invalid license key format"
	case "domain":
		return "Invalid domain"
	default:
		return e.Field() + " is invalid"
	}
}
