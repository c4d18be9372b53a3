package service

import (
	"errors"
	"strings"

	"rss-scraper/internal/domain"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validationError converts validator output for the first failing field into
// a domain.ValidationError.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return domain.NewValidationError(field, "is required")
	case "http_url", "url":
		return domain.NewValidationError(field, "must be an http or https URL")
	case "email":
		return domain.NewValidationError(field, "must be a valid email address")
	default:
		return domain.NewValidationError(field, "failed %q check", fe.Tag())
	}
}

func validateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return validationError(err)
	}
	return nil
}
