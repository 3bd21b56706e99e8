package server

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/askpdf/server/internal/apperr"
)

// requestValidator adapts validator/v10 to echo.Validator. Field errors are
// reported by their JSON name.
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return &requestValidator{validate: v}
}

func (rv *requestValidator) Validate(i any) error {
	err := rv.validate.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		if fe.Tag() == "required" || fe.Tag() == "notblank" {
			return apperr.New(apperr.ErrValidation, "No '%s' found in JSON request", fe.Field())
		}
		return apperr.New(apperr.ErrValidation, "invalid '%s'", fe.Field())
	}
	return apperr.Wrap(apperr.ErrValidation, fmt.Errorf("failed to validate request: %w", err))
}
