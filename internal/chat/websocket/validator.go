package websocket

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

type MessageValidator interface {
	Validate(payload any) error
}

type DefaultValidator struct {
	validate *validator.Validate
}

func NewDefaultValidator() *DefaultValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})

	return &DefaultValidator{validate: v}
}

// Validate returns the first failing field as a client-readable error.
func (v *DefaultValidator) Validate(payload any) error {
	err := v.validate.Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		switch fe.Tag() {
		case "required", "notblank":
			return fmt.Errorf("%s is required", fe.Field())
		case "max":
			return fmt.Errorf("%s must be at most %s characters", fe.Field(), fe.Param())
		default:
			return fmt.Errorf("%s failed %s validation", fe.Field(), fe.Tag())
		}
	}
	return err
}
