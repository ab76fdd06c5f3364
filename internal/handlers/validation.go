package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/saeid-a/bookingchat/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notification_type", func(fl validator.FieldLevel) bool {
		return models.NotificationType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("booking_status", func(fl validator.FieldLevel) bool {
		return models.ValidBookingStatus(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// validateRequest returns the first violation as a client-facing message, or
// "" when the request is valid.
func validateRequest(req any) string {
	err := validate.Struct(req)
	if err == nil {
		return ""
	}

	var violations validator.ValidationErrors
	if !errors.As(err, &violations) || len(violations) == 0 {
		return "Invalid request body"
	}

	first := violations[0]
	field := first.Field()
	switch first.Tag() {
	case "required", "notblank":
		return field + " is required"
	case "notification_type":
		return field + " is not a known notification type"
	case "booking_status":
		return field + " is not a known booking status"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, first.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, first.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, first.Param())
	default:
		return field + " is invalid"
	}
}
