package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fairwayhq/fairway-backend/internal/apperr"
)

type FieldErrors map[string]string

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct validates dst and returns an apperr.Invalid carrying per-field messages.
func Struct(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	return apperr.InvalidErr("validation failed", fromError(err))
}

func fromError(err error) FieldErrors {
	out := FieldErrors{}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.Field()] = messageForTag(fe.Tag(), fe.Param())
		}
		return out
	}

	out["_"] = "invalid request body"
	return out
}

func messageForTag(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "len":
		return "must be exactly " + param + " characters"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + param
	case "numeric":
		return "must be numeric"
	default:
		return "is invalid"
	}
}
