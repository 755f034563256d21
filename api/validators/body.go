package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// DecodeJSONBody decodes and validates dest, reporting failures as
// VALIDATION_ERROR.
func DecodeJSONBody(r *http.Request, dest any) error {
	return DecodeJSONBodyAs(r, dest, pkgerrors.CodeValidation)
}

// DecodeJSONBodyAs is DecodeJSONBody with a caller-chosen error code, so each
// API surface keeps its own vocabulary (INVALID_REQUEST for the cart).
func DecodeJSONBodyAs(r *http.Request, dest any, code pkgerrors.Code) error {
	defer func() {
		io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return pkgerrors.New(code, "request body is required")
		}
		return pkgerrors.Wrap(code, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err, code)
	}
	return nil
}

func formatValidationErrors(err error, code pkgerrors.Code) *pkgerrors.Error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldPath(fieldErr)] = validationMessage(fieldErr)
		}
		return pkgerrors.New(code, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(code, err, "validation failed")
}

// fieldPath drops the root struct name: "createProductRequest.variants[0].price"
// becomes "variants[0].price".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "uuid":
		return "must be a valid uuid"
	case "url":
		return "must be a valid url"
	case "email":
		return "must be a valid email address"
	}
	return "is invalid"
}
