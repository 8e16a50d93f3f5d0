// Package response defines the JSON envelope every endpoint answers with:
// {"success": true, "data": ...} on success and
// {"success": false, "error": ..., "kind": ..., "details": [...]} on failure.
package response

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// Machine-readable failure kinds.
const (
	KindInvalidInput            = "InvalidInput"
	KindNotFound                = "NotFound"
	KindMethodNotAllowed        = "MethodNotAllowed"
	KindCodeGenerationExhausted = "CodeGenerationExhausted"
	KindInternal                = "Internal"
)

type Response struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Kind    string            `json:"kind,omitempty"`
	Details []ValidationError `json:"details,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func Success(data any) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

func Failure(kind, msg string) Response {
	return Response{
		Success: false,
		Error:   msg,
		Kind:    kind,
	}
}

// ValidationFailure builds an InvalidInput response with one detail per failed field.
func ValidationFailure(err error) Response {
	resp := Failure(KindInvalidInput, "validation error")
	resp.Details = getValidationErrors(err)
	return resp
}

func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "url":
		return "invalid url"
	default:
		return "invalid value"
	}
}

func getValidationErrors(err error) []ValidationError {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}

	validationErrs := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		validationErrs = append(validationErrs, ValidationError{
			Field:   e.Field(),
			Message: messageForTag(e.Tag()),
		})
	}

	return validationErrs
}
