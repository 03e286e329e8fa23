package core

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"waispath/internal/types"
)

// errCodeValidationFailed is the error code for struct-level validation
// failures on decoded request bodies.
const errCodeValidationFailed types.ErrorCode = "validation_failed"

// Validator wraps go-playground/validator and translates field errors into
// the structured AppError shape the response layer understands.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with the standard tag set.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// ValidateStruct validates the struct tags on req. On failure it returns a
// *types.AppError (400) whose Details map each offending field to the rule
// it violated.
func (v *Validator) ValidateStruct(req any) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation target is not a struct", err)
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "unexpected validation failure", err)
	}

	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		details[fieldPath(fe)] = rule
	}

	appErr := types.NewAppError(errCodeValidationFailed, "request validation failed", err)
	appErr.Details = details
	return appErr
}

// fieldPath strips the top-level struct name from the validator namespace,
// leaving a dotted path clients can map back to the request body.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.IndexByte(ns, '.'); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}
