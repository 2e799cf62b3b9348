package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/frahmantamala/rbac-admin/internal"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Validator returns the shared validator. Field names in errors follow the
// json tag so they match what the client sent.
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Struct validates s and converts failures into a VALIDATION_ERROR AppError
// carrying one entry per failing field.
func Struct(s interface{}) *apperrors.AppError {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError(err.Error(), apperrors.ErrCodeValidationFailed)
	}

	builder := NewBuilder()
	for _, fe := range fieldErrs {
		builder.Add(fe.Field(), messageFor(fe), codeFor(fe.Tag()))
	}
	return builder.Validate()
}

func messageFor(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required", "required_with":
		return fmt.Sprintf("The %s field is required.", field)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", field)
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("The %s must not have more than %s items.", field, fe.Param())
		}
		return fmt.Sprintf("The %s must not be greater than %s characters.", field, fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("The %s must have at least %s items.", field, fe.Param())
		}
		return fmt.Sprintf("The %s must be at least %s characters.", field, fe.Param())
	case "gt":
		return fmt.Sprintf("The %s must be greater than %s.", field, fe.Param())
	case "eqfield":
		return fmt.Sprintf("The %s confirmation does not match.", strings.TrimSuffix(field, " confirmation"))
	default:
		return fmt.Sprintf("The %s is invalid.", field)
	}
}

func codeFor(tag string) apperrors.ErrorCode {
	switch tag {
	case "required", "required_with":
		return apperrors.ErrCodeRequired
	case "email":
		return apperrors.ErrCodeInvalidEmail
	case "max":
		return apperrors.ErrCodeTooLong
	case "min":
		return apperrors.ErrCodeTooShort
	case "eqfield":
		return apperrors.ErrCodeConfirmation
	default:
		return apperrors.ErrCodeValidationFailed
	}
}

// Builder collects field errors found outside struct tags (uniqueness,
// unknown ids) so they reach the client in the same shape.
type Builder struct {
	errors []apperrors.ValidationError
}

func NewBuilder() *Builder {
	return &Builder{errors: make([]apperrors.ValidationError, 0)}
}

func (b *Builder) Add(field, message string, code apperrors.ErrorCode) *Builder {
	b.errors = append(b.errors, apperrors.ValidationError{
		Field:   field,
		Message: message,
		Code:    string(code),
	})
	return b
}

func (b *Builder) Merge(err *apperrors.AppError) *Builder {
	if err == nil {
		return b
	}
	if details, ok := err.Details.(apperrors.ValidationErrors); ok {
		b.errors = append(b.errors, details.Errors...)
		return b
	}
	return b.Add("", err.Message, err.Code)
}

func (b *Builder) HasErrors() bool {
	return len(b.errors) > 0
}

func (b *Builder) Validate() *apperrors.AppError {
	if len(b.errors) == 0 {
		return nil
	}
	return apperrors.NewValidationError("The given data was invalid.", apperrors.ErrCodeValidationFailed).
		WithDetails(apperrors.ValidationErrors{Errors: b.errors})
}

// Unique reports a duplicate value for field.
func Unique(field string) *apperrors.AppError {
	return NewBuilder().
		Add(field, fmt.Sprintf("The %s has already been taken.", strings.ReplaceAll(field, "_", " ")), apperrors.ErrCodeNotUnique).
		Validate()
}

// InvalidIDs reports ids that do not reference an existing row.
func InvalidIDs(field string, ids []int64) *apperrors.AppError {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return NewBuilder().
		Add(field, fmt.Sprintf("The selected %s are invalid: %s.", field, strings.Join(parts, ", ")), apperrors.ErrCodeInvalidIDs).
		Validate()
}
