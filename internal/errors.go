package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeAuth         ErrorType = "AUTH_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeStore        ErrorType = "STORE_ERROR"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeRequired         ErrorCode = "REQUIRED"
	ErrCodeTooLong          ErrorCode = "TOO_LONG"
	ErrCodeTooShort         ErrorCode = "TOO_SHORT"
	ErrCodeInvalidEmail     ErrorCode = "INVALID_EMAIL"
	ErrCodeNotUnique        ErrorCode = "NOT_UNIQUE"
	ErrCodeInvalidIDs       ErrorCode = "INVALID_IDS"
	ErrCodeNoValidRoles     ErrorCode = "NO_VALID_ROLES"
	ErrCodeConfirmation     ErrorCode = "CONFIRMATION_MISMATCH"
	ErrCodeInvalidBody      ErrorCode = "INVALID_BODY"

	ErrCodeUserNotFound       ErrorCode = "USER_NOT_FOUND"
	ErrCodeRoleNotFound       ErrorCode = "ROLE_NOT_FOUND"
	ErrCodePermissionNotFound ErrorCode = "PERMISSION_NOT_FOUND"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeCurrentPassword    ErrorCode = "CURRENT_PASSWORD_INCORRECT"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrCodeTokenRevoked       ErrorCode = "TOKEN_REVOKED"
	ErrCodeMissingToken       ErrorCode = "MISSING_TOKEN"
	ErrCodeInsufficientPerms  ErrorCode = "INSUFFICIENT_PERMISSIONS"

	ErrCodeStoreFailure ErrorCode = "STORE_FAILURE"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so sentinel AppErrors work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusUnprocessableEntity,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

// NewAuthError reports a credential mismatch. The status differs between a
// failed login (401) and a failed current-password check (422).
func NewAuthError(message string, code ErrorCode, status int) *AppError {
	return &AppError{
		Type:       ErrorTypeAuth,
		Code:       code,
		Message:    message,
		StatusCode: status,
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewStoreError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeStore,
		Code:       ErrCodeStoreFailure,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var (
	ErrUserNotFound       = NewNotFoundError("User not found", ErrCodeUserNotFound)
	ErrRoleNotFound       = NewNotFoundError("Role not found", ErrCodeRoleNotFound)
	ErrPermissionNotFound = NewNotFoundError("Permission not found", ErrCodePermissionNotFound)
	ErrNoValidRoles       = NewValidationError("No valid roles found", ErrCodeNoValidRoles)

	ErrInvalidCredentials = NewAuthError("Invalid email or password", ErrCodeInvalidCredentials, http.StatusUnauthorized)
	ErrCurrentPassword    = NewAuthError("Current password is incorrect", ErrCodeCurrentPassword, http.StatusUnprocessableEntity)
	ErrMissingToken       = NewUnauthorizedError("Missing authorization token", ErrCodeMissingToken)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
	ErrTokenRevoked       = NewUnauthorizedError("Token has been revoked", ErrCodeTokenRevoked)
	ErrInsufficientPerms  = NewForbiddenError("Forbidden: insufficient permissions", ErrCodeInsufficientPerms)
)

// IsAppError unwraps err until it finds an *AppError.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Type == t
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
