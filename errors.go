package catalogue

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConstraint ErrorType = "constraint"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeInternal   ErrorType = "internal"
)

// CatalogueError is the error type returned by the catalogue packages.
type CatalogueError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *CatalogueError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s:%s] field '%s': %s", e.Type, e.Code, e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *CatalogueError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to a CatalogueError
func (e *CatalogueError) WithDetails(details map[string]any) *CatalogueError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail adds a single detail to a CatalogueError
func (e *CatalogueError) WithDetail(key string, value any) *CatalogueError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause adds a cause to a CatalogueError
func (e *CatalogueError) WithCause(cause error) *CatalogueError {
	e.Cause = cause
	return e
}

// WithField adds field context to a CatalogueError
func (e *CatalogueError) WithField(field string) *CatalogueError {
	e.Field = field
	return e
}

// Error codes
const (
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeInvalidValue        = "INVALID_VALUE"
	ErrCodeInvalidCode         = "INVALID_CODE"
	ErrCodeOptionGroupRequired = "OPTION_GROUP_REQUIRED"

	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeOptionNotFound      = "OPTION_NOT_FOUND"
	ErrCodeOptionGroupNotFound = "OPTION_GROUP_NOT_FOUND"
	ErrCodeAttributeNotFound   = "ATTRIBUTE_NOT_FOUND"
	ErrCodeValueNotFound       = "VALUE_NOT_FOUND"
	ErrCodeProductNotFound     = "PRODUCT_NOT_FOUND"
	ErrCodeEntityNotFound      = "ENTITY_NOT_FOUND"

	ErrCodeDuplicateValue   = "DUPLICATE_VALUE"
	ErrCodeDuplicateOption  = "DUPLICATE_OPTION"
	ErrCodeDuplicateProduct = "DUPLICATE_PRODUCT"
	ErrCodeInUse            = "IN_USE"
	ErrCodeConstraintFailed = "CONSTRAINT_FAILED"

	ErrCodeStorageFailed   = "STORAGE_FAILED"
	ErrCodeFileStoreFailed = "FILE_STORE_FAILED"
	ErrCodeCircuitOpen     = "CIRCUIT_OPEN"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// NewCatalogueError creates a new CatalogueError
func NewCatalogueError(errorType ErrorType, code, message string) *CatalogueError {
	return &CatalogueError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
}

// NewValidationError creates a validation error
func NewValidationError(field, message string) *CatalogueError {
	return &CatalogueError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeValidationFailed,
		Message: message,
		Field:   field,
		Details: make(map[string]any),
	}
}

// NewNotFoundError creates a not found error for the given kind of record.
func NewNotFoundError(code, message string) *CatalogueError {
	return &CatalogueError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
}

// NewOptionNotFoundError is returned when an option text does not exist in a group.
func NewOptionNotFoundError(groupID int64, option string) *CatalogueError {
	return &CatalogueError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeOptionNotFound,
		Message: fmt.Sprintf("option %q not found in group %d", option, groupID),
		Details: map[string]any{
			"group_id": groupID,
			"option":   option,
		},
	}
}

// NewOptionGroupNotFoundError is returned when an option group is missing.
func NewOptionGroupNotFoundError(groupID int64) *CatalogueError {
	return &CatalogueError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeOptionGroupNotFound,
		Message: fmt.Sprintf("option group %d not found", groupID),
		Details: map[string]any{
			"group_id": groupID,
		},
	}
}

// NewConstraintViolationError creates a constraint violation error
func NewConstraintViolationError(code, message string) *CatalogueError {
	return &CatalogueError{
		Type:    ErrorTypeConstraint,
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
}

// NewDuplicateValueError reports a second value row for the same attribute and product.
func NewDuplicateValueError(attributeID, productID int64) *CatalogueError {
	return &CatalogueError{
		Type:    ErrorTypeConstraint,
		Code:    ErrCodeDuplicateValue,
		Message: "value already exists, use the update path",
		Details: map[string]any{
			"attribute_id": attributeID,
			"product_id":   productID,
		},
	}
}

// NewStorageError creates a storage error
func NewStorageError(message string, cause error) *CatalogueError {
	return &CatalogueError{
		Type:    ErrorTypeStorage,
		Code:    ErrCodeStorageFailed,
		Message: message,
		Cause:   cause,
		Details: make(map[string]any),
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *CatalogueError {
	return &CatalogueError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
		Details: make(map[string]any),
	}
}

func hasType(err error, t ErrorType) bool {
	var ce *CatalogueError
	if errors.As(err, &ce) {
		return ce.Type == t
	}
	return false
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return hasType(err, ErrorTypeValidation) }

// IsNotFound reports whether err is a not found error.
func IsNotFound(err error) bool { return hasType(err, ErrorTypeNotFound) }

// IsConstraintViolation reports whether err is a constraint violation.
func IsConstraintViolation(err error) bool { return hasType(err, ErrorTypeConstraint) }

// ErrorCode returns the code of a CatalogueError in err's chain, or "".
func ErrorCode(err error) string {
	var ce *CatalogueError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
