package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrAssetNotFound       ErrorType = "ASSET_NOT_FOUND"
	ErrMetadataFetchFailed ErrorType = "METADATA_FETCH_FAILED"
	ErrSignature           ErrorType = "SIGNATURE_ERROR"
	ErrOrderRejected       ErrorType = "ORDER_REJECTED"
	ErrNetwork             ErrorType = "NETWORK_ERROR"
	ErrValidation          ErrorType = "VALIDATION_ERROR"
	ErrDuplicate           ErrorType = "DUPLICATE"
	ErrRiskReject          ErrorType = "RISK_REJECT"
	ErrAuthFailed          ErrorType = "AUTH_FAILED"
	ErrInvalidRequest      ErrorType = "INVALID_REQUEST"
	ErrInternal            ErrorType = "INTERNAL_ERROR"
	ErrNotFound            ErrorType = "NOT_FOUND"
	ErrReadOnly            ErrorType = "READ_ONLY"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewRiskReject(msg string) *AppError {
	return New(ErrRiskReject, msg, nil)
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func NewValidation(msg string) *AppError {
	return New(ErrValidation, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// IsType reports whether any AppError in err's chain has type t.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrInternal
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrRiskReject, ErrInvalidRequest, ErrValidation:
		return http.StatusBadRequest
	case ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrReadOnly:
		return http.StatusForbidden
	case ErrAssetNotFound, ErrNotFound:
		return http.StatusNotFound
	case ErrDuplicate:
		return http.StatusConflict
	case ErrOrderRejected:
		return http.StatusUnprocessableEntity
	case ErrMetadataFetchFailed, ErrNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrRiskReject:
		return "Check order parameters against risk limits."
	case ErrAuthFailed:
		return "Check API keys and signing key configuration."
	case ErrAssetNotFound:
		return "Check the coin symbol against the exchange universe."
	case ErrMetadataFetchFailed, ErrNetwork:
		return "Exchange unreachable, retry later."
	case ErrDuplicate:
		return "An identical request is in flight or already completed."
	case ErrReadOnly:
		return "Gateway is in read-only mode."
	default:
		return ""
	}
}
