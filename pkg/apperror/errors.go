package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// Error codes.
const (
	CodeValidation        = "VAL_001"
	CodeNotFound          = "IOU_001"
	CodeDuplicateIOU      = "IOU_002"
	CodeInvalidTransition = "IOU_003"
	CodeMerchantMismatch  = "IOU_004"
	CodeSettlementFailed  = "SET_001"
	CodeSettlementTimeout = "SET_002"
	CodeChainUnavailable  = "SET_003"
	CodeStorage           = "SYS_001"
	CodeLockUnavailable   = "SYS_002"
)

// ---- Validation (VAL) ----

// Validation returns a 400 error for malformed or missing request fields.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

func ErrPayloadTooLarge(limit int64) *AppError {
	return New("VAL_002", fmt.Sprintf("Request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
}

// ---- IOU ledger (IOU) ----

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrDuplicateAuthorization() *AppError {
	return New(CodeDuplicateIOU, "Offline authorization has already been submitted", http.StatusConflict)
}

func ErrInvalidTransition(from, to string) *AppError {
	return New(CodeInvalidTransition, fmt.Sprintf("IOU cannot move from %s to %s", from, to), http.StatusConflict)
}

func ErrMerchantMismatch() *AppError {
	return New(CodeMerchantMismatch, "IOU is not payable to this merchant", http.StatusForbidden)
}

// ---- Settlement (SET) ----

func ErrSettlementFailed(err error) *AppError {
	return Wrap(CodeSettlementFailed, "On-chain settlement failed", http.StatusBadGateway, err)
}

func ErrSettlementTimeout(err error) *AppError {
	return Wrap(CodeSettlementTimeout, "On-chain settlement not confirmed in time", http.StatusGatewayTimeout, err)
}

func ErrChainUnavailable(err error) *AppError {
	return Wrap(CodeChainUnavailable, "Blockchain not connected", http.StatusServiceUnavailable, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_004", "Insufficient privileges", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// ErrStorage wraps a persistence fault.
func ErrStorage(err error) *AppError {
	return Wrap(CodeStorage, "Internal storage error", http.StatusInternalServerError, err)
}

func ErrLockUnavailable(err error) *AppError {
	return Wrap(CodeLockUnavailable, "Lock acquisition failed", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeStorage, "Internal server error", http.StatusInternalServerError, err)
}
