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

// Error codes for the gateway classification boundary. Callers branch on
// these codes (via the Is* helpers), never on message text.
const (
	CodeNoCredential        = "SIGN_001"
	CodeInvalidKey          = "SIGN_002"
	CodeDuplicateSubmission = "GW_001"
	CodeTimeout             = "GW_002"
	CodeRemote              = "GW_003"
	CodeUnknownMethod       = "GW_004"
	CodeRateLimitDeferred   = "RATE_001"
	CodeValidation          = "VAL_001"
	CodeUnauthorized        = "SEC_001"
	CodeInvalidToken        = "SEC_002"
	CodeNotFound            = "SYS_002"
	CodeInternal            = "SYS_001"
)

// ---- Signing (SIGN) ----

func ErrNoCredential(layer string) *AppError {
	return New(CodeNoCredential, fmt.Sprintf("no signing credential configured for layer %q", layer), http.StatusConflict)
}

func ErrInvalidKey(err error) *AppError {
	return Wrap(CodeInvalidKey, "stored signing key is not usable", http.StatusConflict, err)
}

// ---- Gateway classification (GW) ----

// ErrDuplicateSubmission means the remote platform detected a matching
// mutating request already accepted or in flight. Never blind-retry.
func ErrDuplicateSubmission(method string) *AppError {
	return New(CodeDuplicateSubmission, fmt.Sprintf("duplicate submission rejected by remote for %q", method), http.StatusConflict)
}

// ErrTimeout means the call was abandoned locally after the fixed gateway
// timeout. The remote effect of a mutating call is unknown afterwards.
func ErrTimeout(method string, err error) *AppError {
	return Wrap(CodeTimeout, fmt.Sprintf("remote call %q timed out", method), http.StatusGatewayTimeout, err)
}

// ErrRemote carries the remote platform's failure message verbatim.
func ErrRemote(remoteMessage string) *AppError {
	return New(CodeRemote, remoteMessage, http.StatusBadGateway)
}

func ErrUnknownMethod(method string) *AppError {
	return New(CodeUnknownMethod, fmt.Sprintf("unknown remote method %q", method), http.StatusBadRequest)
}

// ---- Rate limiting (RATE) ----

// ErrRateLimitDeferred means the admission window for this call key has not
// reopened yet. Callers should reuse a cached value or wait.
func ErrRateLimitDeferred(method string) *AppError {
	return New(CodeRateLimitDeferred, fmt.Sprintf("call window for %q not yet open", method), http.StatusTooManyRequests)
}

// ---- Validation (VAL) ----

func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// ---- Security (SEC) ----

func ErrUnauthorized() *AppError {
	return New(CodeUnauthorized, "missing or malformed authorization", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "invalid or expired token", http.StatusUnauthorized)
}

// ---- System (SYS) ----

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "internal server error", http.StatusInternalServerError, err)
}

// hasCode reports whether err is an AppError carrying the given code.
func hasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsDuplicateSubmission reports whether err is the remote duplicate-submission signal.
func IsDuplicateSubmission(err error) bool { return hasCode(err, CodeDuplicateSubmission) }

// IsTimeout reports whether err is a local gateway-timeout abandonment.
func IsTimeout(err error) bool { return hasCode(err, CodeTimeout) }

// IsRateLimitDeferred reports whether err is an admission-window deferral.
func IsRateLimitDeferred(err error) bool { return hasCode(err, CodeRateLimitDeferred) }

// IsSigning reports whether err is a credential/signing failure.
func IsSigning(err error) bool {
	return hasCode(err, CodeNoCredential) || hasCode(err, CodeInvalidKey)
}
