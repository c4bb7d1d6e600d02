package guard

import (
	"errors"
	"fmt"
	"net/http"
)

// Security error codes.
const (
	ErrCodeMissingCredential    = "guard.missing_credential"    // Required token header absent
	ErrCodeMalformedCredential  = "guard.malformed_credential"  // Base64/decode/deserialize failure
	ErrCodeDecryptionFailed     = "guard.decryption_failed"     // Cipher rejected ciphertext or key
	ErrCodeUnknownAccount       = "guard.unknown_account"       // Identity store: no such account
	ErrCodeIncorrectCredentials = "guard.incorrect_credentials" // Identity store: bad secret
	ErrCodeLockedAccount        = "guard.locked_account"        // Identity store: account locked
	ErrCodeAuthenticationFailed = "guard.authentication_failed" // Any other auth failure
	ErrCodeForbidden            = "guard.forbidden"             // No required permission granted
)

// httpStatusMap maps error codes to HTTP status codes.
var httpStatusMap = map[string]int{
	ErrCodeMissingCredential:    http.StatusUnauthorized, // 401
	ErrCodeMalformedCredential:  http.StatusBadRequest,   // 400
	ErrCodeDecryptionFailed:     http.StatusUnauthorized, // 401
	ErrCodeUnknownAccount:       http.StatusUnauthorized, // 401
	ErrCodeIncorrectCredentials: http.StatusUnauthorized, // 401
	ErrCodeLockedAccount:        http.StatusLocked,       // 423
	ErrCodeAuthenticationFailed: http.StatusUnauthorized, // 401
	ErrCodeForbidden:            http.StatusForbidden,    // 403
}

// SecurityError is the typed failure outcome attached to an exchange.
// Message carries the policy-level wording shown externally; Err retains
// the underlying cause (e.g. the realm's error) for diagnostics.
type SecurityError struct {
	Code    string // One of the ErrCode* constants
	Message string // Human-readable, user-facing description
	Status  int    // HTTP status code
	Err     error  // Underlying cause, never shown externally
}

// Error implements the error interface.
func (e *SecurityError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *SecurityError) HTTPStatus() int {
	return e.Status
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *SecurityError) Unwrap() error {
	return e.Err
}

// newError creates a SecurityError with appropriate HTTP status.
func newError(code, message string, cause error) *SecurityError {
	return &SecurityError{
		Code:    code,
		Message: message,
		Status:  httpStatusMap[code],
		Err:     cause,
	}
}

// ErrMissingCredential creates an error for an absent token header.
func ErrMissingCredential() *SecurityError {
	return newError(ErrCodeMissingCredential, "credential header missing", nil)
}

// ErrMalformedCredential creates an error for undecodable token material.
func ErrMalformedCredential(cause error) *SecurityError {
	return newError(ErrCodeMalformedCredential, "credential payload malformed", cause)
}

// ErrDecryptionFailed creates an error for a cipher rejection. The cause
// is retained internally but no further detail is ever surfaced, so
// failures cannot be distinguished by callers (no decryption oracle).
func ErrDecryptionFailed(cause error) *SecurityError {
	return newError(ErrCodeDecryptionFailed, "unable to decrypt credential", cause)
}

// ErrUnknownAccount creates an error for a username the store does not know.
func ErrUnknownAccount(username string, cause error) *SecurityError {
	return newError(ErrCodeUnknownAccount, fmt.Sprintf("no user with username of %s", username), cause)
}

// ErrIncorrectCredentials creates an error for a secret mismatch.
func ErrIncorrectCredentials(username string, cause error) *SecurityError {
	return newError(ErrCodeIncorrectCredentials, fmt.Sprintf("password for account %s was incorrect", username), cause)
}

// ErrLockedAccount creates an error for a locked account.
func ErrLockedAccount(username string, cause error) *SecurityError {
	return newError(ErrCodeLockedAccount,
		fmt.Sprintf("account for username %s is locked; contact administrator", username), cause)
}

// ErrAuthenticationFailed creates an error for any other identity-store
// authentication failure.
func ErrAuthenticationFailed(cause error) *SecurityError {
	return newError(ErrCodeAuthenticationFailed, "authentication failed", cause)
}

// ErrForbidden creates an error for a subject that holds none of the
// required permissions.
func ErrForbidden(cause error) *SecurityError {
	return newError(ErrCodeForbidden, "subject lacks required permissions", cause)
}

// ErrorCode extracts the security error code from an error.
// Returns empty string if the error is not a SecurityError.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var serr *SecurityError
	if errors.As(err, &serr) {
		return serr.Code
	}
	return ""
}

// IsSecurityError returns true if the error is or wraps a SecurityError.
func IsSecurityError(err error) bool {
	if err == nil {
		return false
	}
	var serr *SecurityError
	return errors.As(err, &serr)
}
