package identity

// file: internal/identity/errors.go

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Backend error codes the session core interprets. Every other code is
// passed through untouched.
const (
	CodeRequiresRecentLogin            = "auth/requires-recent-login"
	CodeWrongPassword                  = "auth/wrong-password"
	CodeInvalidCredential              = "auth/invalid-credential"
	CodeAccountExistsWithDifferentCred = "auth/account-exists-with-different-credential"
	CodePopupClosedByUser              = "auth/popup-closed-by-user"
	CodeCancelledPopupRequest          = "auth/cancelled-popup-request"

	CodeUserNotFound       = "auth/user-not-found"
	CodeEmailAlreadyInUse  = "auth/email-already-in-use"
	CodeInvalidActionCode  = "auth/invalid-action-code"
	CodeInvalidEmail       = "auth/invalid-email"
	CodeWeakPassword       = "auth/weak-password"
	CodeInvalidCustomToken = "auth/invalid-custom-token"
	CodeNoCurrentUser      = "auth/no-current-user"
	CodeProviderLinked     = "auth/provider-already-linked"
)

// Error is a failure reported by the identity backend.
type Error struct {
	Code    string
	Message string
	// Credential is the pending federated credential attached to
	// CodeAccountExistsWithDifferentCred failures.
	Credential *Credential
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("identity error (%s)", e.Code)
	}
	return fmt.Sprintf("identity error (%s): %s", e.Code, e.Message)
}

// NewError creates a backend error with a code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf returns the backend code carried by err, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries one of the given codes.
func HasCode(err error, codes ...string) bool {
	c := CodeOf(err)
	if c == "" {
		return false
	}
	for _, code := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// CredentialFromError returns the pending credential of an
// account-exists failure, or nil.
func CredentialFromError(err error) *Credential {
	var e *Error
	if errors.As(err, &e) {
		return e.Credential
	}
	return nil
}

// IsCancellation reports whether err means the user abandoned a federated sign-in.
func IsCancellation(err error) bool {
	return HasCode(err, CodePopupClosedByUser, CodeCancelledPopupRequest)
}
