// Package session is the client-side authentication session controller.
//
// A Controller tracks whether the user is signed in and through which
// provider, persists what it needs to survive restarts and redirects, and
// exposes the sign-in, sign-up, sign-out, password and profile operations.
// User-initiated calls only prime metadata (provider hints, pending
// magic-link state); the backend's auth-state notifications drive the
// actual session transitions through reconciliation.
package session

// file: internal/session/types.go

import (
	"strings"

	"github.com/dkoosis/authsession/internal/identity"
)

// Provider identifies the credential method that produced a session.
type Provider string

// Known providers. ProviderUnknown ("") means no provider is known;
// ProviderNone marks a sign-in attempt that failed or was abandoned.
const (
	ProviderUnknown          Provider = ""
	ProviderNone             Provider = "none"
	ProviderEmailAndPassword Provider = "emailAndPassword"
	ProviderEmailLink        Provider = "emailLink"
	ProviderGoogle           Provider = "google"
	ProviderDevLogin         Provider = "devLogin"
)

// ParseProvider maps a persisted provider id back to a Provider.
func ParseProvider(s string) (Provider, bool) {
	switch p := Provider(s); p {
	case ProviderUnknown, ProviderNone, ProviderEmailAndPassword, ProviderEmailLink, ProviderGoogle, ProviderDevLogin:
		return p, true
	default:
		return ProviderUnknown, false
	}
}

// providerForMethod maps backend sign-in method ids to providers.
func providerForMethod(method string) (Provider, bool) {
	switch method {
	case identity.MethodPassword:
		return ProviderEmailAndPassword, true
	case identity.MethodEmailLink:
		return ProviderEmailLink, true
	case identity.MethodGoogle:
		return ProviderGoogle, true
	case identity.MethodCustom:
		return ProviderDevLogin, true
	default:
		return ProviderUnknown, false
	}
}

// AuthUser is the backend-reported identity of the signed-in user.
type AuthUser struct {
	UID           string
	DisplayName   string
	Email         string
	EmailVerified bool
	PhoneNumber   string
	PhotoURL      string
}

func authUserFromInfo(info identity.UserInfo) AuthUser {
	return AuthUser{
		UID:           info.UID,
		DisplayName:   info.DisplayName,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		PhoneNumber:   info.PhoneNumber,
		PhotoURL:      info.PhotoURL,
	}
}

// AuthUserWithProviders is the committed session snapshot. Snapshots are
// never mutated after commit; changes produce a new snapshot.
type AuthUserWithProviders struct {
	AuthUser
	// Providers are the credential methods registered for the account's email.
	Providers []Provider
	// CurrentProvider is the provider that produced this session.
	CurrentProvider Provider
}

// HasProvider reports whether p is registered for the account.
func (u *AuthUserWithProviders) HasProvider(p Provider) bool {
	if u == nil {
		return false
	}
	for _, v := range u.Providers {
		if v == p {
			return true
		}
	}
	return false
}

func (u *AuthUserWithProviders) clone() *AuthUserWithProviders {
	if u == nil {
		return nil
	}
	c := *u
	c.Providers = append([]Provider(nil), u.Providers...)
	return &c
}

// MagicLinkReason records why a magic link was requested, so redemption
// knows which follow-up to perform.
type MagicLinkReason string

// Magic-link request reasons.
const (
	ReasonSignIn        MagicLinkReason = "signIn"
	ReasonSignUp        MagicLinkReason = "signUp"
	ReasonPasswordReset MagicLinkReason = "passwordReset"
)

// AuthError is the error kind carried by an AuthResult.
type AuthError string

// Result error kinds returned by UpdatePassword.
const (
	AuthErrorNone            AuthError = ""
	ErrInvalidAuthState      AuthError = "InvalidAuthState"
	ErrWrongPassword         AuthError = "WrongPassword"
	ErrNeedsReauthentication AuthError = "NeedsReauthentication"
)

// AuthResult is the tagged outcome of UpdatePassword.
type AuthResult struct {
	OK    bool
	Error AuthError
}

func authOK() AuthResult                   { return AuthResult{OK: true} }
func authFailed(kind AuthError) AuthResult { return AuthResult{Error: kind} }

// MagicLinkOutcome classifies a redemption attempt.
type MagicLinkOutcome string

// Redemption outcomes.
const (
	MagicLinkSucceeded      MagicLinkOutcome = "Succeeded"
	MagicLinkInvalidLink    MagicLinkOutcome = "InvalidLink"
	MagicLinkNoEmailPending MagicLinkOutcome = "NoEmailPending"
	MagicLinkFailed         MagicLinkOutcome = "Failed"
)

// MagicLinkResult is returned by RedeemEmailLink. Email is set on success
// and on failure so the caller can show which address was used.
type MagicLinkResult struct {
	Outcome MagicLinkOutcome
	Email   string
	Reason  MagicLinkReason
}

// Persisted keys.
const (
	KeyLastProvider           = "authsession.lastProvider"
	KeyMagicLinkEmail         = "authsession.magicLinkEmail"
	KeyMagicLinkReason        = "authsession.magicLinkReason"
	KeyPasswordResetRequested = "authsession.passwordResetRequested"
)

const flagTrue = "true"

// NormalizeEmail trims surrounding whitespace and lowercases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
