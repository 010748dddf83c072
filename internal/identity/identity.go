// Package identity defines the boundary to the remote identity backend:
// the service that verifies credentials, issues sessions and pushes
// auth-state notifications. The session core depends only on these types.
package identity

// file: internal/identity/identity.go

import (
	"context"
)

// Sign-in method ids reported by FetchSignInMethodsForEmail.
const (
	MethodPassword  = "password"
	MethodEmailLink = "emailLink"
	MethodGoogle    = "google.com"
	MethodCustom    = "custom"
)

// UserInfo is the identity the backend reports for the signed-in user.
type UserInfo struct {
	UID           string
	DisplayName   string
	Email         string
	EmailVerified bool
	PhoneNumber   string
	PhotoURL      string
}

// ProfileUpdate carries the profile fields to change. Nil fields are left alone.
type ProfileUpdate struct {
	DisplayName *string
	PhotoURL    *string
}

// ActionCodeSettings parameterizes an emailed sign-in link.
type ActionCodeSettings struct {
	// URL is where the link returns the user after the backend verified it.
	URL string
}

// UserCredential is the result of a successful sign-in.
type UserCredential struct {
	User       User
	ProviderID string
	Credential *Credential
	IsNewUser  bool
}

// User is the backend handle for the signed-in account.
type User interface {
	Info() UserInfo
	UpdatePassword(ctx context.Context, password string) error
	UpdateProfile(ctx context.Context, update ProfileUpdate) error
	ReauthenticateWithCredential(ctx context.Context, cred *Credential) (*UserCredential, error)
	LinkWithCredential(ctx context.Context, cred *Credential) (*UserCredential, error)
}

// FederatedProvider obtains a credential from a third party identity
// provider, typically by sending the user through a browser consent page.
type FederatedProvider interface {
	ProviderID() string
	Credential(ctx context.Context) (*Credential, error)
}

// Backend is the identity service consumed by the session controller.
type Backend interface {
	// OnAuthStateChanged registers listener. The backend calls it once with
	// the current state and after every sign-in state change afterwards,
	// until the returned function is called.
	OnAuthStateChanged(listener func()) (unsubscribe func())

	// CurrentUser returns nil when nobody is signed in.
	CurrentUser() User

	FetchSignInMethodsForEmail(ctx context.Context, email string) ([]string, error)
	SignInWithEmailAndPassword(ctx context.Context, email, password string) (*UserCredential, error)
	CreateUserWithEmailAndPassword(ctx context.Context, email, password string) (*UserCredential, error)
	SendSignInLinkToEmail(ctx context.Context, email string, settings ActionCodeSettings) error
	IsSignInWithEmailLink(link string) bool
	SignInWithEmailLink(ctx context.Context, email, link string) (*UserCredential, error)

	// SignInWithPopup returns (nil, nil) when the user closed the consent page.
	SignInWithPopup(ctx context.Context, provider FederatedProvider) (*UserCredential, error)

	// SignInWithCustomToken signs in with a backend-trusted token (developer bypass).
	SignInWithCustomToken(ctx context.Context, token string) (*UserCredential, error)

	SignOut(ctx context.Context) error
}
