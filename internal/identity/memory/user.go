package memory

// file: internal/identity/memory/user.go

import (
	"context"

	"github.com/dkoosis/authsession/internal/identity"
)

// user is the handle returned by CurrentUser and inside credentials.
type user struct {
	backend *Backend
	uid     string
}

var _ identity.User = (*user)(nil)

func (u *user) account() (*account, error) {
	acct, ok := u.backend.accounts[u.uid]
	if !ok {
		return nil, identity.NewError(identity.CodeUserNotFound, "the account no longer exists")
	}
	return acct, nil
}

// Info implements identity.User.
func (u *user) Info() identity.UserInfo {
	u.backend.mu.Lock()
	defer u.backend.mu.Unlock()
	acct, err := u.account()
	if err != nil {
		return identity.UserInfo{UID: u.uid}
	}
	return identity.UserInfo{
		UID:           acct.uid,
		DisplayName:   acct.displayName,
		Email:         acct.email,
		EmailVerified: acct.emailVerified,
		PhoneNumber:   acct.phoneNumber,
		PhotoURL:      acct.photoURL,
	}
}

// UpdatePassword implements identity.User. It fails with
// CodeRequiresRecentLogin when the last authentication is too old.
func (u *user) UpdatePassword(_ context.Context, password string) error {
	b := u.backend
	hash, err := b.hashPassword(password)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	acct, err := u.account()
	if err != nil {
		return err
	}
	window := b.opts.RecentLoginWindow
	if window < 0 || b.opts.Now().Sub(acct.lastAuth) > window {
		return identity.NewError(identity.CodeRequiresRecentLogin, "this operation requires recent authentication")
	}
	acct.passwordHash = hash
	acct.addMethod(identity.MethodPassword)
	return nil
}

// UpdateProfile implements identity.User.
func (u *user) UpdateProfile(_ context.Context, update identity.ProfileUpdate) error {
	u.backend.mu.Lock()
	defer u.backend.mu.Unlock()
	acct, err := u.account()
	if err != nil {
		return err
	}
	if update.DisplayName != nil {
		acct.displayName = *update.DisplayName
	}
	if update.PhotoURL != nil {
		acct.photoURL = *update.PhotoURL
	}
	return nil
}

// ReauthenticateWithCredential implements identity.User. Only
// email/password credentials for the same account are accepted.
func (u *user) ReauthenticateWithCredential(_ context.Context, cred *identity.Credential) (*identity.UserCredential, error) {
	b := u.backend
	if cred == nil || cred.ProviderID != identity.MethodPassword {
		return nil, identity.NewError(identity.CodeInvalidCredential, "unsupported credential for re-authentication")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	acct, err := b.verifyPasswordLocked(cred.Email, cred.Password)
	if err != nil {
		return nil, err
	}
	if acct.uid != u.uid {
		return nil, identity.NewError("auth/user-mismatch", "the credential belongs to a different user")
	}
	acct.lastAuth = b.opts.Now()
	return &identity.UserCredential{User: u, ProviderID: identity.MethodPassword, Credential: cred}, nil
}

// LinkWithCredential implements identity.User.
func (u *user) LinkWithCredential(_ context.Context, cred *identity.Credential) (*identity.UserCredential, error) {
	b := u.backend
	if cred == nil {
		return nil, identity.NewError(identity.CodeInvalidCredential, "no credential to link")
	}

	var hash []byte
	if cred.ProviderID == identity.MethodPassword {
		h, err := b.hashPassword(cred.Password)
		if err != nil {
			return nil, err
		}
		hash = h
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	acct, err := u.account()
	if err != nil {
		return nil, err
	}
	if acct.hasMethod(cred.ProviderID) {
		return nil, identity.NewError(identity.CodeProviderLinked, "the provider is already linked")
	}
	if hash != nil {
		acct.passwordHash = hash
	}
	acct.addMethod(cred.ProviderID)
	return &identity.UserCredential{User: u, ProviderID: cred.ProviderID, Credential: cred}, nil
}
