package session

// file: internal/session/password.go

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/authsession/internal/identity"
)

// SignInWithEmailPassword signs in with an email and password.
func (c *Controller) SignInWithEmailPassword(ctx context.Context, email, password string) error {
	return c.signInWith(ctx, ProviderEmailAndPassword, "email_password", func() error {
		_, err := c.backend.SignInWithEmailAndPassword(ctx, NormalizeEmail(email), password)
		return err
	})
}

// CreateAccountForEmailAndPassword creates an account and signs it in.
func (c *Controller) CreateAccountForEmailAndPassword(ctx context.Context, email, password string) error {
	return c.signInWith(ctx, ProviderEmailAndPassword, "create_account", func() error {
		_, err := c.backend.CreateUserWithEmailAndPassword(ctx, NormalizeEmail(email), password)
		return err
	})
}

// SignInWithDevLogin signs in with a developer bypass token.
func (c *Controller) SignInWithDevLogin(ctx context.Context, token string) error {
	return c.signInWith(ctx, ProviderDevLogin, "dev_login", func() error {
		_, err := c.backend.SignInWithCustomToken(ctx, token)
		return err
	})
}

// signInWith primes the provider hint, then calls the backend. The
// session itself changes only when the backend's notification arrives.
func (c *Controller) signInWith(_ context.Context, p Provider, op string, call func() error) error {
	c.tracker.SetNextProviderHint(p)
	if err := call(); err != nil {
		c.tracker.SetNextProviderHint(ProviderNone)
		c.logger.Error("Sign-in failed.", "operation", op, "error", err)
		return err
	}
	return nil
}

// UpdatePassword sets a new password for the signed-in user. When the
// backend demands a recent login and oldPassword is given, the user is
// re-authenticated with it and the update is retried once. An empty
// oldPassword means none was supplied.
//
// Expected conditions are reported in the result; other backend failures
// are returned as errors.
func (c *Controller) UpdatePassword(ctx context.Context, newPassword, oldPassword string) (AuthResult, error) {
	u := c.backend.CurrentUser()
	if u == nil {
		return authFailed(ErrInvalidAuthState), nil
	}

	err := u.UpdatePassword(ctx, newPassword)
	if err == nil {
		return c.passwordUpdated(ctx, u.Info().Email)
	}
	if !identity.HasCode(err, identity.CodeRequiresRecentLogin) {
		c.logger.Error("Failed to update password.", "error", err)
		return AuthResult{}, err
	}
	if oldPassword == "" {
		return authFailed(ErrNeedsReauthentication), nil
	}

	cred := identity.EmailCredential(u.Info().Email, oldPassword)
	if _, rerr := u.ReauthenticateWithCredential(ctx, cred); rerr != nil {
		if identity.HasCode(rerr, identity.CodeWrongPassword, identity.CodeInvalidCredential) {
			return authFailed(ErrWrongPassword), nil
		}
		c.logger.Warn("Re-authentication failed.", "error", rerr)
		return authFailed(ErrInvalidAuthState), nil
	}

	return c.UpdatePassword(ctx, newPassword, "")
}

// passwordUpdated refreshes the provider list and leaves password-setup mode.
func (c *Controller) passwordUpdated(ctx context.Context, email string) (AuthResult, error) {
	c.methods.Forget(email)
	if methods, err := c.fetchMethods(ctx, email); err != nil {
		c.logger.Warn("Failed to refresh sign-in methods after password update.", "error", err)
	} else {
		providers := providersFromMethods(methods)
		c.user.Update(func(old *AuthUserWithProviders) *AuthUserWithProviders {
			if old == nil || old.Email != email {
				return old
			}
			next := old.clone()
			next.Providers = providers
			return next
		})
	}

	c.passwordMode.Set(false)
	if err := c.store.Remove(ctx, KeyPasswordResetRequested); err != nil {
		return AuthResult{}, errors.Wrap(err, "failed to clear password reset flag")
	}
	c.logger.Info("Password updated.")
	return authOK(), nil
}

// UpdatePhotoURL changes the signed-in user's photo and republishes the snapshot.
func (c *Controller) UpdatePhotoURL(ctx context.Context, photoURL string) error {
	u := c.backend.CurrentUser()
	if u == nil {
		return ErrNotSignedIn
	}
	if err := u.UpdateProfile(ctx, identity.ProfileUpdate{PhotoURL: &photoURL}); err != nil {
		c.logger.Error("Failed to update photo URL.", "error", err)
		return err
	}
	uid := u.Info().UID
	c.user.Update(func(old *AuthUserWithProviders) *AuthUserWithProviders {
		if old == nil || old.UID != uid {
			return old
		}
		next := old.clone()
		next.PhotoURL = photoURL
		return next
	})
	return nil
}
