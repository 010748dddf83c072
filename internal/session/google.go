package session

// file: internal/session/google.go

import (
	"context"

	"github.com/dkoosis/authsession/internal/identity"
)

// SignInWithGoogle runs the federated Google sign-in. It returns false with
// a nil error when the user cancelled. When the Google account collides
// with an existing account, the pending Google credential is linked to the
// signed-in user if there is one, and the collision error is still returned.
func (c *Controller) SignInWithGoogle(ctx context.Context) (bool, error) {
	if c.google == nil {
		return false, ErrGoogleNotConfigured
	}

	c.tracker.SetNextProviderHint(ProviderGoogle)
	cred, err := c.backend.SignInWithPopup(ctx, c.google)
	switch {
	case err == nil && cred != nil:
		return true, nil
	case err == nil, identity.IsCancellation(err):
		c.tracker.SetNextProviderHint(ProviderNone)
		c.logger.Info("Google sign-in cancelled.")
		return false, nil
	}

	if identity.HasCode(err, identity.CodeAccountExistsWithDifferentCred) {
		// The Google hint stays: a successful link may notify, and that
		// session was reached through Google.
		c.linkPendingCredential(ctx, identity.CredentialFromError(err))
	} else {
		c.tracker.SetNextProviderHint(ProviderNone)
	}
	c.logger.Error("Google sign-in failed.", "error", err)
	return false, err
}

// linkPendingCredential attaches cred to the signed-in user. Failures are
// logged only; the caller reports the original collision.
func (c *Controller) linkPendingCredential(ctx context.Context, cred *identity.Credential) {
	u := c.backend.CurrentUser()
	if u == nil || cred == nil {
		c.logger.Warn("Cannot link Google credential without a signed-in user.")
		return
	}
	if _, err := u.LinkWithCredential(ctx, cred); err != nil {
		c.logger.Warn("Failed to link Google credential.", "error", err)
		return
	}
	c.logger.Info("Linked Google credential to the signed-in account.")
}
