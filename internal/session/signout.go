package session

// file: internal/session/signout.go

import (
	"context"

	"github.com/cockroachdb/errors"
)

// SignOut ends the session. Registered sign-out hooks and the platform's
// Google sign-out run first; any failure aborts before the backend is
// told. The gate is held throughout, so Initializing stays true until the
// sign-out has finished.
func (c *Controller) SignOut(ctx context.Context) error {
	release := c.gate.Enter()
	defer release()

	c.passwordMode.Set(false)

	for _, hook := range c.signOutHooks.snapshot() {
		if err := hook(ctx); err != nil {
			c.logger.Error("Sign-out hook failed.", "error", err)
			return errors.Wrap(err, "sign-out hook failed")
		}
	}
	if err := c.platform.GoogleSignOut(ctx); err != nil {
		c.logger.Error("Google sign-out failed.", "error", err)
		return errors.Wrap(err, "google sign-out failed")
	}

	if err := c.tracker.ClearDurable(ctx); err != nil {
		return err
	}
	if err := c.store.Remove(ctx, KeyMagicLinkReason); err != nil {
		return errors.Wrap(err, "failed to clear magic link reason")
	}

	if err := c.backend.SignOut(ctx); err != nil {
		c.logger.Error("Backend sign-out failed.", "error", err)
		return err
	}
	c.logger.Info("Signed out.")
	return nil
}
