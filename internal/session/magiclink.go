package session

// file: internal/session/magiclink.go

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/authsession/internal/identity"
)

// SignInWithEmailLink emails a sign-in link to email. The address and the
// reason are persisted so the redemption, possibly after a restart, knows
// who is signing in and why.
func (c *Controller) SignInWithEmailLink(ctx context.Context, email string, reason MagicLinkReason) error {
	email = NormalizeEmail(email)

	if err := c.store.Set(ctx, KeyMagicLinkEmail, email); err != nil {
		return errors.Wrap(err, "failed to persist magic link email")
	}
	if err := c.store.Set(ctx, KeyMagicLinkReason, string(reason)); err != nil {
		return errors.Wrap(err, "failed to persist magic link reason")
	}
	if err := c.store.Remove(ctx, KeyPasswordResetRequested); err != nil {
		return errors.Wrap(err, "failed to clear password reset flag")
	}

	settings := identity.ActionCodeSettings{URL: c.platform.LocationURL()}
	if err := c.backend.SendSignInLinkToEmail(ctx, email, settings); err != nil {
		c.logger.Error("Failed to send sign-in link.", "reason", reason, "error", err)
		return err
	}
	c.logger.Info("Sign-in link sent.", "reason", reason)
	return nil
}

// PendingMagicLink returns the email and reason of the outstanding link
// request. ok is false when no request is pending.
func (c *Controller) PendingMagicLink(ctx context.Context) (email string, reason MagicLinkReason, ok bool, err error) {
	email, ok, err = c.store.Get(ctx, KeyMagicLinkEmail)
	if err != nil {
		return "", "", false, errors.Wrap(err, "failed to read magic link email")
	}
	if !ok || email == "" {
		return "", "", false, nil
	}
	raw, _, err := c.store.Get(ctx, KeyMagicLinkReason)
	if err != nil {
		return "", "", false, errors.Wrap(err, "failed to read magic link reason")
	}
	return email, MagicLinkReason(raw), true, nil
}

// RedeemEmailLink completes a magic-link sign-in. Links the backend does
// not recognize and redemptions without a pending email are reported in
// the result rather than as errors. A backend failure is returned together
// with a Failed result carrying the pending email.
func (c *Controller) RedeemEmailLink(ctx context.Context, link string) (MagicLinkResult, error) {
	if !c.backend.IsSignInWithEmailLink(link) {
		return MagicLinkResult{Outcome: MagicLinkInvalidLink}, nil
	}

	email, ok, err := c.store.Get(ctx, KeyMagicLinkEmail)
	if err != nil {
		return MagicLinkResult{}, errors.Wrap(err, "failed to read magic link email")
	}
	if !ok || email == "" {
		c.logger.Warn("Sign-in link opened without a pending email.")
		return MagicLinkResult{Outcome: MagicLinkNoEmailPending}, nil
	}

	c.tracker.SetNextProviderHint(ProviderEmailLink)
	if _, err := c.backend.SignInWithEmailLink(ctx, email, link); err != nil {
		c.tracker.SetNextProviderHint(ProviderNone)
		c.logger.Error("Failed to redeem sign-in link.", "error", err)
		return MagicLinkResult{Outcome: MagicLinkFailed, Email: email}, err
	}

	raw, _, err := c.store.Get(ctx, KeyMagicLinkReason)
	if err != nil {
		return MagicLinkResult{Outcome: MagicLinkFailed, Email: email}, errors.Wrap(err, "failed to read magic link reason")
	}
	reason := MagicLinkReason(raw)

	if reason == ReasonPasswordReset {
		if err := c.store.Set(ctx, KeyPasswordResetRequested, flagTrue); err != nil {
			return MagicLinkResult{Outcome: MagicLinkFailed, Email: email}, errors.Wrap(err, "failed to persist password reset flag")
		}
		// The reconciliation for this sign-in may already have run.
		c.passwordMode.Set(true)
	}

	if err := c.store.Remove(ctx, KeyMagicLinkReason); err != nil {
		return MagicLinkResult{Outcome: MagicLinkFailed, Email: email}, errors.Wrap(err, "failed to clear magic link reason")
	}
	if err := c.store.Remove(ctx, KeyMagicLinkEmail); err != nil {
		return MagicLinkResult{Outcome: MagicLinkFailed, Email: email}, errors.Wrap(err, "failed to clear magic link email")
	}

	c.logger.Info("Sign-in link redeemed.", "reason", reason)
	for _, fn := range c.magicLinkSucceeded.snapshot() {
		fn(reason)
	}
	return MagicLinkResult{Outcome: MagicLinkSucceeded, Email: email, Reason: reason}, nil
}
