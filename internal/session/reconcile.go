package session

// file: internal/session/reconcile.go

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/authsession/internal/identity"
)

// reconcile derives a fresh snapshot for u, the backend's current user when
// the notification was received, and commits it. It holds the gate for its
// whole duration. On failure the previous snapshot stays committed.
func (c *Controller) reconcile(ctx context.Context, u identity.User) (err error) {
	release := c.gate.Enter()
	defer release()
	c.gate.MarkBooted()

	if ferr := c.machine.Fire(ctx, eventAuthStateChanged, nil); ferr != nil {
		return errors.Wrap(ferr, "failed to enter reconciliation")
	}
	committed := false
	defer func() {
		if !committed {
			c.settle(ctx, settled{prev: c.user.Get(), next: c.user.Get()}, false)
		}
	}()

	next, hinted, err := c.buildSnapshot(ctx, u)
	if err != nil {
		return err
	}

	for _, hook := range c.preProcess.snapshot() {
		if next == nil {
			break
		}
		transformed, herr := hook(ctx, next.clone())
		if herr != nil {
			c.logger.Warn("Pre-process hook vetoed the session.", "error", herr)
			return errors.Wrap(herr, "pre-process hook failed")
		}
		if transformed == nil {
			c.logger.Warn("Pre-process hook vetoed the session.")
			return nil
		}
		next = transformed
	}

	if hinted {
		if err := c.tracker.Persist(ctx, next.CurrentProvider); err != nil {
			return err
		}
	}

	var prev *AuthUserWithProviders
	c.user.Update(func(old *AuthUserWithProviders) *AuthUserWithProviders {
		prev = old
		return next
	})
	committed = true

	return c.settle(ctx, settled{prev: prev, next: next}, true)
}

// settle moves the lifecycle machine out of Reconciling. When the commit
// succeeded the signed-in transition runs the password-mode evaluation.
func (c *Controller) settle(ctx context.Context, s settled, commit bool) error {
	ev := eventResolvedSignedOut
	if s.next != nil {
		ev = eventResolvedSignedIn
	}
	if !commit {
		// Keep the snapshot as it was; do not re-run entry work.
		s.prev = s.next
	}
	if err := c.machine.Fire(ctx, ev, s); err != nil {
		return errors.Wrap(err, "failed to settle session state")
	}
	if commit {
		c.logger.Debug("Session reconciled.", "signed_in", s.next != nil, "state", c.machine.Current())
	}
	return nil
}

// buildSnapshot resolves u's provider and registered sign-in methods. It
// returns nil when u is nil. hinted reports that the provider was taken from
// the pending hint; such a hint is handed back if the lookup fails.
func (c *Controller) buildSnapshot(ctx context.Context, u identity.User) (snap *AuthUserWithProviders, hinted bool, err error) {
	if u == nil {
		return nil, false, nil
	}
	info := u.Info()

	current, hinted, err := c.tracker.Resolve(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if err != nil && hinted {
			c.tracker.Restore(current)
		}
	}()

	snap = &AuthUserWithProviders{
		AuthUser:        authUserFromInfo(info),
		CurrentProvider: current,
	}

	if info.Email == "" {
		c.logger.Warn("Signed-in user has no email; provider list left empty.", "uid", info.UID)
		return snap, hinted, nil
	}
	methods, err := c.fetchMethods(ctx, info.Email)
	if err != nil {
		c.logger.Error("Failed to fetch sign-in methods.", "error", err)
		return nil, hinted, errors.Wrap(err, "failed to fetch sign-in methods")
	}
	snap.Providers = providersFromMethods(methods)
	if len(snap.Providers) == 0 {
		c.logger.Warn("Backend reported no sign-in methods for a signed-in user.", "uid", info.UID)
	}
	return snap, hinted, nil
}

func providersFromMethods(methods []string) []Provider {
	out := make([]Provider, 0, len(methods))
	for _, m := range methods {
		if p, ok := providerForMethod(m); ok {
			out = append(out, p)
		}
	}
	return out
}

// evaluatePasswordMode runs when a reconciliation settles signed in. The
// password-setup prompt is only considered when a user just signed in; a
// different user replacing the previous one counts as a new sign-in.
func (c *Controller) evaluatePasswordMode(ctx context.Context, s settled) error {
	if s.next == nil {
		return nil
	}
	if s.prev != nil {
		if s.prev.UID == s.next.UID {
			return nil
		}
		c.logger.Info("Signed-in user changed without a sign-out.", "previous_uid", s.prev.UID, "uid", s.next.UID)
		c.passwordMode.Set(false)
	}
	cur := s.next.CurrentProvider
	withoutPassword := !s.next.HasProvider(ProviderEmailAndPassword) &&
		cur != ProviderGoogle && cur != ProviderDevLogin

	resetRequested := false
	if cur == ProviderEmailLink {
		v, _, err := c.store.Get(ctx, KeyPasswordResetRequested)
		if err != nil {
			return errors.Wrap(err, "failed to read password reset flag")
		}
		resetRequested = v == flagTrue
	}

	if withoutPassword || resetRequested {
		c.logger.Info("Prompting for password setup.", "provider", cur, "reset", resetRequested)
		c.passwordMode.Set(true)
	}
	return nil
}
