package session

// file: internal/session/tracker.go

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/authsession/internal/kvstore"
	"github.com/dkoosis/authsession/internal/logging"
)

// ProviderTracker remembers which provider produced the session. A sign-in
// entry point leaves a transient hint for the next reconciliation; the
// reconciliation that commits a session from it persists it as the durable
// provider id so a restored session keeps its provider across restarts.
//
// The hint is a single slot. Two sign-ins racing before a notification
// arrives leave only the last hint.
type ProviderTracker struct {
	store  kvstore.Store
	logger logging.Logger

	mu      sync.Mutex
	hint    Provider
	hasHint bool
}

// NewProviderTracker creates a tracker persisting under KeyLastProvider.
func NewProviderTracker(store kvstore.Store, logger logging.Logger) *ProviderTracker {
	return &ProviderTracker{
		store:  store,
		logger: logging.OrNoop(logger).WithField("component", "provider_tracker"),
	}
}

// SetNextProviderHint replaces the transient hint.
func (t *ProviderTracker) SetNextProviderHint(p Provider) {
	t.mu.Lock()
	t.hint = p
	t.hasHint = true
	t.mu.Unlock()
}

// Hint returns the pending hint without consuming it.
func (t *ProviderTracker) Hint() (Provider, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hint, t.hasHint
}

func (t *ProviderTracker) takeHint() (Provider, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.hint, t.hasHint
	t.hint, t.hasHint = ProviderUnknown, false
	return p, ok
}

// restoreHint puts a consumed hint back unless a newer hint was set meanwhile.
func (t *ProviderTracker) restoreHint(p Provider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasHint {
		t.hint, t.hasHint = p, true
	}
}

// Resolve returns the provider for a session being reconciled and reports
// whether it came from the pending hint. A consumed hint is not persisted
// until Persist is called for it; Restore hands it back when the
// reconciliation fails before that point. Without a hint the durable id is
// used. ProviderUnknown means neither is known.
func (t *ProviderTracker) Resolve(ctx context.Context) (Provider, bool, error) {
	if p, ok := t.takeHint(); ok {
		t.logger.Debug("Consumed provider hint.", "provider", p)
		return p, true, nil
	}
	p, err := t.Durable(ctx)
	return p, false, err
}

// Persist stores p as the durable provider id. On failure p is put back as
// the pending hint unless a newer hint was set meanwhile.
func (t *ProviderTracker) Persist(ctx context.Context, p Provider) error {
	if err := t.store.Set(ctx, KeyLastProvider, string(p)); err != nil {
		t.restoreHint(p)
		return errors.Wrap(err, "failed to persist provider hint")
	}
	return nil
}

// Restore puts a hint taken by Resolve back unless a newer hint was set.
func (t *ProviderTracker) Restore(p Provider) {
	t.restoreHint(p)
}

// Durable reads the persisted provider id.
func (t *ProviderTracker) Durable(ctx context.Context) (Provider, error) {
	raw, ok, err := t.store.Get(ctx, KeyLastProvider)
	if err != nil {
		return ProviderUnknown, errors.Wrap(err, "failed to read persisted provider")
	}
	if !ok {
		return ProviderUnknown, nil
	}
	p, known := ParseProvider(raw)
	if !known {
		t.logger.Warn("Ignoring unrecognized persisted provider.", "value", raw)
	}
	return p, nil
}

// ClearDurable forgets the persisted provider id.
func (t *ProviderTracker) ClearDurable(ctx context.Context) error {
	if err := t.store.Remove(ctx, KeyLastProvider); err != nil {
		return errors.Wrap(err, "failed to clear persisted provider")
	}
	return nil
}
