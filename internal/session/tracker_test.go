package session

// file: internal/session/tracker_test.go

import (
	"context"
	"testing"

	"github.com/dkoosis/authsession/internal/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderTracker_Resolve_HintWinsAndPersists(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	require.NoError(t, store.Set(ctx, KeyLastProvider, string(ProviderGoogle)))
	tr := NewProviderTracker(store, nil)

	tr.SetNextProviderHint(ProviderEmailLink)
	p, fromHint, err := tr.Resolve(ctx)
	require.NoError(t, err)
	assert.True(t, fromHint)
	assert.Equal(t, ProviderEmailLink, p)
	assert.Equal(t, map[string]string{KeyLastProvider: "google"}, store.Snapshot(), "not persisted before Persist")

	_, pending := tr.Hint()
	assert.False(t, pending, "hint is consumed once")

	require.NoError(t, tr.Persist(ctx, p))
	assert.Equal(t, map[string]string{KeyLastProvider: "emailLink"}, store.Snapshot())
}

func TestProviderTracker_Restore_KeepsNewerHint(t *testing.T) {
	tr := NewProviderTracker(kvstore.NewMemory(), nil)
	tr.SetNextProviderHint(ProviderGoogle)
	p, _, err := tr.Resolve(context.Background())
	require.NoError(t, err)

	tr.Restore(p)
	got, pending := tr.Hint()
	assert.True(t, pending)
	assert.Equal(t, ProviderGoogle, got)

	_, _, err = tr.Resolve(context.Background())
	require.NoError(t, err)
	tr.SetNextProviderHint(ProviderDevLogin)
	tr.Restore(ProviderGoogle)
	got, _ = tr.Hint()
	assert.Equal(t, ProviderDevLogin, got)
}

func TestProviderTracker_Resolve_LastHintWins(t *testing.T) {
	tr := NewProviderTracker(kvstore.NewMemory(), nil)
	tr.SetNextProviderHint(ProviderGoogle)
	tr.SetNextProviderHint(ProviderNone)

	p, _, err := tr.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ProviderNone, p)
}

func TestProviderTracker_Resolve_FallsBackToDurable(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	tr := NewProviderTracker(store, nil)

	p, fromHint, err := tr.Resolve(ctx)
	require.NoError(t, err)
	assert.False(t, fromHint)
	assert.Equal(t, ProviderUnknown, p)

	require.NoError(t, store.Set(ctx, KeyLastProvider, string(ProviderDevLogin)))
	p, _, err = tr.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, ProviderDevLogin, p)
}

func TestProviderTracker_Durable_EmptyOrUnknownValue_IsUnknown(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	tr := NewProviderTracker(store, nil)

	for _, raw := range []string{"", "twitter"} {
		require.NoError(t, store.Set(ctx, KeyLastProvider, raw))
		p, err := tr.Durable(ctx)
		require.NoError(t, err)
		assert.Equal(t, ProviderUnknown, p, "raw value %q", raw)
	}
}

func TestProviderTracker_Persist_Failure_KeepsHint(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: kvstore.NewMemory(), failSet: true}
	tr := NewProviderTracker(store, nil)
	tr.SetNextProviderHint(ProviderGoogle)

	p, _, err := tr.Resolve(ctx)
	require.NoError(t, err)
	err = tr.Persist(ctx, p)
	require.Error(t, err)
	assert.ErrorIs(t, err, errStore)

	p, pending := tr.Hint()
	assert.True(t, pending)
	assert.Equal(t, ProviderGoogle, p)
}

func TestProviderTracker_ClearDurable_MissingKey_NoError(t *testing.T) {
	tr := NewProviderTracker(kvstore.NewMemory(), nil)
	assert.NoError(t, tr.ClearDurable(context.Background()))
}

func TestParseProvider(t *testing.T) {
	for _, p := range []Provider{ProviderUnknown, ProviderNone, ProviderEmailAndPassword, ProviderEmailLink, ProviderGoogle, ProviderDevLogin} {
		got, ok := ParseProvider(string(p))
		assert.True(t, ok)
		assert.Equal(t, p, got)
	}
	_, ok := ParseProvider("github")
	assert.False(t, ok)
}
