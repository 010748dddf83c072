package session

// file: internal/session/magiclink_test.go

import (
	"context"
	"testing"

	"github.com/dkoosis/authsession/internal/identity"
	"github.com/dkoosis/authsession/internal/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignInWithEmailLink_NormalizesAndPersists(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.store.Set(ctx, KeyPasswordResetRequested, "true"))

	require.NoError(t, h.c.SignInWithEmailLink(ctx, "  Foo@Bar.com ", ReasonPasswordReset))

	email, _ := h.stored(t, KeyMagicLinkEmail)
	reason, _ := h.stored(t, KeyMagicLinkReason)
	assert.Equal(t, "foo@bar.com", email)
	assert.Equal(t, "passwordReset", reason)
	_, flagSet := h.stored(t, KeyPasswordResetRequested)
	assert.False(t, flagSet, "stale reset flag is cleared by a new request")

	assert.Equal(t, []string{"foo@bar.com"}, h.backend.sentLinks)
	assert.Equal(t, testURL, h.backend.sentSettings[0].URL)
	assert.Nil(t, h.c.User(), "requesting a link does not change the session")
}

func TestSignInWithEmailLink_BackendFailure_Propagates(t *testing.T) {
	h := newHarness(t)
	h.backend.sendLinkErr = identity.NewError(identity.CodeInvalidEmail, "bad address")

	err := h.c.SignInWithEmailLink(context.Background(), "nobody", ReasonSignIn)
	require.Error(t, err)
	assert.Same(t, h.backend.sendLinkErr, err, "backend errors pass through unchanged")
}

func TestSignInWithEmailLink_StoreFailure_DoesNotSend(t *testing.T) {
	store := &failingStore{Store: kvstore.NewMemory(), failSet: true}
	backend := newFakeBackend()
	c, err := New(backend, &fakePlatform{store: store, location: testURL})
	require.NoError(t, err)

	err = c.SignInWithEmailLink(context.Background(), testEmail, ReasonSignIn)
	require.Error(t, err)
	assert.ErrorIs(t, err, errStore)
	assert.Empty(t, backend.sentLinks)
}

func TestRedeemEmailLink_UnrecognizedLink_InvalidLink(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.c.SignInWithEmailLink(ctx, testEmail, ReasonSignIn))

	res, err := h.c.RedeemEmailLink(ctx, "https://app.example.com/settings")
	require.NoError(t, err)
	assert.Equal(t, MagicLinkInvalidLink, res.Outcome)

	email, ok := h.stored(t, KeyMagicLinkEmail)
	assert.True(t, ok, "no state change on invalid link")
	assert.Equal(t, testEmail, email)
	_, pending := h.c.tracker.Hint()
	assert.False(t, pending)
	assert.Zero(t, h.backend.linkCalls)
}

func TestRedeemEmailLink_NoPendingEmail_NoEmailPending(t *testing.T) {
	h := newHarness(t)

	res, err := h.c.RedeemEmailLink(context.Background(), testLink)
	require.NoError(t, err)
	assert.Equal(t, MagicLinkNoEmailPending, res.Outcome)
	assert.Zero(t, h.backend.linkCalls)
}

func TestRedeemEmailLink_RoundTrip_ClearsPendingState(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.backend.signInUser = testUser()
	var reasons []MagicLinkReason
	h.c.OnMagicLinkSucceeded(func(r MagicLinkReason) { reasons = append(reasons, r) })

	require.NoError(t, h.c.SignInWithEmailLink(ctx, testEmail, ReasonSignUp))
	res, err := h.c.RedeemEmailLink(ctx, testLink)
	require.NoError(t, err)

	assert.Equal(t, MagicLinkResult{Outcome: MagicLinkSucceeded, Email: testEmail, Reason: ReasonSignUp}, res)
	assert.Equal(t, []MagicLinkReason{ReasonSignUp}, reasons)
	_, ok := h.stored(t, KeyMagicLinkEmail)
	assert.False(t, ok)
	_, ok = h.stored(t, KeyMagicLinkReason)
	assert.False(t, ok)
	_, ok = h.stored(t, KeyPasswordResetRequested)
	assert.False(t, ok)

	hint, pending := h.c.tracker.Hint()
	assert.True(t, pending)
	assert.Equal(t, ProviderEmailLink, hint)
	assert.False(t, h.c.SetPasswordMode(), "sign-in reason does not force password mode")
}

func TestRedeemEmailLink_PasswordReset_SetsFlagAndForcesPasswordMode(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.backend.signInUser = testUser()
	h.backend.methods[testEmail] = []string{identity.MethodPassword, identity.MethodEmailLink}

	require.NoError(t, h.c.SignInWithEmailLink(ctx, "Foo@Bar.com ", ReasonPasswordReset))
	_, flagSet := h.stored(t, KeyPasswordResetRequested)
	require.False(t, flagSet, "flag stays unset until redemption")

	res, err := h.c.RedeemEmailLink(ctx, testLink)
	require.NoError(t, err)
	assert.Equal(t, MagicLinkSucceeded, res.Outcome)
	assert.Equal(t, "foo@bar.com", res.Email)

	flag, _ := h.stored(t, KeyPasswordResetRequested)
	assert.Equal(t, "true", flag)
	assert.True(t, h.c.SetPasswordMode())
}

func TestRedeemEmailLink_PasswordReset_AfterSessionCommitted_StillPrompts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.backend.signInUser = testUser()
	h.backend.methods[testEmail] = []string{identity.MethodPassword, identity.MethodEmailLink}

	// The session is committed before redemption gets to read the reason.
	require.NoError(t, h.c.SignInWithEmailLink(ctx, testEmail, ReasonPasswordReset))
	h.backend.setCurrent(testUser())
	h.c.tracker.SetNextProviderHint(ProviderEmailLink)
	h.reconcile(t)
	require.False(t, h.c.SetPasswordMode(), "reset flag not yet set at commit")

	res, err := h.c.RedeemEmailLink(ctx, testLink)
	require.NoError(t, err)
	assert.Equal(t, MagicLinkSucceeded, res.Outcome)
	assert.True(t, h.c.SetPasswordMode())
}

func TestRedeemEmailLink_BackendFailure_HintNoneAndEmailReturned(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.backend.linkErr = identity.NewError(identity.CodeInvalidActionCode, "expired")

	require.NoError(t, h.c.SignInWithEmailLink(ctx, testEmail, ReasonSignIn))
	res, err := h.c.RedeemEmailLink(ctx, testLink)

	require.Error(t, err)
	assert.True(t, identity.HasCode(err, identity.CodeInvalidActionCode))
	assert.Equal(t, MagicLinkFailed, res.Outcome)
	assert.Equal(t, testEmail, res.Email)
	hint, pending := h.c.tracker.Hint()
	assert.True(t, pending)
	assert.Equal(t, ProviderNone, hint)
	_, ok := h.stored(t, KeyMagicLinkEmail)
	assert.True(t, ok, "pending email survives a failed redemption")
}

func TestPendingMagicLink(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, _, ok, err := h.c.PendingMagicLink(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, h.c.SignInWithEmailLink(ctx, testEmail, ReasonSignIn))
	email, reason, ok, err := h.c.PendingMagicLink(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, testEmail, email)
	assert.Equal(t, ReasonSignIn, reason)
}
