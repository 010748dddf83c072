package session

// file: internal/session/google_test.go

import (
	"context"
	"testing"

	"github.com/dkoosis/authsession/internal/identity"
	"github.com/dkoosis/authsession/internal/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignInWithGoogle_Success(t *testing.T) {
	h := newHarness(t)
	h.backend.signInUser = testUser()
	h.backend.popupCred = &identity.UserCredential{ProviderID: identity.MethodGoogle}
	h.backend.methods[testEmail] = []string{identity.MethodGoogle}

	ok, err := h.c.SignInWithGoogle(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	h.reconcile(t)
	require.NotNil(t, h.c.User())
	assert.Equal(t, ProviderGoogle, h.c.User().CurrentProvider)
	assert.False(t, h.c.SetPasswordMode(), "google sessions skip password setup")
}

func TestSignInWithGoogle_Cancelled_ReturnsFalseAndResetsHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "nil credential"},
		{name: "popup closed", err: identity.NewError(identity.CodePopupClosedByUser, "closed")},
		{name: "cancelled request", err: identity.NewError(identity.CodeCancelledPopupRequest, "superseded")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.backend.popupErr = tt.err

			ok, err := h.c.SignInWithGoogle(context.Background())
			require.NoError(t, err)
			assert.False(t, ok)
			hint, _ := h.c.tracker.Hint()
			assert.Equal(t, ProviderNone, hint)
		})
	}
}

func TestSignInWithGoogle_AccountExists_LinksPendingCredentialAndPropagates(t *testing.T) {
	h := newHarness(t)
	u := testUser()
	h.backend.setCurrent(u)
	pending := identity.GoogleCredential("id-token", "access-token", testEmail)
	h.backend.popupErr = &identity.Error{Code: identity.CodeAccountExistsWithDifferentCred, Credential: pending}

	ok, err := h.c.SignInWithGoogle(context.Background())
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, identity.HasCode(err, identity.CodeAccountExistsWithDifferentCred))
	require.Len(t, u.linked, 1)
	assert.Same(t, pending, u.linked[0])

	hint, hinted := h.c.tracker.Hint()
	assert.True(t, hinted)
	assert.Equal(t, ProviderGoogle, hint, "a notification from the link is attributed to Google")
}

func TestSignInWithGoogle_AccountExists_LinkFailureSwallowed(t *testing.T) {
	h := newHarness(t)
	u := testUser()
	u.linkErr = identity.NewError(identity.CodeProviderLinked, "already linked")
	h.backend.setCurrent(u)
	h.backend.popupErr = &identity.Error{
		Code:       identity.CodeAccountExistsWithDifferentCred,
		Credential: identity.GoogleCredential("id-token", "", testEmail),
	}

	_, err := h.c.SignInWithGoogle(context.Background())
	require.Error(t, err)
	assert.Equal(t, identity.CodeAccountExistsWithDifferentCred, identity.CodeOf(err), "original error, not the link failure")
}

func TestSignInWithGoogle_OtherError_ResetsHintAndPropagates(t *testing.T) {
	h := newHarness(t)
	h.backend.popupErr = identity.NewError("auth/internal-error", "boom")

	ok, err := h.c.SignInWithGoogle(context.Background())
	require.Error(t, err)
	assert.False(t, ok)
	hint, _ := h.c.tracker.Hint()
	assert.Equal(t, ProviderNone, hint)
}

func TestSignInWithGoogle_NotConfigured(t *testing.T) {
	c, err := New(newFakeBackend(), &fakePlatform{store: kvstore.NewMemory()})
	require.NoError(t, err)

	_, err = c.SignInWithGoogle(context.Background())
	assert.ErrorIs(t, err, ErrGoogleNotConfigured)
}
