// file: internal/google/provider_test.go
package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dkoosis/authsession/internal/identity"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeGoogle struct {
	srv *httptest.Server

	mu      sync.Mutex
	revoked []string
	codes   []string
}

func newFakeGoogle(t *testing.T, email string) *fakeGoogle {
	t.Helper()
	f := &fakeGoogle{}
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": email, "sub": "g-1"}).
		SignedString([]byte("unused"))
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.mu.Lock()
		f.codes = append(f.codes, r.Form.Get("code"))
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idToken,
		})
	})
	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.mu.Lock()
		f.revoked = append(f.revoked, r.Form.Get("token"))
		f.mu.Unlock()
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGoogle) config() Config {
	return Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   f.srv.URL + "/auth",
			TokenURL:  f.srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RevokeURL: f.srv.URL + "/revoke",
		Timeout:   5 * time.Second,
	}
}

// browser simulates the consent page redirecting back with extra query values.
func browser(t *testing.T, extra url.Values) func(string) error {
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		q := u.Query()
		assert.NotEmpty(t, q.Get("code_challenge"), "PKCE challenge expected.")
		back, err := url.Parse(q.Get("redirect_uri"))
		require.NoError(t, err)
		bq := url.Values{"state": {q.Get("state")}}
		for k, v := range extra {
			bq[k] = v
		}
		back.RawQuery = bq.Encode()
		resp, err := http.Get(back.String())
		if err == nil {
			resp.Body.Close()
		}
		return err
	}
}

func TestProvider_Credential_ExchangesCode(t *testing.T) {
	f := newFakeGoogle(t, "user@gmail.com")
	p := New(f.config(), browser(t, url.Values{"code": {"auth-code"}}), nil)

	cred, err := p.Credential(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, identity.MethodGoogle, cred.ProviderID)
	assert.Equal(t, "user@gmail.com", cred.Email)
	assert.Equal(t, "access-123", cred.AccessToken)
	assert.NotEmpty(t, cred.IDToken)
	assert.Equal(t, []string{"auth-code"}, f.codes)
	assert.True(t, p.HasToken())
}

func TestProvider_Credential_DeniedReturnsNil(t *testing.T) {
	f := newFakeGoogle(t, "user@gmail.com")
	p := New(f.config(), browser(t, url.Values{"error": {"access_denied"}}), nil)

	cred, err := p.Credential(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cred)
	assert.False(t, p.HasToken())
}

func TestProvider_Credential_TimeoutIsCancellation(t *testing.T) {
	f := newFakeGoogle(t, "user@gmail.com")
	cfg := f.config()
	cfg.Timeout = 50 * time.Millisecond
	p := New(cfg, func(string) error { return nil }, nil)

	_, err := p.Credential(context.Background())
	require.Error(t, err)
	assert.True(t, identity.IsCancellation(err))
}

func TestProvider_SignOut_RevokesOnce(t *testing.T) {
	f := newFakeGoogle(t, "user@gmail.com")
	p := New(f.config(), browser(t, url.Values{"code": {"auth-code"}}), nil)
	ctx := context.Background()

	require.NoError(t, p.SignOut(ctx), "Sign-out without a token is a no-op.")
	_, err := p.Credential(ctx)
	require.NoError(t, err)

	require.NoError(t, p.SignOut(ctx))
	require.NoError(t, p.SignOut(ctx))
	assert.Equal(t, []string{"access-123"}, f.revoked)
}

func TestEmailFromIDToken(t *testing.T) {
	_, err := emailFromIDToken("")
	assert.Error(t, err)
	_, err = emailFromIDToken("not-a-jwt")
	assert.Error(t, err)
}
