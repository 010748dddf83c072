// Package google obtains Google credentials for federated sign-in through
// the OAuth 2.0 loopback flow, and revokes them again on sign-out.
package google

// file: internal/google/provider.go

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/authsession/internal/identity"
	"github.com/dkoosis/authsession/internal/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

// DefaultRevokeURL is Google's token revocation endpoint.
const DefaultRevokeURL = "https://oauth2.googleapis.com/revoke"

const callbackPath = "/callback"

// Config configures the provider.
type Config struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	// Endpoint defaults to Google's endpoint.
	Endpoint oauth2.Endpoint
	// RevokeURL defaults to DefaultRevokeURL.
	RevokeURL string
	// ListenAddr is the loopback address for the redirect; "127.0.0.1:0" picks a free port.
	ListenAddr string
	// Timeout bounds how long the user may take on the consent page.
	Timeout time.Duration
}

// Provider implements identity.FederatedProvider for Google.
type Provider struct {
	cfg         Config
	logger      logging.Logger
	openBrowser func(authURL string) error
	httpClient  *http.Client

	mu    sync.Mutex
	token *oauth2.Token
}

var _ identity.FederatedProvider = (*Provider)(nil)

// New creates a provider. openBrowser is called with the consent URL; the
// shell prints it, a desktop build would launch the system browser.
func New(cfg Config, openBrowser func(string) error, logger logging.Logger) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile"}
	}
	if cfg.Endpoint.AuthURL == "" {
		cfg.Endpoint = googleoauth.Endpoint
	}
	if cfg.RevokeURL == "" {
		cfg.RevokeURL = DefaultRevokeURL
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Provider{
		cfg:         cfg,
		logger:      logging.OrNoop(logger).WithField("component", "google_provider"),
		openBrowser: openBrowser,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ProviderID implements identity.FederatedProvider.
func (p *Provider) ProviderID() string { return identity.MethodGoogle }

type callbackResult struct {
	code string
	err  error
	// denied is set when the user refused consent.
	denied bool
}

// Credential runs the consent flow. It returns (nil, nil) when the user
// declined, and a CodePopupClosedByUser error when they never came back.
func (p *Provider) Credential(ctx context.Context) (*identity.Credential, error) {
	ln, err := net.Listen("tcp", p.cfg.ListenAddr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start loopback listener")
	}
	redirectURL := fmt.Sprintf("http://%s%s", ln.Addr().String(), callbackPath)

	conf := &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		Scopes:       p.cfg.Scopes,
		Endpoint:     p.cfg.Endpoint,
		RedirectURL:  redirectURL,
	}
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           p.callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("Callback server error.", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	p.logger.Info("Waiting for Google consent.", "redirect", redirectURL)
	if p.openBrowser != nil {
		if err := p.openBrowser(authURL); err != nil {
			return nil, errors.Wrap(err, "failed to open consent page")
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	var res callbackResult
	select {
	case res = <-results:
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, identity.NewError(identity.CodePopupClosedByUser, "the consent page was not completed")
	}
	if res.denied {
		p.logger.Info("Google consent declined.")
		return nil, nil
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := conf.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, errors.Wrap(err, "failed to exchange authorization code")
	}
	idToken, _ := tok.Extra("id_token").(string)
	email, err := emailFromIDToken(idToken)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.token = tok
	p.mu.Unlock()

	return identity.GoogleCredential(idToken, tok.AccessToken, email), nil
}

func (p *Provider) callbackHandler(state string, results chan<- callbackResult) http.Handler {
	var once sync.Once
	deliver := func(r callbackResult) {
		once.Do(func() { results <- r })
	}
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			deliver(callbackResult{err: errors.New("oauth state mismatch")})
		case q.Get("error") == "access_denied":
			fmt.Fprintln(w, "Sign-in cancelled. You can close this window.")
			deliver(callbackResult{denied: true})
		case q.Get("error") != "":
			http.Error(w, "sign-in failed", http.StatusBadRequest)
			deliver(callbackResult{err: identity.NewError("auth/internal-error", "google returned "+q.Get("error"))})
		case q.Get("code") == "":
			http.Error(w, "missing code", http.StatusBadRequest)
			deliver(callbackResult{err: errors.New("oauth callback without code")})
		default:
			fmt.Fprintln(w, "Signed in. You can close this window.")
			deliver(callbackResult{code: q.Get("code")})
		}
	})
	return mux
}

// emailFromIDToken reads the email claim. The signature is not checked
// here; the identity backend verifies the token when it is presented.
func emailFromIDToken(idToken string) (string, error) {
	if idToken == "" {
		return "", errors.New("token response carried no id_token")
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return "", errors.Wrap(err, "failed to decode id_token")
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return "", errors.New("id_token has no email claim")
	}
	return email, nil
}

// SignOut revokes the token obtained by the last consent flow. It does
// nothing when no token is held.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	tok := p.token
	p.token = nil
	p.mu.Unlock()
	if tok == nil {
		return nil
	}

	form := url.Values{"token": {tok.AccessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "failed to build revoke request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to revoke google token")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Newf("google token revocation returned %d", resp.StatusCode)
	}
	p.logger.Info("Google token revoked.")
	return nil
}

// HasToken reports whether a Google token is currently held.
func (p *Provider) HasToken() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token != nil
}
