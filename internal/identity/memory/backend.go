// Package memory is an in-process identity backend. It backs the
// interactive shell and the end-to-end controller tests, and behaves like a
// hosted identity service: hashed passwords, single-use emailed links,
// federated accounts, custom developer tokens and recent-login checks.
package memory

// file: internal/identity/memory/backend.go

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dkoosis/authsession/internal/devtoken"
	"github.com/dkoosis/authsession/internal/identity"
	"github.com/dkoosis/authsession/internal/logging"
	"github.com/dkoosis/authsession/internal/mailer"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultLinkTTL      = time.Hour
	defaultRecentWindow = 5 * time.Minute
	minPasswordLength   = 6
)

// Options configures a Backend.
type Options struct {
	Mailer mailer.Sender
	// DevSecret verifies SignInWithCustomToken tokens. Custom tokens are
	// rejected when empty.
	DevSecret []byte
	// RecentLoginWindow bounds how old the last authentication may be for
	// UpdatePassword. Zero uses the default; negative makes every session stale.
	RecentLoginWindow time.Duration
	LinkTTL           time.Duration
	Logger            logging.Logger
	Now               func() time.Time
	// BcryptCost defaults to bcrypt.MinCost to keep the shell and tests fast.
	BcryptCost int
}

type account struct {
	uid           string
	email         string
	displayName   string
	photoURL      string
	phoneNumber   string
	emailVerified bool
	passwordHash  []byte
	methods       []string
	lastAuth      time.Time
}

func (a *account) hasMethod(m string) bool {
	for _, v := range a.methods {
		if v == m {
			return true
		}
	}
	return false
}

func (a *account) addMethod(m string) {
	if !a.hasMethod(m) {
		a.methods = append(a.methods, m)
	}
}

type pendingLink struct {
	email   string
	expires time.Time
}

// Backend implements identity.Backend in memory.
type Backend struct {
	opts   Options
	logger logging.Logger

	mu        sync.Mutex
	accounts  map[string]*account // by uid
	byEmail   map[string]string   // email -> uid
	links     map[string]pendingLink
	current   string
	listeners map[int]func()
	nextID    int
}

var _ identity.Backend = (*Backend)(nil)

// New creates an empty backend.
func New(opts Options) *Backend {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RecentLoginWindow == 0 {
		opts.RecentLoginWindow = defaultRecentWindow
	}
	if opts.LinkTTL <= 0 {
		opts.LinkTTL = defaultLinkTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.MinCost
	}
	logger := logging.OrNoop(opts.Logger).WithField("component", "memory_backend")
	if opts.Mailer == nil {
		opts.Mailer = mailer.NewOutbox(logger)
	}
	return &Backend{
		opts:      opts,
		logger:    logger,
		accounts:  make(map[string]*account),
		byEmail:   make(map[string]string),
		links:     make(map[string]pendingLink),
		listeners: make(map[int]func()),
	}
}

// Mailer returns the link sender in use.
func (b *Backend) Mailer() mailer.Sender { return b.opts.Mailer }

// SetRecentLoginWindow changes how recent a login must be for sensitive operations.
func (b *Backend) SetRecentLoginWindow(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opts.RecentLoginWindow = d
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// OnAuthStateChanged implements identity.Backend. The listener is called
// once immediately with the current state.
func (b *Backend) OnAuthStateChanged(listener func()) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = listener
	b.mu.Unlock()

	listener()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// notify must be called without b.mu held.
func (b *Backend) notify() {
	b.mu.Lock()
	ls := make([]func(), 0, len(b.listeners))
	for _, l := range b.listeners {
		ls = append(ls, l)
	}
	b.mu.Unlock()
	for _, l := range ls {
		l()
	}
}

// CurrentUser implements identity.Backend.
func (b *Backend) CurrentUser() identity.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == "" {
		return nil
	}
	return &user{backend: b, uid: b.current}
}

// FetchSignInMethodsForEmail implements identity.Backend.
func (b *Backend) FetchSignInMethodsForEmail(_ context.Context, email string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	uid, ok := b.byEmail[normalizeEmail(email)]
	if !ok {
		return []string{}, nil
	}
	return append([]string(nil), b.accounts[uid].methods...), nil
}

// SignInWithEmailAndPassword implements identity.Backend.
func (b *Backend) SignInWithEmailAndPassword(_ context.Context, email, password string) (*identity.UserCredential, error) {
	b.mu.Lock()
	acct, err := b.verifyPasswordLocked(email, password)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	cred := b.signInLocked(acct, identity.MethodPassword, false)
	b.mu.Unlock()
	b.notify()
	return cred, nil
}

func (b *Backend) verifyPasswordLocked(email, password string) (*account, error) {
	uid, ok := b.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, identity.NewError(identity.CodeUserNotFound, "no account for this email")
	}
	acct := b.accounts[uid]
	if len(acct.passwordHash) == 0 || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)) != nil {
		return nil, identity.NewError(identity.CodeWrongPassword, "the password is invalid")
	}
	return acct, nil
}

// CreateUserWithEmailAndPassword implements identity.Backend.
func (b *Backend) CreateUserWithEmailAndPassword(_ context.Context, email, password string) (*identity.UserCredential, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, identity.NewError(identity.CodeInvalidEmail, "the email address is badly formatted")
	}
	hash, err := b.hashPassword(password)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if _, exists := b.byEmail[email]; exists {
		b.mu.Unlock()
		return nil, identity.NewError(identity.CodeEmailAlreadyInUse, "the email address is already in use")
	}
	acct := b.createLocked(email)
	acct.passwordHash = hash
	cred := b.signInLocked(acct, identity.MethodPassword, true)
	b.mu.Unlock()
	b.notify()
	return cred, nil
}

func (b *Backend) hashPassword(password string) ([]byte, error) {
	if len(password) < minPasswordLength {
		return nil, identity.NewError(identity.CodeWeakPassword, "password should be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.opts.BcryptCost)
	if err != nil {
		return nil, err
	}
	return hash, nil
}

func (b *Backend) createLocked(email string) *account {
	acct := &account{uid: uuid.NewString(), email: email}
	b.accounts[acct.uid] = acct
	if email != "" {
		b.byEmail[email] = acct.uid
	}
	b.logger.Debug("Account created.", "uid", acct.uid)
	return acct
}

func (b *Backend) signInLocked(acct *account, method string, isNew bool) *identity.UserCredential {
	acct.addMethod(method)
	acct.lastAuth = b.opts.Now()
	b.current = acct.uid
	b.logger.Debug("Signed in.", "uid", acct.uid, "method", method)
	return &identity.UserCredential{
		User:       &user{backend: b, uid: acct.uid},
		ProviderID: method,
		IsNewUser:  isNew,
	}
}

// SendSignInLinkToEmail implements identity.Backend.
func (b *Backend) SendSignInLinkToEmail(ctx context.Context, email string, settings identity.ActionCodeSettings) error {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return identity.NewError(identity.CodeInvalidEmail, "the email address is badly formatted")
	}
	u, err := url.Parse(settings.URL)
	if err != nil || settings.URL == "" {
		return identity.NewError("auth/invalid-continue-uri", "the continue URL is invalid")
	}
	code := uuid.NewString()
	q := u.Query()
	q.Set("mode", "signIn")
	q.Set("oobCode", code)
	u.RawQuery = q.Encode()

	b.mu.Lock()
	b.links[code] = pendingLink{email: email, expires: b.opts.Now().Add(b.opts.LinkTTL)}
	b.mu.Unlock()

	return b.opts.Mailer.SendSignInLink(ctx, email, u.String())
}

// IsSignInWithEmailLink implements identity.Backend. Only the link format is checked.
func (b *Backend) IsSignInWithEmailLink(link string) bool {
	code, ok := oobCode(link)
	return ok && code != ""
}

func oobCode(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	q := u.Query()
	if q.Get("mode") != "signIn" {
		return "", false
	}
	return q.Get("oobCode"), true
}

// SignInWithEmailLink implements identity.Backend. Links are single use.
func (b *Backend) SignInWithEmailLink(_ context.Context, email, link string) (*identity.UserCredential, error) {
	code, ok := oobCode(link)
	if !ok || code == "" {
		return nil, identity.NewError(identity.CodeInvalidActionCode, "the link is malformed")
	}
	email = normalizeEmail(email)

	b.mu.Lock()
	pending, ok := b.links[code]
	if !ok || b.opts.Now().After(pending.expires) {
		delete(b.links, code)
		b.mu.Unlock()
		return nil, identity.NewError(identity.CodeInvalidActionCode, "the link is invalid, expired or already used")
	}
	if pending.email != email {
		b.mu.Unlock()
		return nil, identity.NewError(identity.CodeInvalidEmail, "the email does not match the link")
	}
	delete(b.links, code)

	isNew := false
	uid, exists := b.byEmail[email]
	var acct *account
	if exists {
		acct = b.accounts[uid]
	} else {
		acct = b.createLocked(email)
		isNew = true
	}
	acct.emailVerified = true
	cred := b.signInLocked(acct, identity.MethodEmailLink, isNew)
	b.mu.Unlock()
	b.notify()
	return cred, nil
}

// SignInWithPopup implements identity.Backend. When the provider's email
// belongs to an account without that provider, the failure carries the
// pending credential so the caller can link it.
func (b *Backend) SignInWithPopup(ctx context.Context, provider identity.FederatedProvider) (*identity.UserCredential, error) {
	cred, err := provider.Credential(ctx)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, nil
	}
	method := provider.ProviderID()
	email := normalizeEmail(cred.Email)

	b.mu.Lock()
	isNew := false
	var acct *account
	if uid, ok := b.byEmail[email]; ok && email != "" {
		acct = b.accounts[uid]
		if !acct.hasMethod(method) {
			b.mu.Unlock()
			return nil, &identity.Error{
				Code:       identity.CodeAccountExistsWithDifferentCred,
				Message:    "an account already exists with the same email address",
				Credential: cred,
			}
		}
	} else {
		acct = b.createLocked(email)
		acct.emailVerified = email != ""
		isNew = true
	}
	uc := b.signInLocked(acct, method, isNew)
	uc.Credential = cred
	b.mu.Unlock()
	b.notify()
	return uc, nil
}

// SignInWithCustomToken implements identity.Backend.
func (b *Backend) SignInWithCustomToken(_ context.Context, token string) (*identity.UserCredential, error) {
	claims, err := devtoken.Verify(b.opts.DevSecret, token, b.opts.Now())
	if err != nil {
		return nil, &identity.Error{Code: identity.CodeInvalidCustomToken, Message: err.Error()}
	}

	b.mu.Lock()
	isNew := false
	acct, ok := b.accounts[claims.Subject]
	if !ok {
		acct = &account{uid: claims.Subject, email: normalizeEmail(claims.Email), displayName: claims.DisplayName}
		b.accounts[acct.uid] = acct
		if acct.email != "" {
			if _, taken := b.byEmail[acct.email]; !taken {
				b.byEmail[acct.email] = acct.uid
			}
		}
		isNew = true
	}
	cred := b.signInLocked(acct, identity.MethodCustom, isNew)
	b.mu.Unlock()
	b.notify()
	return cred, nil
}

// SignOut implements identity.Backend. Signing out while signed out does
// nothing and does not notify.
func (b *Backend) SignOut(_ context.Context) error {
	b.mu.Lock()
	changed := b.current != ""
	b.current = ""
	b.mu.Unlock()
	if changed {
		b.notify()
	}
	return nil
}
