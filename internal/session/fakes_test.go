package session

// file: internal/session/fakes_test.go

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/authsession/internal/identity"
	"github.com/dkoosis/authsession/internal/kvstore"
	"github.com/stretchr/testify/require"
)

// fakeUser is a scriptable identity.User.
type fakeUser struct {
	mu   sync.Mutex
	info identity.UserInfo

	updatePasswordErrs  []error // consumed one per call
	updatePasswordCalls int
	passwords           []string

	reauthErr   error
	reauthCreds []*identity.Credential

	profileErr error
	linkErr    error
	linked     []*identity.Credential
}

func (u *fakeUser) Info() identity.UserInfo {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.info
}

func (u *fakeUser) UpdatePassword(_ context.Context, password string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.updatePasswordCalls++
	if len(u.updatePasswordErrs) > 0 {
		err := u.updatePasswordErrs[0]
		u.updatePasswordErrs = u.updatePasswordErrs[1:]
		if err != nil {
			return err
		}
	}
	u.passwords = append(u.passwords, password)
	return nil
}

func (u *fakeUser) UpdateProfile(_ context.Context, update identity.ProfileUpdate) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.profileErr != nil {
		return u.profileErr
	}
	if update.PhotoURL != nil {
		u.info.PhotoURL = *update.PhotoURL
	}
	return nil
}

func (u *fakeUser) ReauthenticateWithCredential(_ context.Context, cred *identity.Credential) (*identity.UserCredential, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.reauthCreds = append(u.reauthCreds, cred)
	if u.reauthErr != nil {
		return nil, u.reauthErr
	}
	return &identity.UserCredential{User: u}, nil
}

func (u *fakeUser) LinkWithCredential(_ context.Context, cred *identity.Credential) (*identity.UserCredential, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.linked = append(u.linked, cred)
	if u.linkErr != nil {
		return nil, u.linkErr
	}
	return &identity.UserCredential{User: u}, nil
}

// fakeBackend is a scriptable identity.Backend. Sign-ins succeed by
// switching to signInUser and notifying listeners synchronously.
type fakeBackend struct {
	mu        sync.Mutex
	listeners map[int]func()
	nextID    int
	current   *fakeUser

	signInUser *fakeUser
	signInErr  error

	methods    map[string][]string
	fetchErr   error
	fetchCalls int

	// fetchStarted and fetchRelease, when set, hold a method lookup until
	// fetchRelease is closed. fetchStarted needs a buffer of one. fetchCtx
	// records the lookup's context.
	fetchStarted chan struct{}
	fetchRelease chan struct{}
	fetchCtx     context.Context

	sendLinkErr  error
	sentLinks    []string
	sentSettings []identity.ActionCodeSettings
	linkErr      error
	linkCalls    int

	popupCred *identity.UserCredential
	popupErr  error

	signOutErr   error
	signOutCalls int

	// onSignOut, when set, runs inside SignOut before the state change.
	onSignOut func()
}

var _ identity.Backend = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		listeners: make(map[int]func()),
		methods:   make(map[string][]string),
	}
}

func (b *fakeBackend) OnAuthStateChanged(listener func()) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = listener
	b.mu.Unlock()
	listener()
	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

func (b *fakeBackend) notify() {
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

func (b *fakeBackend) setCurrent(u *fakeUser) {
	b.mu.Lock()
	b.current = u
	b.mu.Unlock()
}

func (b *fakeBackend) CurrentUser() identity.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return nil
	}
	return b.current
}

func (b *fakeBackend) FetchSignInMethodsForEmail(ctx context.Context, email string) ([]string, error) {
	if b.fetchRelease != nil {
		b.mu.Lock()
		b.fetchCtx = ctx
		b.mu.Unlock()
		select {
		case b.fetchStarted <- struct{}{}:
		default:
		}
		<-b.fetchRelease
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetchCalls++
	if b.fetchErr != nil {
		return nil, b.fetchErr
	}
	return append([]string(nil), b.methods[email]...), nil
}

func (b *fakeBackend) signIn() (*identity.UserCredential, error) {
	b.mu.Lock()
	if b.signInErr != nil {
		err := b.signInErr
		b.mu.Unlock()
		return nil, err
	}
	b.current = b.signInUser
	u := b.current
	b.mu.Unlock()
	b.notify()
	return &identity.UserCredential{User: u}, nil
}

func (b *fakeBackend) SignInWithEmailAndPassword(_ context.Context, _, _ string) (*identity.UserCredential, error) {
	return b.signIn()
}

func (b *fakeBackend) CreateUserWithEmailAndPassword(_ context.Context, _, _ string) (*identity.UserCredential, error) {
	return b.signIn()
}

func (b *fakeBackend) SendSignInLinkToEmail(_ context.Context, email string, settings identity.ActionCodeSettings) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendLinkErr != nil {
		return b.sendLinkErr
	}
	b.sentLinks = append(b.sentLinks, email)
	b.sentSettings = append(b.sentSettings, settings)
	return nil
}

func (b *fakeBackend) IsSignInWithEmailLink(link string) bool {
	return link == testLink
}

func (b *fakeBackend) SignInWithEmailLink(_ context.Context, _, _ string) (*identity.UserCredential, error) {
	b.mu.Lock()
	b.linkCalls++
	err := b.linkErr
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return b.signIn()
}

func (b *fakeBackend) SignInWithPopup(_ context.Context, _ identity.FederatedProvider) (*identity.UserCredential, error) {
	b.mu.Lock()
	cred, err := b.popupCred, b.popupErr
	b.mu.Unlock()
	if err != nil || cred == nil {
		return cred, err
	}
	return b.signIn()
}

func (b *fakeBackend) SignInWithCustomToken(_ context.Context, _ string) (*identity.UserCredential, error) {
	return b.signIn()
}

func (b *fakeBackend) SignOut(_ context.Context) error {
	if b.onSignOut != nil {
		b.onSignOut()
	}
	b.mu.Lock()
	b.signOutCalls++
	if b.signOutErr != nil {
		err := b.signOutErr
		b.mu.Unlock()
		return err
	}
	changed := b.current != nil
	b.current = nil
	b.mu.Unlock()
	if changed {
		b.notify()
	}
	return nil
}

// fakePlatform implements Platform over an arbitrary store.
type fakePlatform struct {
	store    kvstore.Store
	location string

	mu               sync.Mutex
	googleSignOutErr error
	googleSignOuts   int
}

func (p *fakePlatform) Storage() kvstore.Store { return p.store }
func (p *fakePlatform) LocationURL() string { return p.location }

func (p *fakePlatform) GoogleSignOut(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.googleSignOuts++
	return p.googleSignOutErr
}

// failingStore wraps a store and fails selected operations.
type failingStore struct {
	kvstore.Store
	failGet    bool
	failSet    bool
	failRemove bool
}

var errStore = errors.New("store unavailable")

func (s *failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.failGet {
		return "", false, errStore
	}
	return s.Store.Get(ctx, key)
}

func (s *failingStore) Set(ctx context.Context, key, value string) error {
	if s.failSet {
		return errStore
	}
	return s.Store.Set(ctx, key, value)
}

func (s *failingStore) Remove(ctx context.Context, key string) error {
	if s.failRemove {
		return errStore
	}
	return s.Store.Remove(ctx, key)
}

// stubGoogle is a FederatedProvider that is never actually called by fakeBackend.
type stubGoogle struct{}

func (stubGoogle) ProviderID() string { return identity.MethodGoogle }
func (stubGoogle) Credential(context.Context) (*identity.Credential, error) {
	return identity.GoogleCredential("id", "access", testEmail), nil
}

const (
	testEmail = "ada@example.com"
	testLink  = "https://app.example.com/?mode=signIn&oobCode=abc"
	testURL   = "https://app.example.com/"
)

func testUser() *fakeUser {
	return &fakeUser{info: identity.UserInfo{UID: "uid-1", Email: testEmail, DisplayName: "Ada"}}
}

type harness struct {
	c        *Controller
	backend  *fakeBackend
	platform *fakePlatform
	store    *kvstore.Memory
}

// newHarness builds a controller that is not started; tests drive
// reconciliation directly with h.reconcile.
func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	store := kvstore.NewMemory()
	backend := newFakeBackend()
	platform := &fakePlatform{store: store, location: testURL}
	opts = append([]Option{WithGoogleProvider(stubGoogle{})}, opts...)
	c, err := New(backend, platform, opts...)
	require.NoError(t, err)
	return &harness{c: c, backend: backend, platform: platform, store: store}
}

func (h *harness) reconcile(t *testing.T) {
	t.Helper()
	require.NoError(t, h.c.reconcile(context.Background(), h.backend.CurrentUser()))
}

func (h *harness) stored(t *testing.T, key string) (string, bool) {
	t.Helper()
	v, ok, err := h.store.Get(context.Background(), key)
	require.NoError(t, err)
	return v, ok
}
