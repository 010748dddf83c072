package session

// file: internal/session/controller.go

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/authsession/internal/fsm"
	"github.com/dkoosis/authsession/internal/identity"
	"github.com/dkoosis/authsession/internal/kvstore"
	"github.com/dkoosis/authsession/internal/logging"
	"github.com/dkoosis/authsession/internal/signal"
	"golang.org/x/sync/singleflight"
)

// ErrNotSignedIn is returned by operations that need a signed-in user.
var ErrNotSignedIn = errors.New("no user is signed in")

// ErrGoogleNotConfigured is returned by SignInWithGoogle when the
// controller was built without a Google provider.
var ErrGoogleNotConfigured = errors.New("google sign-in is not configured")

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.baseLogger = logger
		}
	}
}

// WithPreProcessUser registers a pre-process hook at construction.
func WithPreProcessUser(fn PreProcessUserFunc) Option {
	return func(c *Controller) {
		c.preProcess.add(fn)
	}
}

// WithGoogleProvider sets the federated provider used by SignInWithGoogle.
func WithGoogleProvider(p identity.FederatedProvider) Option {
	return func(c *Controller) {
		c.google = p
	}
}

// Controller owns the client-side auth session. Create one with New, call
// Start to begin listening for backend notifications and Close to stop.
type Controller struct {
	backend    identity.Backend
	platform   Platform
	store      kvstore.Store
	google     identity.FederatedProvider
	baseLogger logging.Logger
	logger     logging.Logger

	gate    *Gate
	tracker *ProviderTracker
	machine *fsm.Machine

	user         *signal.Value[*AuthUserWithProviders]
	passwordMode *signal.Value[bool]

	methods singleflight.Group

	preProcess         hookList[PreProcessUserFunc]
	signOutHooks       hookList[SignOutFunc]
	magicLinkSucceeded hookList[MagicLinkSucceededFunc]

	notify   chan struct{}
	queue    userQueue
	progress progress

	startOnce   sync.Once
	closeOnce   sync.Once
	cancel      context.CancelFunc
	done        chan struct{}
	unsubscribe func()
}

// New creates a controller for backend and platform.
func New(backend identity.Backend, platform Platform, opts ...Option) (*Controller, error) {
	if backend == nil {
		return nil, errors.New("identity backend is required")
	}
	if platform == nil || platform.Storage() == nil {
		return nil, errors.New("platform with storage is required")
	}

	c := &Controller{
		backend:      backend,
		platform:     platform,
		store:        platform.Storage(),
		baseLogger:   logging.GetNoopLogger(),
		gate:         NewGate(),
		user:         signal.New[*AuthUserWithProviders](nil),
		passwordMode: signal.New(false),
		notify:       make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	c.progress.changed = make(chan struct{})
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.baseLogger.WithField("component", "session_controller")
	c.tracker = NewProviderTracker(c.store, c.baseLogger)

	machine, err := newStateMachine(c.baseLogger.WithField("component", "session_fsm"), c.evaluatePasswordMode)
	if err != nil {
		return nil, err
	}
	c.machine = machine
	return c, nil
}

// Start subscribes to backend notifications and starts the reconciliation
// loop. If the platform's location is a sign-in link it is redeemed before
// Start returns. Calling Start again has no effect.
func (c *Controller) Start(ctx context.Context) error {
	started := false
	c.startOnce.Do(func() {
		started = true
		loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c.cancel = cancel
		go c.run(loopCtx)
		c.unsubscribe = c.backend.OnAuthStateChanged(c.onAuthStateChanged)
		c.logger.Info("Session controller started.")
	})
	if !started {
		return nil
	}

	link := c.platform.LocationURL()
	if link == "" || !c.backend.IsSignInWithEmailLink(link) {
		return nil
	}
	res, err := c.RedeemEmailLink(ctx, link)
	if err != nil {
		return errors.Wrap(err, "failed to redeem startup sign-in link")
	}
	c.logger.Info("Startup sign-in link processed.", "outcome", res.Outcome)
	return nil
}

// Close unsubscribes from the backend and stops the reconciliation loop.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		if c.cancel != nil {
			c.cancel()
			<-c.done
		}
		c.logger.Info("Session controller closed.")
	})
	return nil
}

// onAuthStateChanged is the backend listener. It captures the backend's
// current user and queues it, so every notification gets its own
// reconciliation in arrival order. It never blocks on the loop.
func (c *Controller) onAuthStateChanged() {
	c.queue.push(c.backend.CurrentUser, c.progress.received)
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.notify:
			for {
				u, ok := c.queue.pop()
				if !ok {
					break
				}
				if err := c.reconcile(ctx, u); err != nil {
					c.logger.Error("Session reconciliation failed.", "error", err)
				}
				c.progress.processed()
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// Sync blocks until every notification received so far has been reconciled.
func (c *Controller) Sync(ctx context.Context) error {
	return c.progress.wait(ctx)
}

// User returns the committed snapshot, or nil when signed out.
func (c *Controller) User() *AuthUserWithProviders {
	return c.user.Get()
}

// SubscribeUser registers fn for snapshot commits.
func (c *Controller) SubscribeUser(fn func(*AuthUserWithProviders)) (unsubscribe func()) {
	return c.user.Subscribe(fn)
}

// Initializing reports whether the session is still settling.
func (c *Controller) Initializing() bool {
	return c.gate.Initializing()
}

// SubscribeInitializing registers fn for changes of Initializing.
func (c *Controller) SubscribeInitializing(fn func(bool)) (unsubscribe func()) {
	return c.gate.Subscribe(fn)
}

// SetPasswordMode reports whether the user should be asked to set a password.
func (c *Controller) SetPasswordMode() bool {
	return c.passwordMode.Get()
}

// SubscribeSetPasswordMode registers fn for changes of SetPasswordMode.
func (c *Controller) SubscribeSetPasswordMode(fn func(bool)) (unsubscribe func()) {
	return c.passwordMode.Subscribe(fn)
}

// State returns the lifecycle state.
func (c *Controller) State() fsm.State {
	return c.machine.Current()
}

// OnPreProcessUser registers a hook run on every snapshot before commit.
func (c *Controller) OnPreProcessUser(fn PreProcessUserFunc) (remove func()) {
	return c.preProcess.add(fn)
}

// OnSignOut registers a hook awaited before the backend sign-out.
func (c *Controller) OnSignOut(fn SignOutFunc) (remove func()) {
	return c.signOutHooks.add(fn)
}

// OnMagicLinkSucceeded registers a listener for redeemed magic links.
func (c *Controller) OnMagicLinkSucceeded(fn MagicLinkSucceededFunc) (remove func()) {
	return c.magicLinkSucceeded.add(fn)
}

// SkipPasswordMode dismisses the password-setup prompt.
func (c *Controller) SkipPasswordMode() {
	c.passwordMode.Set(false)
}

// GetHasAccount reports whether any sign-in method is registered for email.
func (c *Controller) GetHasAccount(ctx context.Context, email string) (bool, error) {
	methods, err := c.fetchMethods(ctx, NormalizeEmail(email))
	if err != nil {
		c.logger.Error("Failed to look up sign-in methods.", "error", err)
		return false, err
	}
	return len(methods) > 0, nil
}

// fetchMethods queries the backend, sharing one request between
// concurrent callers asking about the same email. The shared request does
// not inherit any caller's cancellation; each caller stops waiting when its
// own ctx is done.
func (c *Controller) fetchMethods(ctx context.Context, email string) ([]string, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.methods.DoChan(email, func() (any, error) {
		return c.backend.FetchSignInMethodsForEmail(shared, email)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		methods, _ := res.Val.([]string)
		return methods, nil
	}
}

// userQueue holds the users captured at notification time, oldest first.
type userQueue struct {
	mu    sync.Mutex
	users []identity.User
}

// push captures the current user and counts the notification under one
// lock, so capture order and queue order agree.
func (q *userQueue) push(current func() identity.User, count func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.users = append(q.users, current())
	count()
}

func (q *userQueue) pop() (identity.User, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.users) == 0 {
		return nil, false
	}
	u := q.users[0]
	q.users[0] = nil
	q.users = q.users[1:]
	return u, true
}

// progress counts notifications so Sync can wait for the loop to catch up.
type progress struct {
	mu      sync.Mutex
	seen    uint64
	handled uint64
	changed chan struct{}
}

func (p *progress) received() {
	p.mu.Lock()
	p.seen++
	p.mu.Unlock()
}

func (p *progress) processed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handled++
	close(p.changed)
	p.changed = make(chan struct{})
}

func (p *progress) wait(ctx context.Context) error {
	p.mu.Lock()
	target := p.seen
	p.mu.Unlock()
	for {
		p.mu.Lock()
		if p.handled >= target {
			p.mu.Unlock()
			return nil
		}
		ch := p.changed
		p.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
