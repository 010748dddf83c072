package session

// file: internal/session/gate.go

import (
	"sync"

	"github.com/dkoosis/authsession/internal/signal"
)

// Gate tracks whether the session is settling. It is held for the whole of
// every reconciliation and every sign-out, and it reports initializing until
// the first reconciliation has fully completed.
type Gate struct {
	mu     sync.Mutex
	count  int
	booted bool
	value  *signal.Value[bool]
}

// NewGate returns a gate that reports initializing.
func NewGate() *Gate {
	return &Gate{value: signal.New(true)}
}

// Enter holds the gate until the returned release is called. Release is
// idempotent; call it with defer so every exit path lets go.
func (g *Gate) Enter() (release func()) {
	g.mu.Lock()
	g.count++
	g.publishLocked()
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.count--
			g.publishLocked()
			g.mu.Unlock()
		})
	}
}

// MarkBooted records that the first reconciliation has started. The gate
// keeps reporting initializing until that reconciliation releases it.
func (g *Gate) MarkBooted() {
	g.mu.Lock()
	g.booted = true
	g.publishLocked()
	g.mu.Unlock()
}

// Initializing reports whether a reconciliation or sign-out is in flight,
// or no reconciliation has completed yet.
func (g *Gate) Initializing() bool {
	return g.value.Get()
}

// Subscribe registers fn for changes of Initializing. fn must not call
// Enter or MarkBooted.
func (g *Gate) Subscribe(fn func(bool)) (unsubscribe func()) {
	return g.value.Subscribe(fn)
}

func (g *Gate) publishLocked() {
	next := g.count > 0 || !g.booted
	if next != g.value.Get() {
		g.value.Set(next)
	}
}
