package session

// file: internal/session/events.go

import (
	"context"
	"sync"
)

// PreProcessUserFunc may transform a snapshot before it is committed.
// Returning a nil snapshot or an error vetoes the commit and leaves the
// previous snapshot in place.
type PreProcessUserFunc func(ctx context.Context, user *AuthUserWithProviders) (*AuthUserWithProviders, error)

// SignOutFunc runs before the backend sign-out. An error aborts the sign-out.
type SignOutFunc func(ctx context.Context) error

// MagicLinkSucceededFunc is told the reason of every redeemed magic link.
type MagicLinkSucceededFunc func(reason MagicLinkReason)

// hookList is an ordered set of listeners that can be removed again.
type hookList[F any] struct {
	mu     sync.RWMutex
	nextID int
	ids    []int
	fns    []F
}

func (h *hookList[F]) add(fn F) (remove func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.ids = append(h.ids, id)
	h.fns = append(h.fns, fn)
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, v := range h.ids {
			if v == id {
				h.ids = append(h.ids[:i:i], h.ids[i+1:]...)
				h.fns = append(h.fns[:i:i], h.fns[i+1:]...)
				return
			}
		}
	}
}

// snapshot returns the listeners in registration order.
func (h *hookList[F]) snapshot() []F {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]F(nil), h.fns...)
}
