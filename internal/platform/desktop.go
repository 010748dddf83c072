// Package platform provides the host capabilities the session controller
// needs when it runs as a desktop or command-line application.
package platform

// file: internal/platform/desktop.go

import (
	"context"
	"sync"

	"github.com/dkoosis/authsession/internal/kvstore"
	"github.com/dkoosis/authsession/internal/logging"
	"github.com/dkoosis/authsession/internal/session"
)

// GoogleSession ends a federated Google session. *google.Provider implements it.
type GoogleSession interface {
	SignOut(ctx context.Context) error
}

// Desktop implements session.Platform over a durable store, a configured
// return URL and an optional Google session.
type Desktop struct {
	store  kvstore.Store
	google GoogleSession
	logger logging.Logger

	returnURL string

	mu       sync.RWMutex
	location string
}

var _ session.Platform = (*Desktop)(nil)

// NewDesktop creates a Desktop. google may be nil when Google sign-in is
// not configured.
func NewDesktop(store kvstore.Store, returnURL string, google GoogleSession, logger logging.Logger) *Desktop {
	return &Desktop{
		store:     store,
		google:    google,
		returnURL: returnURL,
		location:  returnURL,
		logger:    logging.OrNoop(logger).WithField("component", "desktop_platform"),
	}
}

// Storage implements session.Platform.
func (d *Desktop) Storage() kvstore.Store { return d.store }

// LocationURL implements session.Platform.
func (d *Desktop) LocationURL() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.location
}

// SetLocationURL records the location the application was opened with,
// such as a sign-in link passed on the command line. Until ResetLocation is
// called it is also the return URL of newly requested links.
func (d *Desktop) SetLocationURL(u string) {
	d.mu.Lock()
	d.location = u
	d.mu.Unlock()
}

// ResetLocation moves the application back to its configured return URL,
// once the location it was opened with has been handled.
func (d *Desktop) ResetLocation() {
	d.mu.Lock()
	d.location = d.returnURL
	d.mu.Unlock()
}

// GoogleSignOut implements session.Platform.
func (d *Desktop) GoogleSignOut(ctx context.Context) error {
	if d.google == nil {
		return nil
	}
	if err := d.google.SignOut(ctx); err != nil {
		return err
	}
	d.logger.Debug("Google session ended.")
	return nil
}
