package session

// file: internal/session/platform.go

import (
	"context"

	"github.com/dkoosis/authsession/internal/kvstore"
)

// Platform is what the host application provides to the controller.
type Platform interface {
	// Storage is the durable store for provider and magic-link state.
	Storage() kvstore.Store

	// LocationURL is the application's current location. At startup it
	// may be a link to redeem; otherwise it is the return URL of emailed
	// links.
	LocationURL() string

	// GoogleSignOut ends the federated Google session, if any.
	GoogleSignOut(ctx context.Context) error
}
