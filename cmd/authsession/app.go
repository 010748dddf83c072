package main

// file: cmd/authsession/app.go

import (
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/authsession/internal/config"
	"github.com/dkoosis/authsession/internal/google"
	"github.com/dkoosis/authsession/internal/identity/memory"
	"github.com/dkoosis/authsession/internal/kvstore"
	"github.com/dkoosis/authsession/internal/logging"
	"github.com/dkoosis/authsession/internal/mailer"
	"github.com/dkoosis/authsession/internal/platform"
	"github.com/dkoosis/authsession/internal/session"
)

// app wires one controller to the in-process identity backend and the
// configured store, mailer and Google provider.
type app struct {
	cfg        *config.Config
	logger     logging.Logger
	store      kvstore.Store
	backend    *memory.Backend
	outbox     *mailer.Outbox // nil when mail goes through Postmark
	google     *google.Provider
	platform   *platform.Desktop
	controller *session.Controller
}

// newApp builds the application. out receives Google consent URLs.
func newApp(ctx context.Context, cfg *config.Config, out io.Writer, logger logging.Logger) (*app, error) {
	logger = logging.OrNoop(logger)

	store, err := kvstore.Open(ctx, cfg.StoreOptions(), logger.WithField("component", "kvstore"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open session store")
	}

	a := &app{cfg: cfg, logger: logger, store: store}

	var sender mailer.Sender
	switch cfg.Mail.Provider {
	case "postmark":
		pm, err := mailer.NewPostmark(cfg.PostmarkConfig())
		if err != nil {
			a.closeStore()
			return nil, errors.Wrap(err, "failed to configure postmark")
		}
		sender = pm
	default:
		a.outbox = mailer.NewOutbox(logger)
		sender = a.outbox
	}

	a.backend = memory.New(memory.Options{
		Mailer:    sender,
		DevSecret: []byte(cfg.Dev.Secret),
		LinkTTL:   cfg.MagicLink.TTL,
		Logger:    logger,
	})

	opts := []session.Option{session.WithLogger(logger)}
	var googleSession platform.GoogleSession
	if cfg.Google.Enabled() {
		a.google = google.New(google.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			Scopes:       cfg.Google.Scopes,
			RevokeURL:    cfg.Google.RevokeURL,
			ListenAddr:   cfg.Google.ListenAddr,
			Timeout:      cfg.Google.Timeout,
		}, func(authURL string) error {
			_, err := fmt.Fprintf(out, "Open this URL to continue with Google:\n  %s\n", authURL)
			return err
		}, logger)
		googleSession = a.google
		opts = append(opts, session.WithGoogleProvider(a.google))
	}

	a.platform = platform.NewDesktop(store, cfg.MagicLink.ReturnURL, googleSession, logger)
	a.controller, err = session.New(a.backend, a.platform, opts...)
	if err != nil {
		a.closeStore()
		return nil, err
	}
	return a, nil
}

// start begins listening for auth-state changes. A non-empty link is
// treated as the location the application was opened with; it is redeemed
// by Start and links requested later return to the configured URL.
func (a *app) start(ctx context.Context, link string) error {
	if link != "" {
		a.platform.SetLocationURL(link)
		defer a.platform.ResetLocation()
	}
	if err := a.controller.Start(ctx); err != nil {
		return err
	}
	return a.controller.Sync(ctx)
}

func (a *app) close() {
	if a.controller != nil {
		_ = a.controller.Close()
	}
	a.closeStore()
}

func (a *app) closeStore() {
	if c, ok := a.store.(kvstore.Closer); ok {
		if err := c.Close(); err != nil {
			a.logger.Warn("Failed to close session store.", "error", err)
		}
	}
}
