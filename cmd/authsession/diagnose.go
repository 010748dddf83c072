package main

// file: cmd/authsession/diagnose.go

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/authsession/internal/kvstore"
	"github.com/dkoosis/authsession/internal/logging"
	"github.com/spf13/cobra"
)

const probeKey = "authsession.diagnostic.probe"

func newDiagnoseStorageCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose-storage",
		Short: "Check that the configured session store can be written and read",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			opts := cfg.StoreOptions()
			store, err := kvstore.Open(cmd.Context(), opts, logger.WithField("component", "kvstore"))
			if err != nil {
				return errors.Wrap(err, "failed to open session store")
			}
			if c, ok := store.(kvstore.Closer); ok {
				defer c.Close()
			}
			return diagnoseStore(cmd.Context(), cmd.OutOrStdout(), opts, store, logger)
		},
	}
}

// storeReport collects the outcome of one probe round trip.
type storeReport struct {
	setErr    error
	getErr    error
	match     bool
	removeErr error
	leftover  bool
}

func (r storeReport) err() error {
	switch {
	case r.setErr != nil:
		return errors.Wrap(r.setErr, "set failed")
	case r.getErr != nil:
		return errors.Wrap(r.getErr, "get failed")
	case !r.match:
		return errors.New("value read back does not match value written")
	case r.removeErr != nil:
		return errors.Wrap(r.removeErr, "remove failed")
	case r.leftover:
		return errors.New("probe key still present after remove")
	}
	return nil
}

func probeStore(ctx context.Context, store kvstore.Store) storeReport {
	var r storeReport
	want := fmt.Sprintf("probe-%d", time.Now().UnixNano())
	if r.setErr = store.Set(ctx, probeKey, want); r.setErr != nil {
		return r
	}
	got, ok, err := store.Get(ctx, probeKey)
	r.getErr = err
	r.match = ok && got == want
	r.removeErr = store.Remove(ctx, probeKey)
	if r.removeErr == nil {
		_, r.leftover, _ = store.Get(ctx, probeKey)
	}
	return r
}

func diagnoseStore(ctx context.Context, out io.Writer, opts kvstore.Options, store kvstore.Store, logger logging.Logger) error {
	logger.Info("Starting storage diagnostics.", "kind", opts.Kind)

	fmt.Fprintln(out, "=== Session Store Diagnostics ===")
	fmt.Fprintf(out, "%-18s: %s\n", "Configured Kind", opts.Kind)
	fmt.Fprintf(out, "%-18s: %T\n", "Backend", store)
	switch s := store.(type) {
	case *kvstore.Keyring:
		fmt.Fprintf(out, "%-18s: %s\n", "Keyring Service", s.Service())
		fmt.Fprintf(out, "%-18s: %t\n", "Keyring Available", s.IsAvailable())
	case *kvstore.File:
		fmt.Fprintf(out, "%-18s: %s\n", "File Path", s.Path())
	case *kvstore.SQLite:
		fmt.Fprintf(out, "%-18s: %s\n", "Database Path", opts.Path)
	case *kvstore.Redis:
		fmt.Fprintf(out, "%-18s: %s (db %d)\n", "Redis Address", opts.RedisAddr, opts.RedisDB)
	}

	r := probeStore(ctx, store)
	fmt.Fprintln(out, "\nRound trip:")
	fmt.Fprintf(out, "%-18s: %s\n", "Set Operation", outcome(r.setErr))
	if r.setErr == nil {
		fmt.Fprintf(out, "%-18s: %s\n", "Get Operation", outcome(r.getErr))
		fmt.Fprintf(out, "%-18s: %t\n", "Get Value Match", r.match)
		fmt.Fprintf(out, "%-18s: %s\n", "Remove Operation", outcome(r.removeErr))
	}

	if err := r.err(); err != nil {
		logger.Warn("Storage diagnostics failed.", "error", err)
		fmt.Fprintln(out, "\nRecommendations:")
		if _, ok := store.(*kvstore.Keyring); ok {
			fmt.Fprintln(out, "1. Make sure the login keychain (or Secret Service) is unlocked.")
			fmt.Fprintln(out, "2. Set storage.kind to \"file\" to keep sessions in a local file instead.")
		} else {
			fmt.Fprintln(out, "Check the storage settings and that the backend is reachable.")
		}
		return err
	}
	fmt.Fprintln(out, "\nSession store appears to be working correctly.")
	return nil
}

func outcome(err error) string {
	if err != nil {
		return "failed: " + err.Error()
	}
	return "ok"
}
