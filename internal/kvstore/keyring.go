package kvstore

// file: internal/kvstore/keyring.go

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/authsession/internal/logging"
	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keychain service name entries are stored under.
const DefaultKeyringService = "authsession"

// probeKey is read by IsAvailable; it is never written.
const probeKey = "authsession.probe"

// Keyring stores each key as its own entry in the OS keychain.
type Keyring struct {
	service string
	logger  logging.Logger
}

var _ Store = (*Keyring)(nil)

// NewKeyring creates a keychain-backed store under the given service name.
func NewKeyring(service string, logger logging.Logger) *Keyring {
	if service == "" {
		service = DefaultKeyringService
	}
	return &Keyring{
		service: service,
		logger:  logging.OrNoop(logger).WithField("component", "keyring_store"),
	}
}

// Service returns the keychain service name.
func (k *Keyring) Service() string { return k.service }

// IsAvailable checks whether the OS keychain can be reached. A missing
// entry counts as available.
func (k *Keyring) IsAvailable() bool {
	_, err := keyring.Get(k.service, probeKey)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return true
	}
	k.logger.Warn("Keyring service is inaccessible or permissions are insufficient.", "error", err)
	return false
}

// Get implements Store.
func (k *Keyring) Get(_ context.Context, key string) (string, bool, error) {
	v, err := keyring.Get(k.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		k.logger.Error("keyring.Get operation failed.", "key", key, "error", err)
		return "", false, errors.Wrapf(err, "failed to read %q from system keyring", key)
	}
	return v, true, nil
}

// Set implements Store.
func (k *Keyring) Set(_ context.Context, key, value string) error {
	if err := keyring.Set(k.service, key, value); err != nil {
		k.logger.Error("keyring.Set operation failed.", "key", key, "error", err)
		return errors.Wrapf(err, "failed to write %q to system keyring", key)
	}
	return nil
}

// Remove implements Store.
func (k *Keyring) Remove(_ context.Context, key string) error {
	err := keyring.Delete(k.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		k.logger.Error("keyring.Delete operation failed.", "key", key, "error", err)
		return errors.Wrapf(err, "failed to delete %q from system keyring", key)
	}
	return nil
}
