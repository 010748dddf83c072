package kvstore

// file: internal/kvstore/open.go

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/authsession/internal/logging"
)

// Kind names a storage backend.
type Kind string

// Supported backends.
const (
	KindAuto    Kind = "auto"
	KindMemory  Kind = "memory"
	KindFile    Kind = "file"
	KindKeyring Kind = "keyring"
	KindRedis   Kind = "redis"
	KindSQLite  Kind = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Kind           Kind
	Path           string // file and sqlite
	KeyringService string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	Prefix         string // redis key prefix
}

// Open creates the store described by opts. KindAuto prefers the OS keyring
// and falls back to the file store when the keyring cannot be reached.
func Open(ctx context.Context, opts Options, logger logging.Logger) (Store, error) {
	logger = logging.OrNoop(logger)
	switch opts.Kind {
	case KindMemory:
		return NewMemory(), nil
	case KindFile:
		return NewFile(opts.Path, logger)
	case KindKeyring:
		return NewKeyring(opts.KeyringService, logger), nil
	case KindRedis:
		return DialRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.Prefix)
	case KindSQLite:
		return OpenSQLite(ctx, opts.Path)
	case KindAuto, "":
		kr := NewKeyring(opts.KeyringService, logger)
		if kr.IsAvailable() {
			logger.Info("Using secure storage (OS keyring).", "service", kr.Service())
			return kr, nil
		}
		logger.Info("Secure storage not available, falling back to file-based storage.", "path", opts.Path)
		return NewFile(opts.Path, logger)
	default:
		return nil, errors.Newf("unknown storage kind %q", opts.Kind)
	}
}
