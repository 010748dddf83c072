// Package config handles loading, parsing, and validating application configuration.
// It defines the structure for configuration settings, provides default values,
// loads settings from YAML files, and applies overrides from .env files and
// environment variables.
package config

// file: internal/config/config.go

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/dkoosis/authsession/internal/google"
	"github.com/dkoosis/authsession/internal/kvstore"
	"github.com/dkoosis/authsession/internal/logging"
	"github.com/dkoosis/authsession/internal/mailer"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "AUTHSESSION_"

// StorageConfig selects the durable store for session metadata.
type StorageConfig struct {
	// Kind is one of auto, memory, file, keyring, redis, sqlite.
	Kind string `yaml:"kind" json:"kind" env:"KIND"`
	// Path is the file or database location for the file and sqlite stores,
	// and the fallback file for auto. Supports '~' expansion.
	Path           string `yaml:"path" json:"path" env:"PATH"`
	KeyringService string `yaml:"keyring_service" json:"keyring_service" env:"KEYRING_SERVICE"`
	RedisAddr      string `yaml:"redis_addr" json:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword  string `yaml:"redis_password" json:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB        int    `yaml:"redis_db" json:"redis_db" env:"REDIS_DB"`
	// Prefix namespaces redis keys.
	Prefix string `yaml:"prefix" json:"prefix" env:"PREFIX"`
}

// GoogleConfig configures the federated Google sign-in. Google sign-in is
// disabled while ClientID is empty.
type GoogleConfig struct {
	ClientID     string        `yaml:"client_id" json:"client_id" env:"CLIENT_ID"`
	ClientSecret string        `yaml:"client_secret" json:"client_secret" env:"CLIENT_SECRET"`
	Scopes       []string      `yaml:"scopes" json:"scopes" env:"SCOPES" envSeparator:","`
	ListenAddr   string        `yaml:"listen_addr" json:"listen_addr" env:"LISTEN_ADDR"`
	RevokeURL    string        `yaml:"revoke_url" json:"revoke_url" env:"REVOKE_URL"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`
}

// Enabled reports whether Google sign-in is configured.
func (g GoogleConfig) Enabled() bool { return g.ClientID != "" }

// MagicLinkConfig configures emailed sign-in links.
type MagicLinkConfig struct {
	// ReturnURL is where a redeemed link sends the user back to.
	ReturnURL string        `yaml:"return_url" json:"return_url" env:"RETURN_URL"`
	TTL       time.Duration `yaml:"ttl" json:"ttl" env:"TTL"`
}

// DevConfig configures the developer login bypass.
type DevConfig struct {
	// Secret signs developer tokens. Dev login is disabled while it is empty.
	Secret   string        `yaml:"secret" json:"secret" env:"SECRET"`
	TokenTTL time.Duration `yaml:"token_ttl" json:"token_ttl" env:"TOKEN_TTL"`
}

// MailConfig selects how sign-in links are delivered.
type MailConfig struct {
	// Provider is outbox (log only) or postmark.
	Provider             string `yaml:"provider" json:"provider" env:"PROVIDER"`
	PostmarkServerToken  string `yaml:"postmark_server_token" json:"postmark_server_token" env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `yaml:"postmark_account_token" json:"postmark_account_token" env:"POSTMARK_ACCOUNT_TOKEN"`
	From                 string `yaml:"from" json:"from" env:"FROM"`
	Subject              string `yaml:"subject" json:"subject" env:"SUBJECT"`
}

// LoggingConfig controls log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"LEVEL"`
	Format string `yaml:"format" json:"format" env:"FORMAT"`
}

// Config is the root configuration structure for authsession.
type Config struct {
	Storage   StorageConfig   `yaml:"storage" json:"storage" envPrefix:"STORAGE_"`
	Google    GoogleConfig    `yaml:"google" json:"google" envPrefix:"GOOGLE_"`
	MagicLink MagicLinkConfig `yaml:"magic_link" json:"magic_link" envPrefix:"MAGIC_LINK_"`
	Dev       DevConfig       `yaml:"dev" json:"dev" envPrefix:"DEV_"`
	Mail      MailConfig      `yaml:"mail" json:"mail" envPrefix:"MAIL_"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging" envPrefix:"LOGGING_"`
}

// DefaultConfig returns a configuration populated with default values.
// The default store path lives in the user's config directory.
func DefaultConfig() *Config {
	storePath := "authsession.json"
	if homeDir, err := os.UserHomeDir(); err == nil {
		storePath = filepath.Join(homeDir, ".config", "authsession", "session.json")
	}

	return &Config{
		Storage: StorageConfig{
			Kind:           string(kvstore.KindAuto),
			Path:           storePath,
			KeyringService: kvstore.DefaultKeyringService,
			Prefix:         "authsession:",
		},
		Google: GoogleConfig{
			Scopes:     []string{"openid", "email", "profile"},
			ListenAddr: "127.0.0.1:0",
			RevokeURL:  google.DefaultRevokeURL,
			Timeout:    5 * time.Minute,
		},
		MagicLink: MagicLinkConfig{
			ReturnURL: "http://localhost:8765/",
			TTL:       time.Hour,
		},
		Dev: DevConfig{
			TokenTTL: time.Hour,
		},
		Mail: MailConfig{
			Provider: "outbox",
			Subject:  mailer.DefaultSubject,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (when
// path is not empty), then variables from a .env file in the working
// directory, then AUTHSESSION_* environment variables. The result is
// validated before it is returned.
func Load(path string, logger logging.Logger) (*Config, error) {
	logger = logging.OrNoop(logger).WithField("component", "config")
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
		logger.Debug("Configuration file loaded.", "path", path)
	}

	if err := godotenv.Load(); err == nil {
		logger.Debug("Loaded environment from .env file.")
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "failed to load .env file")
	}

	if err := cfg.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}

	expanded, err := ExpandPath(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	cfg.Storage.Path = expanded

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile parses the YAML file at path over the current values.
func (c *Config) mergeFile(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	// #nosec G304 -- Path comes from a command-line flag, considered trusted input.
	data, err := os.ReadFile(expanded)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file: %s", expanded)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "failed to parse config file YAML: %s", expanded)
	}
	return nil
}

// applyEnvironmentOverrides applies AUTHSESSION_* variables. Variables that
// are not set leave the current value alone.
func (c *Config) applyEnvironmentOverrides() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return errors.Wrap(err, "failed to apply environment overrides")
	}
	return nil
}

// StoreOptions maps the storage section to kvstore.Options.
func (c *Config) StoreOptions() kvstore.Options {
	return kvstore.Options{
		Kind:           kvstore.Kind(c.Storage.Kind),
		Path:           c.Storage.Path,
		KeyringService: c.Storage.KeyringService,
		RedisAddr:      c.Storage.RedisAddr,
		RedisPassword:  c.Storage.RedisPassword,
		RedisDB:        c.Storage.RedisDB,
		Prefix:         c.Storage.Prefix,
	}
}

// PostmarkConfig maps the mail section to mailer.PostmarkConfig.
func (c *Config) PostmarkConfig() mailer.PostmarkConfig {
	return mailer.PostmarkConfig{
		ServerToken:  c.Mail.PostmarkServerToken,
		AccountToken: c.Mail.PostmarkAccountToken,
		From:         c.Mail.From,
		Subject:      c.Mail.Subject,
	}
}

// ExpandPath expands a leading '~' to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory to expand path")
	}
	return filepath.Join(home, path[1:]), nil
}
