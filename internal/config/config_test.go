package config

// file: internal/config/config_test.go

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkoosis/authsession/internal/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// inTempDir keeps Load from picking up a .env file from the package directory.
func inTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, "auto", cfg.Storage.Kind)
	assert.Equal(t, kvstore.DefaultKeyringService, cfg.Storage.KeyringService)
	assert.False(t, cfg.Google.Enabled())
}

func TestLoad_File_OverridesDefaults(t *testing.T) {
	inTempDir(t)
	path := writeConfig(t, `
storage:
  kind: sqlite
  path: /tmp/authsession.db
google:
  client_id: abc.apps.googleusercontent.com
  timeout: 2m
magic_link:
  return_url: https://app.example.com/finish
dev:
  secret: 0123456789abcdef0123456789abcdef
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Kind)
	assert.Equal(t, "/tmp/authsession.db", cfg.Storage.Path)
	assert.True(t, cfg.Google.Enabled())
	assert.Equal(t, 2*time.Minute, cfg.Google.Timeout)
	assert.Equal(t, []string{"openid", "email", "profile"}, cfg.Google.Scopes, "unset fields keep defaults")
	assert.Equal(t, "https://app.example.com/finish", cfg.MagicLink.ReturnURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	inTempDir(t)
	path := writeConfig(t, `
storage:
  kind: file
  path: /tmp/session.json
`)
	t.Setenv("AUTHSESSION_STORAGE_KIND", "redis")
	t.Setenv("AUTHSESSION_STORAGE_REDIS_ADDR", "localhost:6379")
	t.Setenv("AUTHSESSION_STORAGE_REDIS_DB", "3")
	t.Setenv("AUTHSESSION_GOOGLE_SCOPES", "openid,email")
	t.Setenv("AUTHSESSION_MAGIC_LINK_TTL", "30m")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	opts := cfg.StoreOptions()
	assert.Equal(t, kvstore.KindRedis, opts.Kind)
	assert.Equal(t, "localhost:6379", opts.RedisAddr)
	assert.Equal(t, 3, opts.RedisDB)
	assert.Equal(t, "/tmp/session.json", opts.Path)
	assert.Equal(t, []string{"openid", "email"}, cfg.Google.Scopes)
	assert.Equal(t, 30*time.Minute, cfg.MagicLink.TTL)
}

func TestLoad_DotEnvFile_Applied(t *testing.T) {
	inTempDir(t)
	require.NoError(t, os.WriteFile(".env", []byte("AUTHSESSION_LOGGING_LEVEL=warn\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("AUTHSESSION_LOGGING_LEVEL") })

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_ExpandsHomeInStoragePath(t *testing.T) {
	inTempDir(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("AUTHSESSION_STORAGE_PATH", "~/state/session.json")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "state", "session.json"), cfg.Storage.Path)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown storage kind", body: "storage:\n  kind: floppy\n"},
		{name: "redis without address", body: "storage:\n  kind: redis\n"},
		{name: "file without path", body: "storage:\n  kind: file\n  path: \"\"\n"},
		{name: "postmark without token", body: "mail:\n  provider: postmark\n  from: links@example.com\n"},
		{name: "short dev secret", body: "dev:\n  secret: short\n"},
		{name: "bad log level", body: "logging:\n  level: loud\n"},
		{name: "relative return url", body: "magic_link:\n  return_url: /finish\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTempDir(t)
			_, err := Load(writeConfig(t, tt.body), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestLoad_MissingOrMalformedFile(t *testing.T) {
	inTempDir(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "storage: [unclosed"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file YAML")
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandPath("~/x/y")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x", "y"), got)

	got, err = ExpandPath("/etc/authsession")
	require.NoError(t, err)
	assert.Equal(t, "/etc/authsession", got)

	got, err = ExpandPath("~other/x")
	require.NoError(t, err)
	assert.Equal(t, "~other/x", got, "other users' homes are not expanded")
}
