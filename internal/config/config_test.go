package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.ListenAddr())
	assert.Equal(t, "http://localhost:8080", cfg.Server.Issuer)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, int64(600), cfg.OAuth.AuthorizationCodeTTL)
	assert.Equal(t, int64(3600), cfg.OAuth.AccessTokenTTL)
	assert.True(t, cfg.OAuth.AuditEnabled)
	assert.Equal(t, []string{"*"}, cfg.OAuth.AllowedOrigins)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: 0.0.0.0
  port: 9090
  issuer: https://counterplay.example.com
oauth:
  defaultUserID: ryan
  accessTokenTTL: 1800
  supportedScopes: [loadouts:read]
  clients:
    - clientID: chatgpt-apps-sdk
      clientName: ChatGPT
      redirectURIs:
        - https://chatgpt.com/oauth/callback
      scopes: [loadouts:read]
storage:
  backend: valkey
  valkey:
    address: valkey.internal:6379
    keyPrefix: "cp:"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr())
	assert.Equal(t, "https://counterplay.example.com", cfg.Server.Issuer)
	assert.Equal(t, "ryan", cfg.OAuth.DefaultUserID)
	assert.Equal(t, int64(1800), cfg.OAuth.AccessTokenTTL)
	// Unset values keep their defaults.
	assert.Equal(t, int64(600), cfg.OAuth.AuthorizationCodeTTL)

	require.Len(t, cfg.OAuth.Clients, 1)
	assert.Equal(t, "chatgpt-apps-sdk", cfg.OAuth.Clients[0].ClientID)

	assert.Equal(t, "valkey", cfg.Storage.Backend)
	assert.Equal(t, "valkey.internal:6379", cfg.Storage.Valkey.Address)
	assert.Equal(t, "cp:", cfg.Storage.Valkey.KeyPrefix)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COUNTERPLAY_PORT", "7070")
	t.Setenv("COUNTERPLAY_ISSUER", "https://env.example.com")
	t.Setenv("COUNTERPLAY_DEFAULT_USER", "env-user")
	t.Setenv("COUNTERPLAY_STORAGE_BACKEND", "valkey")
	t.Setenv("COUNTERPLAY_VALKEY_ADDRESS", "env-valkey:6379")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "https://env.example.com", cfg.Server.Issuer)
	assert.Equal(t, "env-user", cfg.OAuth.DefaultUserID)
	assert.Equal(t, "valkey", cfg.Storage.Backend)
	assert.Equal(t, "env-valkey:6379", cfg.Storage.Valkey.Address)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "out of range",
		},
		{
			name:    "trailing slash issuer",
			mutate:  func(c *Config) { c.Server.Issuer = "http://localhost:8080/" },
			wantErr: "must not end with a slash",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Storage.Backend = "postgres" },
			wantErr: "not supported",
		},
		{
			name: "valkey without address",
			mutate: func(c *Config) {
				c.Storage.Backend = "valkey"
				c.Storage.Valkey.Address = ""
			},
			wantErr: "address is required",
		},
		{
			name: "static client without redirect URIs",
			mutate: func(c *Config) {
				c.OAuth.Clients = []StaticClient{{ClientID: "x"}}
			},
			wantErr: "redirectURIs is required",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "not supported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
