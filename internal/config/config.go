// Package config loads the Counterplay server configuration from a YAML
// file with environment variable overrides. Defaults are safe for local
// development; production deployments override the issuer and storage
// settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Issuer is the externally visible base URL. It appears in discovery
	// metadata and token responses, so it must match what clients see.
	Issuer string `yaml:"issuer"`
}

// OAuthConfig holds authorization server settings.
type OAuthConfig struct {
	DefaultUserID        string   `yaml:"defaultUserID"`
	AuthorizationCodeTTL int64    `yaml:"authorizationCodeTTL"` // seconds
	AccessTokenTTL       int64    `yaml:"accessTokenTTL"`       // seconds
	RefreshTokenTTL      int64    `yaml:"refreshTokenTTL"`      // seconds
	SupportedScopes      []string `yaml:"supportedScopes"`
	EnableRegistration   bool     `yaml:"enableRegistration"`
	MaxClientsPerIP      int      `yaml:"maxClientsPerIP"`
	TrustProxy           bool     `yaml:"trustProxy"`
	TrustedProxyCount    int      `yaml:"trustedProxyCount"`
	AllowedOrigins       []string `yaml:"allowedOrigins"`
	RateLimitPerSecond   int      `yaml:"rateLimitPerSecond"`
	RateLimitBurst       int      `yaml:"rateLimitBurst"`
	AuditEnabled         bool     `yaml:"auditEnabled"`

	// Clients seeds the registry at startup. Seeded clients are public
	// (PKCE-only) unless a secret hash is provided.
	Clients []StaticClient `yaml:"clients"`
}

// StaticClient is a client seeded into the registry at startup.
type StaticClient struct {
	ClientID         string   `yaml:"clientID"`
	ClientName       string   `yaml:"clientName"`
	RedirectURIs     []string `yaml:"redirectURIs"`
	Scopes           []string `yaml:"scopes"`
	ClientSecretHash string   `yaml:"clientSecretHash"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	// Backend is "memory" or "valkey".
	Backend string       `yaml:"backend"`
	Valkey  ValkeyConfig `yaml:"valkey"`
}

// ValkeyConfig holds Valkey connection settings.
type ValkeyConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
	TLS       bool   `yaml:"tls"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"serviceName"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// Default returns the development default configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:   "localhost",
			Port:   8080,
			Issuer: "http://localhost:8080",
		},
		OAuth: OAuthConfig{
			DefaultUserID:        "operator",
			AuthorizationCodeTTL: 600,
			AccessTokenTTL:       3600,
			RefreshTokenTTL:      7776000,
			SupportedScopes:      []string{"loadouts:read", "loadouts:write", "profile:read"},
			EnableRegistration:   true,
			MaxClientsPerIP:      10,
			TrustedProxyCount:    1,
			AllowedOrigins:       []string{"*"},
			RateLimitPerSecond:   20,
			RateLimitBurst:       40,
			AuditEnabled:         true,
		},
		Storage: StorageConfig{
			Backend: "memory",
			Valkey: ValkeyConfig{
				Address:   "localhost:6379",
				KeyPrefix: "counterplay:",
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName: "counterplay",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from path, falling back to defaults when the
// file does not exist, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides applies COUNTERPLAY_* environment variables on top of
// the file configuration. Only deploy-time settings are overridable.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COUNTERPLAY_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("COUNTERPLAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("COUNTERPLAY_ISSUER"); v != "" {
		cfg.Server.Issuer = v
	}
	if v := os.Getenv("COUNTERPLAY_DEFAULT_USER"); v != "" {
		cfg.OAuth.DefaultUserID = v
	}
	if v := os.Getenv("COUNTERPLAY_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("COUNTERPLAY_VALKEY_ADDRESS"); v != "" {
		cfg.Storage.Valkey.Address = v
	}
	if v := os.Getenv("COUNTERPLAY_VALKEY_PASSWORD"); v != "" {
		cfg.Storage.Valkey.Password = v
	}
	if v := os.Getenv("COUNTERPLAY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks for configuration values that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Server.Issuer == "" {
		return fmt.Errorf("server.issuer is required")
	}
	if strings.HasSuffix(c.Server.Issuer, "/") {
		return fmt.Errorf("server.issuer must not end with a slash")
	}

	switch c.Storage.Backend {
	case "memory", "valkey":
	default:
		return fmt.Errorf("storage.backend %q is not supported (use memory or valkey)", c.Storage.Backend)
	}
	if c.Storage.Backend == "valkey" && c.Storage.Valkey.Address == "" {
		return fmt.Errorf("storage.valkey.address is required for the valkey backend")
	}

	for i, client := range c.OAuth.Clients {
		if client.ClientID == "" {
			return fmt.Errorf("oauth.clients[%d]: clientID is required", i)
		}
		if len(client.RedirectURIs) == 0 {
			return fmt.Errorf("oauth.clients[%d] (%s): redirectURIs is required", i, client.ClientID)
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	return nil
}

// ListenAddr returns the host:port the server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
