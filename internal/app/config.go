package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/ledgerly/internal/observability"
	"github.com/florianilch/ledgerly/internal/proxy"
	"github.com/florianilch/ledgerly/internal/tokensource"
	"github.com/florianilch/ledgerly/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = observability.FormatText
	LogFormatJSON LogFormat = observability.FormatJSON
)

// SessionStorageType represents the backends the credential pair can live in.
type SessionStorageType string

const (
	SessionStorageTypeFile    SessionStorageType = "file"
	SessionStorageTypeKeyring SessionStorageType = "keyring"
	SessionStorageTypeEnv     SessionStorageType = "env"
	SessionStorageTypeMemory  SessionStorageType = "memory"
)

// keyringService is the keyring service name the credential pair is stored under.
const keyringService = "ledgerly"

// Default configuration values
const (
	DefaultConfigLogFormat        = LogFormatText
	DefaultConfigLogExporter      = observability.ExporterNone
	DefaultConfigServerHost       = "127.0.0.1"
	DefaultConfigServerPort       = 4100
	DefaultConfigShutdownTimeout  = 5 * time.Second
	DefaultConfigAPIBaseURL       = "http://127.0.0.1:8000/api"
	DefaultConfigAPITimeout       = 30 * time.Second
	DefaultConfigAPISignupPath    = "/signup/"
	DefaultConfigSessionStorage   = SessionStorageTypeFile
	DefaultConfigEnvAccessKey     = "LEDGERLY_ACCESS_TOKEN"
	DefaultConfigEnvRefreshKey    = "LEDGERLY_REFRESH_TOKEN"
	DefaultConfigSessionFileName  = "session.json"
	DefaultConfigSessionDirectory = "ledgerly"
)

// ServerConfig holds session gateway configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
	// MaxBodyBytes caps request bodies proxied to the finance API.
	MaxBodyBytes int64 `json:"max_body_bytes" validate:"gte=0"`
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// APIConfig describes the finance API.
type APIConfig struct {
	BaseURL string        `json:"base_url" validate:"required,url"`
	Timeout time.Duration `json:"timeout" validate:"gte=0"`
	// MaxRetries enables retries of transient failures. 0 disables them.
	MaxRetries  int    `json:"max_retries" validate:"gte=0,lte=10"`
	LoginPath   string `json:"login_path" validate:"required,startswith=/"`
	RefreshPath string `json:"refresh_path" validate:"required,startswith=/"`
	SignupPath  string `json:"signup_path" validate:"required,startswith=/"`
}

// SessionConfig describes where the credential pair is kept.
type SessionConfig struct {
	Storage SessionStorageType `json:"storage" validate:"required,oneof=file keyring env memory"`

	// Storage-specific settings (only the one matching Storage is used)
	File          string `json:"file,omitempty"`
	KeyringUser   string `json:"keyring_user,omitempty"`
	EnvAccessKey  string `json:"env_access_key,omitempty"`
	EnvRefreshKey string `json:"env_refresh_key,omitempty"`

	// SingleFlightRefresh collapses concurrent refreshes into one call.
	SingleFlightRefresh bool `json:"single_flight_refresh"`
}

// NewTokenStore creates the tokenstore.Store the configuration describes.
func (s *SessionConfig) NewTokenStore() (tokenstore.Store, error) {
	switch s.Storage {
	case SessionStorageTypeFile:
		return tokenstore.NewFileStore(s.File)
	case SessionStorageTypeKeyring:
		return tokenstore.NewKeyringStore(keyringService, s.KeyringUser)
	case SessionStorageTypeEnv:
		return tokenstore.NewEnvStore(s.EnvAccessKey, s.EnvRefreshKey)
	case SessionStorageTypeMemory:
		return tokenstore.NewMemoryStore(tokenstore.Credentials{}), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", s.Storage)
	}
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel    slog.Level     `json:"log_level"`
	LogFormat   LogFormat      `json:"log_format" validate:"oneof=text json"`
	LogExporter string         `json:"log_exporter" validate:"oneof=none stdout otlp-http otlp-grpc"`
	Server      ServerConfig   `json:"server"`
	Shutdown    ShutdownConfig `json:"shutdown"`
	API         APIConfig      `json:"api"`
	Session     SessionConfig  `json:"session"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.LogExporter == "" {
		c.LogExporter = DefaultConfigLogExporter
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = proxy.DefaultMaxBodyBytes
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultConfigAPIBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultConfigAPITimeout
	}
	if c.API.LoginPath == "" {
		c.API.LoginPath = tokensource.DefaultLoginPath
	}
	if c.API.RefreshPath == "" {
		c.API.RefreshPath = tokensource.DefaultRefreshPath
	}
	if c.API.SignupPath == "" {
		c.API.SignupPath = DefaultConfigAPISignupPath
	}
	if c.Session.Storage == "" {
		c.Session.Storage = DefaultConfigSessionStorage
	}

	// Dynamic defaults based on storage type
	switch c.Session.Storage {
	case SessionStorageTypeFile:
		if c.Session.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("session.file required (auto-detect failed: %w)", err)
			}
			c.Session.File = filepath.Join(configDir, DefaultConfigSessionDirectory, DefaultConfigSessionFileName)
		}
	case SessionStorageTypeKeyring:
		if c.Session.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("session.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Session.KeyringUser = currentUser.Username
		}
	case SessionStorageTypeEnv:
		if c.Session.EnvAccessKey == "" {
			c.Session.EnvAccessKey = DefaultConfigEnvAccessKey
		}
		if c.Session.EnvRefreshKey == "" {
			c.Session.EnvRefreshKey = DefaultConfigEnvRefreshKey
		}
	case SessionStorageTypeMemory:
		// nothing to configure
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Session.Storage {
	case SessionStorageTypeFile:
		if c.Session.File == "" {
			return errors.New("file path required for file storage")
		}
	case SessionStorageTypeKeyring:
		if c.Session.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	case SessionStorageTypeEnv:
		if c.Session.EnvAccessKey == "" {
			return errors.New("env_access_key required for env storage")
		}
		if c.Session.EnvAccessKey == c.Session.EnvRefreshKey {
			return errors.New("env_access_key and env_refresh_key must differ")
		}
	}

	return nil
}

// Address is the session gateway listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.FormatUint(uint64(c.Server.Port), 10))
}
