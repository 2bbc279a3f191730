package app

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/florianilch/ledgerly/internal/tokenstore"
)

func TestDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}

	if cfg.API.BaseURL != DefaultConfigAPIBaseURL {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 30*time.Second || cfg.API.MaxRetries != 0 {
		t.Errorf("API = %+v", cfg.API)
	}
	if cfg.API.LoginPath != "/login/" || cfg.API.RefreshPath != "/token/refresh/" || cfg.API.SignupPath != "/signup/" {
		t.Errorf("API paths = %+v", cfg.API)
	}
	if cfg.Session.Storage != SessionStorageTypeFile || !strings.HasSuffix(cfg.Session.File, filepath.Join("ledgerly", "session.json")) {
		t.Errorf("Session = %+v", cfg.Session)
	}
	if cfg.Session.SingleFlightRefresh {
		t.Error("single flight refresh enabled by default")
	}
	if cfg.Server.MaxBodyBytes != 10<<20 {
		t.Errorf("Server.MaxBodyBytes = %d, want 10 MiB", cfg.Server.MaxBodyBytes)
	}
	if got := cfg.Address(); got != "127.0.0.1:4100" {
		t.Errorf("Address() = %q", got)
	}
}

func TestApplyDefaultsEnvStorage(t *testing.T) {
	cfg := &Config{Session: SessionConfig{Storage: SessionStorageTypeEnv}}
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatal(err)
	}
	if cfg.Session.EnvAccessKey != DefaultConfigEnvAccessKey || cfg.Session.EnvRefreshKey != DefaultConfigEnvRefreshKey {
		t.Errorf("env keys = %q / %q", cfg.Session.EnvAccessKey, cfg.Session.EnvRefreshKey)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{Session: SessionConfig{Storage: SessionStorageTypeMemory}}
		if err := cfg.ApplyDefaults(); err != nil {
			t.Fatal(err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "ipv6 host", mutate: func(c *Config) { c.Server.Host = "::1" }},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: true},
		{name: "bad exporter", mutate: func(c *Config) { c.LogExporter = "syslog" }, wantErr: true},
		{name: "bad base url", mutate: func(c *Config) { c.API.BaseURL = "not a url" }, wantErr: true},
		{name: "negative retries", mutate: func(c *Config) { c.API.MaxRetries = -1 }, wantErr: true},
		{name: "negative body limit", mutate: func(c *Config) { c.Server.MaxBodyBytes = -1 }, wantErr: true},
		{name: "too many retries", mutate: func(c *Config) { c.API.MaxRetries = 11 }, wantErr: true},
		{name: "relative refresh path", mutate: func(c *Config) { c.API.RefreshPath = "token/refresh/" }, wantErr: true},
		{name: "unknown storage", mutate: func(c *Config) { c.Session.Storage = "s3" }, wantErr: true},
		{name: "file without path", mutate: func(c *Config) {
			c.Session.Storage = SessionStorageTypeFile
			c.Session.File = ""
		}, wantErr: true},
		{name: "keyring without user", mutate: func(c *Config) { c.Session.Storage = SessionStorageTypeKeyring }, wantErr: true},
		{name: "env keys equal", mutate: func(c *Config) {
			c.Session.Storage = SessionStorageTypeEnv
			c.Session.EnvAccessKey = "TOKENS"
			c.Session.EnvRefreshKey = "TOKENS"
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewTokenStore(t *testing.T) {
	tests := []struct {
		name string
		cfg  SessionConfig
		want tokenstore.Store
	}{
		{name: "file", cfg: SessionConfig{Storage: SessionStorageTypeFile, File: filepath.Join(t.TempDir(), "session.json")}, want: &tokenstore.FileStore{}},
		{name: "keyring", cfg: SessionConfig{Storage: SessionStorageTypeKeyring, KeyringUser: "ana"}, want: &tokenstore.KeyringStore{}},
		{name: "env", cfg: SessionConfig{Storage: SessionStorageTypeEnv, EnvAccessKey: "A", EnvRefreshKey: "R"}, want: &tokenstore.EnvStore{}},
		{name: "memory", cfg: SessionConfig{Storage: SessionStorageTypeMemory}, want: &tokenstore.MemoryStore{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := tt.cfg.NewTokenStore()
			if err != nil {
				t.Fatalf("NewTokenStore() error = %v", err)
			}
			if got, want := fmt.Sprintf("%T", store), fmt.Sprintf("%T", tt.want); got != want {
				t.Errorf("store type = %s, want %s", got, want)
			}
		})
	}

	if _, err := (&SessionConfig{Storage: "s3"}).NewTokenStore(); err == nil {
		t.Error("expected error for unknown storage")
	}
}
