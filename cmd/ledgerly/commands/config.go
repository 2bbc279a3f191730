package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/ledgerly/internal/app"
)

// envPrefix is stripped from environment variables during config loading (e.g., LEDGERLY_API__BASE_URL → api.base_url)
const envPrefix = "LEDGERLY_"

// defaultConfigFile is looked up in the user config directory when --config is not given.
const defaultConfigFile = "config.toml"

// cliOnlyFlags are root flags that are not part of app.Config.
var cliOnlyFlags = map[string]bool{
	"config": true,
	"c":      true,
	"output": true,
}

// credentialEnvVars hold tokens for the env session store. They share the
// prefix but are session data, not configuration.
var credentialEnvVars = map[string]bool{
	app.DefaultConfigEnvAccessKey:  true,
	app.DefaultConfigEnvRefreshKey: true,
}

// loadConfig loads the ledgerly configuration with precedence:
// config file → environment variables → CLI flags → defaults
//
// The config file is TOML with the same keys as app.Config, e.g.
//
//	log_level = "debug"
//
//	[api]
//	base_url = "https://finance.example.com/api"
//	max_retries = 2
//
//	[session]
//	storage = "keyring"
//
// Without configPath, $XDG_CONFIG_HOME/ledgerly/config.toml is used when it exists.
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	k := koanf.New(".")

	// 1. Load from config file
	if configPath == "" {
		configPath = defaultConfigPath()
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	}

	// 2. Load from environment variables
	envProvider := env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		TransformFunc: envKey,
		EnvironFunc:   environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	// 3. Load from CLI flags if provided
	if cmd != nil {
		flagValues := extractAndTransformFlags(cmd)
		if err := k.Load(confmap.Provider(flagValues, "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	config := &app.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// defaultConfigPath returns the per-user config file, or "" if there is none.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, app.DefaultConfigSessionDirectory, defaultConfigFile)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// envKey maps LEDGERLY_SESSION__KEYRING_USER to session.keyring_user.
// Token variables are dropped by returning an empty key.
func envKey(key, value string) (string, any) {
	if credentialEnvVars[key] {
		return "", nil
	}
	stripped := strings.TrimPrefix(key, envPrefix)
	return strings.ToLower(strings.ReplaceAll(stripped, "__", ".")), value
}

// extractAndTransformFlags transforms CLI flag names to match config structure.
// Includes parent flags. Examples: --api--base-url → api.base_url, --log-level → log_level
//
// Flags of individual commands (--password, --amount) are not config and are
// left out: a flag counts only if its name is nested (contains "--") or it is
// declared on the root command.
func extractAndTransformFlags(cmd *cli.Command) map[string]any {
	values := make(map[string]any)
	rootFlags := flagSet(cmd.Root())

	// FlagNames() includes flags from parent commands (via lineage)
	for _, name := range cmd.FlagNames() {
		if cliOnlyFlags[name] || (!strings.Contains(name, "--") && !rootFlags[name]) {
			continue
		}
		// Skip unset flags to preserve precedence from earlier config sources
		if !cmd.IsSet(name) {
			continue
		}

		if value := cmd.Value(name); value != nil {
			key := strings.ReplaceAll(name, "--", ".")
			key = strings.ReplaceAll(key, "-", "_")
			values[key] = value
		}
	}

	return values
}

func flagSet(cmd *cli.Command) map[string]bool {
	names := make(map[string]bool)
	for _, f := range cmd.Flags {
		for _, name := range f.Names() {
			names[name] = true
		}
	}
	return names
}
