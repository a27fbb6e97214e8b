package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "APPGATE_"

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, APPGATE_CONFIG env, ./config.yaml, /etc/appgate/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. APPGATE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/appgate/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv(EnvPrefix + "CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/appgate/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
// Unknown keys are rejected so typos surface at startup.
func loadYAMLFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnvOverrides maps APPGATE_* environment variables to config fields.
// Malformed numeric or JSON values are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	if v := env("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPORT: %w", EnvPrefix, err)
		}
		cfg.Server.Port = port
	}
	if v := env("MOUNT_PATH"); v != "" {
		cfg.Server.MountPath = v
	}
	if v := env("REGISTRY"); v != "" {
		cfg.Registry.Type = v
	}
	if v := env("REGISTRY_FILE"); v != "" {
		cfg.Registry.File = v
	}
	if v := env("SESSIONS"); v != "" {
		cfg.Sessions.Type = v
	}
	if v := env("REDIS_ADDR"); v != "" {
		cfg.Sessions.Redis.Addr = v
	}
	if v := env("JWKS_URL"); v != "" {
		cfg.Sessions.JWT.JWKSURL = v
	}
	if v := env("POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := env("DEBUG"); v != "" {
		cfg.Logging.Debug = v
	}

	// APPGATE_APPS: JSON array of app configs, replaces the file's list.
	if v := env("APPS"); v != "" {
		apps, err := parseAppsJSON(v)
		if err != nil {
			return err
		}
		cfg.Registry.Apps = apps
	}

	// APPGATE_APP_ID + APPGATE_MASTER_KEY: single-app shorthand.
	if id := env("APP_ID"); id != "" {
		app := AppConfig{
			AppID:         id,
			MasterKey:     env("MASTER_KEY"),
			MasterKeyFile: env("MASTER_KEY_FILE"),
			ClientKey:     env("CLIENT_KEY"),
			JavaScriptKey: env("JAVASCRIPT_KEY"),
			DotNetKey:     env("DOTNET_KEY"),
			RESTAPIKey:    env("REST_API_KEY"),
		}
		cfg.Registry.Apps = upsertApp(cfg.Registry.Apps, app)
	}

	return nil
}

// parseAppsJSON parses a JSON array of app configurations.
func parseAppsJSON(jsonStr string) ([]AppConfig, error) {
	var apps []AppConfig
	if err := json.Unmarshal([]byte(jsonStr), &apps); err != nil {
		return nil, fmt.Errorf("parsing %sAPPS JSON: %w", EnvPrefix, err)
	}
	return apps, nil
}

func upsertApp(apps []AppConfig, app AppConfig) []AppConfig {
	for i := range apps {
		if apps[i].AppID == app.AppID {
			apps[i] = app
			return apps
		}
	}
	return append(apps, app)
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// storage.postgres.dsn_file -> storage.postgres.dsn
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	// sessions.redis.password_file -> sessions.redis.password
	if cfg.Sessions.Redis.PasswordFile != "" && cfg.Sessions.Redis.Password == "" {
		val, err := readSecretFile(cfg.Sessions.Redis.PasswordFile)
		if err != nil {
			return fmt.Errorf("sessions.redis.password_file: %w", err)
		}
		cfg.Sessions.Redis.Password = val
	}

	// registry.apps[*].master_key_file -> registry.apps[*].master_key
	for i := range cfg.Registry.Apps {
		app := &cfg.Registry.Apps[i]
		if app.MasterKeyFile != "" && app.MasterKey == "" {
			val, err := readSecretFile(app.MasterKeyFile)
			if err != nil {
				return fmt.Errorf("registry.apps[%d].master_key_file: %w", i, err)
			}
			app.MasterKey = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
