// Package config provides unified configuration for the appgate server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (APPGATE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"log/slog"
	"time"

	"github.com/rhuss/appgate/pkg/debug"
	"github.com/rhuss/appgate/pkg/registry"
)

// Config holds all configuration for the appgate server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Registry      RegistryConfig      `yaml:"registry"`
	Sessions      SessionsConfig      `yaml:"sessions"`
	Storage       StorageConfig       `yaml:"storage"`
	CORS          CORSConfig          `yaml:"cors"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 1337
	MountPath       string        `yaml:"mount_path"`       // default: "/parse"
	MaxBodySize     int64         `yaml:"max_body_size"`    // bytes, default: 20 MiB
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 60s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 15s
}

// RegistryConfig selects where registered applications come from.
type RegistryConfig struct {
	Type            string        `yaml:"type"` // "memory", "file" or "postgres", default: "memory"
	Apps            []AppConfig   `yaml:"apps"` // for type=memory
	File            string        `yaml:"file"` // for type=file
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// AppConfig describes a single registered application.
type AppConfig struct {
	AppID         string `yaml:"app_id" json:"app_id"`
	Name          string `yaml:"name" json:"name"`
	MasterKey     string `yaml:"master_key" json:"master_key"`
	MasterKeyFile string `yaml:"master_key_file" json:"master_key_file"` // _file variant for master_key
	ClientKey     string `yaml:"client_key" json:"client_key"`
	JavaScriptKey string `yaml:"javascript_key" json:"javascript_key"`
	DotNetKey     string `yaml:"dotnet_key" json:"dotnet_key"`
	RESTAPIKey    string `yaml:"rest_api_key" json:"rest_api_key"`
}

// App converts the entry into a registry app.
func (a AppConfig) App() registry.App {
	return registry.App{
		ID:            a.AppID,
		Name:          a.Name,
		MasterKey:     a.MasterKey,
		ClientKey:     a.ClientKey,
		JavaScriptKey: a.JavaScriptKey,
		DotNetKey:     a.DotNetKey,
		RESTAPIKey:    a.RESTAPIKey,
	}
}

// RegistryApps converts all configured apps.
func (r RegistryConfig) RegistryApps() []registry.App {
	apps := make([]registry.App, 0, len(r.Apps))
	for _, a := range r.Apps {
		apps = append(apps, a.App())
	}
	return apps
}

// SessionsConfig selects the session token backend.
type SessionsConfig struct {
	Type   string              `yaml:"type"` // "none", "memory", "postgres", "redis" or "jwt", default: "memory"
	Seed   []SessionSeedConfig `yaml:"seed"`
	Memory MemorySessionConfig `yaml:"memory"`
	Redis  RedisConfig         `yaml:"redis"`
	JWT    JWTConfig           `yaml:"jwt"`
}

// SessionSeedConfig is a session created at startup for stateful backends.
type SessionSeedConfig struct {
	Token          string        `yaml:"token"`
	AppID          string        `yaml:"app_id"`
	UserID         string        `yaml:"user_id"`
	Username       string        `yaml:"username"`
	InstallationID string        `yaml:"installation_id"`
	TTL            time.Duration `yaml:"ttl"` // 0 = never expires
}

// MemorySessionConfig holds in-memory session store settings.
type MemorySessionConfig struct {
	MaxSize       int           `yaml:"max_size"`       // default: 10000
	SweepInterval time.Duration `yaml:"sweep_interval"` // default: 1m
}

// RedisConfig holds Redis session store settings.
type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"` // _file variant for password
	DB           int    `yaml:"db"`
	KeyPrefix    string `yaml:"key_prefix"`
}

// JWTConfig holds settings for signed session tokens.
type JWTConfig struct {
	Issuer            string        `yaml:"issuer"`
	Audience          string        `yaml:"audience"`
	JWKSURL           string        `yaml:"jwks_url"`
	UserClaim         string        `yaml:"user_claim"`
	UsernameClaim     string        `yaml:"username_claim"`
	AppClaim          string        `yaml:"app_claim"`
	InstallationClaim string        `yaml:"installation_claim"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
}

// StorageConfig holds shared database settings.
type StorageConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	Enabled      bool     `yaml:"enabled"`      // default: true
	AllowOrigin  string   `yaml:"allow_origin"` // default: "*"
	AllowHeaders []string `yaml:"allow_headers"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "trace", "debug", "info", "warn" or "error", default: "info"
	Format string `yaml:"format"` // "json" or "text", default: "json"
	Debug  string `yaml:"debug"`  // comma-separated debug categories, e.g. "auth,sessions"
}

// SlogLevel returns the configured level. Unknown values map to info.
func (l LoggingConfig) SlogLevel() slog.Level {
	return debug.ParseLevel(l.Level)
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            1337,
			MountPath:       "/parse",
			MaxBodySize:     20 << 20,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Registry: RegistryConfig{
			Type: "memory",
		},
		Sessions: SessionsConfig{
			Type: "memory",
			Memory: MemorySessionConfig{
				MaxSize:       10000,
				SweepInterval: time.Minute,
			},
		},
		Storage: StorageConfig{
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
		},
		CORS: CORSConfig{
			Enabled:     true,
			AllowOrigin: "*",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
