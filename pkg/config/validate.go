package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}
	if c.Server.MountPath != "" && !strings.HasPrefix(c.Server.MountPath, "/") {
		errs = append(errs, fmt.Errorf("server.mount_path must start with \"/\", got %q", c.Server.MountPath))
	}
	if c.Server.MaxBodySize < 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be >= 0, got %d", c.Server.MaxBodySize))
	}

	needsPostgres := false

	switch c.Registry.Type {
	case "memory":
		if len(c.Registry.Apps) == 0 {
			errs = append(errs, errors.New("registry.apps must list at least one app when registry.type is \"memory\""))
		}
	case "file":
		if c.Registry.File == "" {
			errs = append(errs, errors.New("registry.file is required when registry.type is \"file\""))
		}
	case "postgres":
		needsPostgres = true
	default:
		errs = append(errs, fmt.Errorf("registry.type must be \"memory\", \"file\" or \"postgres\", got %q", c.Registry.Type))
	}

	seen := make(map[string]bool, len(c.Registry.Apps))
	for i, app := range c.Registry.Apps {
		if err := app.App().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("registry.apps[%d]: %w", i, err))
		}
		if seen[app.AppID] {
			errs = append(errs, fmt.Errorf("registry.apps[%d]: duplicate app_id %q", i, app.AppID))
		}
		seen[app.AppID] = true
	}

	switch c.Sessions.Type {
	case "none", "memory":
	case "postgres":
		needsPostgres = true
	case "redis":
		if c.Sessions.Redis.Addr == "" {
			errs = append(errs, errors.New("sessions.redis.addr is required when sessions.type is \"redis\""))
		}
	case "jwt":
		if c.Sessions.JWT.JWKSURL == "" {
			errs = append(errs, errors.New("sessions.jwt.jwks_url is required when sessions.type is \"jwt\""))
		}
	default:
		errs = append(errs, fmt.Errorf("sessions.type must be \"none\", \"memory\", \"postgres\", \"redis\" or \"jwt\", got %q", c.Sessions.Type))
	}

	if len(c.Sessions.Seed) > 0 {
		switch c.Sessions.Type {
		case "memory", "postgres", "redis":
		default:
			errs = append(errs, fmt.Errorf("sessions.seed is not supported for sessions.type %q", c.Sessions.Type))
		}
	}
	for i, s := range c.Sessions.Seed {
		if s.Token == "" || s.AppID == "" || s.UserID == "" {
			errs = append(errs, fmt.Errorf("sessions.seed[%d]: token, app_id and user_id are required", i))
		}
	}

	if needsPostgres && c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
		errs = append(errs, errors.New("storage.postgres.dsn or storage.postgres.dsn_file is required for postgres registry or sessions"))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of trace, debug, info, warn, error, got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"json\" or \"text\", got %q", c.Logging.Format))
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
	}

	return errors.Join(errs...)
}
