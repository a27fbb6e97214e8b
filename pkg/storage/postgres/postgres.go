// Package postgres provides PostgreSQL-backed application and session
// storage. It uses pgx/v5 for connection pooling.
//
// A Store is both a registry.Loader (the apps table) and a session.Store
// (the sessions table).
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/appgate/pkg/debug"
	"github.com/rhuss/appgate/pkg/registry"
	"github.com/rhuss/appgate/pkg/session"
	"github.com/rhuss/appgate/pkg/storage"
)

// Store is a PostgreSQL-backed app and session store.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Ensure Store implements the loader and store interfaces at compile time.
var (
	_ registry.Loader = (*Store)(nil)
	_ session.Store   = (*Store)(nil)
)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool, now: time.Now}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// LoadApps returns every registered application.
func (s *Store) LoadApps(ctx context.Context) ([]registry.App, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT app_id, name, master_key, client_key, javascript_key, dotnet_key, rest_api_key
		FROM apps
		ORDER BY app_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying apps: %w", err)
	}
	defer rows.Close()

	var apps []registry.App
	for rows.Next() {
		var app registry.App
		var name, clientKey, jsKey, dotNetKey, restKey *string
		if err := rows.Scan(&app.ID, &name, &app.MasterKey, &clientKey, &jsKey, &dotNetKey, &restKey); err != nil {
			return nil, fmt.Errorf("scanning app: %w", err)
		}
		app.Name = deref(name)
		app.ClientKey = deref(clientKey)
		app.JavaScriptKey = deref(jsKey)
		app.DotNetKey = deref(dotNetKey)
		app.RESTAPIKey = deref(restKey)
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating apps: %w", err)
	}
	return apps, nil
}

// SaveApp inserts an application. Returns storage.ErrConflict if the id is
// already registered.
func (s *Store) SaveApp(ctx context.Context, app registry.App) error {
	if err := app.Validate(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO apps (
			app_id, name, master_key, client_key, javascript_key, dotnet_key, rest_api_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		app.ID, nullString(app.Name), app.MasterKey, nullString(app.ClientKey),
		nullString(app.JavaScriptKey), nullString(app.DotNetKey), nullString(app.RESTAPIKey),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting app: %w", err)
	}
	return nil
}

// Lookup returns the session for token. Expired sessions are reported as
// storage.ErrNotFound.
func (s *Store) Lookup(ctx context.Context, token string) (*session.Record, error) {
	var rec session.Record
	var username, installationID *string
	var expiresAt *time.Time

	err := s.pool.QueryRow(ctx, `
		SELECT token, app_id, user_id, username, installation_id, expires_at
		FROM sessions
		WHERE token = $1
	`, token).Scan(&rec.Token, &rec.AppID, &rec.UserID, &username, &installationID, &expiresAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	rec.Username = deref(username)
	rec.InstallationID = deref(installationID)
	if expiresAt != nil {
		rec.ExpiresAt = *expiresAt
	}
	if rec.Expired(s.now()) {
		return nil, storage.ErrNotFound
	}
	return &rec, nil
}

// Save creates or replaces a session. The session's app must exist.
func (s *Store) Save(ctx context.Context, rec session.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	var expiresAt *time.Time
	if !rec.ExpiresAt.IsZero() {
		expiresAt = &rec.ExpiresAt
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (token, app_id, user_id, username, installation_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (token) DO UPDATE SET
			app_id = EXCLUDED.app_id,
			user_id = EXCLUDED.user_id,
			username = EXCLUDED.username,
			installation_id = EXCLUDED.installation_id,
			expires_at = EXCLUDED.expires_at
	`,
		rec.Token, rec.AppID, rec.UserID,
		nullString(rec.Username), nullString(rec.InstallationID), expiresAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("saving session for app %q: %w", rec.AppID, storage.ErrNotFound)
		}
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}

// Delete removes a session.
func (s *Store) Delete(ctx context.Context, token string) error {
	result, err := s.pool.Exec(ctx, "DELETE FROM sessions WHERE token = $1", token)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteExpired removes sessions past their expiry and returns how many
// rows were deleted.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.pool.Exec(ctx,
		"DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= $1", s.now())
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	debug.Log("storage", "expired sessions deleted", "rows", result.RowsAffected())
	return result.RowsAffected(), nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// nullString converts an empty string to nil for nullable TEXT columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return pgErrorCode(err) == "23505"
}

// isForeignKeyViolation checks for SQLSTATE 23503.
func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == "23503"
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
