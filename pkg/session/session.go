// Package session exchanges session tokens for authorization contexts.
//
// A Resolver looks tokens up in a Store (memory, PostgreSQL or Redis, see
// pkg/storage) and turns the stored Record into a user session auth.
// Subpackages provide resolvers that need no store: jwt verifies signed
// tokens, noop rejects every token.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rhuss/appgate/pkg/api"
	"github.com/rhuss/appgate/pkg/auth"
	"github.com/rhuss/appgate/pkg/debug"
	"github.com/rhuss/appgate/pkg/storage"
)

// Record is a stored session.
type Record struct {
	Token          string    `json:"token" yaml:"token"`
	AppID          string    `json:"app_id" yaml:"app_id"`
	UserID         string    `json:"user_id" yaml:"user_id"`
	Username       string    `json:"username,omitempty" yaml:"username"`
	InstallationID string    `json:"installation_id,omitempty" yaml:"installation_id"`
	ExpiresAt      time.Time `json:"expires_at,omitzero" yaml:"expires_at"`
}

// Expired reports whether the session is past its expiry. A zero ExpiresAt
// never expires.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Validate checks that the record can be stored.
func (r *Record) Validate() error {
	switch {
	case r.Token == "":
		return errors.New("session token is required")
	case r.AppID == "":
		return errors.New("session app_id is required")
	case r.UserID == "":
		return errors.New("session user_id is required")
	}
	return nil
}

// Store persists sessions by token.
type Store interface {
	// Lookup returns the session for token, or storage.ErrNotFound.
	Lookup(ctx context.Context, token string) (*Record, error)

	// Save creates or replaces a session.
	Save(ctx context.Context, rec Record) error

	// Delete removes a session. Returns storage.ErrNotFound if absent.
	Delete(ctx context.Context, token string) error
}

// InvalidToken is the error for unknown, expired or foreign session tokens.
func InvalidToken() *api.Error {
	return api.Domain(api.CodeInvalidSessionToken, "invalid session token")
}

// Resolver implements auth.SessionResolver on top of a Store.
type Resolver struct {
	store Store
	now   func() time.Time
}

// Ensure Resolver implements auth.SessionResolver at compile time.
var _ auth.SessionResolver = (*Resolver)(nil)

// NewResolver creates a resolver backed by store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, now: time.Now}
}

// AuthForSessionToken implements auth.SessionResolver. Missing, expired and
// foreign tokens yield InvalidToken; store failures are returned
// unclassified.
func (r *Resolver) AuthForSessionToken(ctx context.Context, req auth.SessionRequest) (*auth.Auth, error) {
	rec, err := r.store.Lookup(ctx, req.SessionToken)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, InvalidToken()
	}
	if err != nil {
		return nil, fmt.Errorf("looking up session: %w", err)
	}

	if rec.AppID != req.Config.AppID || rec.Expired(r.now()) {
		debug.Log("sessions", "session rejected", "app_id", req.Config.AppID, "session_app_id", rec.AppID, "expires_at", rec.ExpiresAt)
		return nil, InvalidToken()
	}
	// A session bound to a device is only valid from that device.
	if rec.InstallationID != "" && req.InstallationID != "" && rec.InstallationID != req.InstallationID {
		debug.Log("sessions", "session bound to another installation", "app_id", req.Config.AppID)
		return nil, InvalidToken()
	}

	installationID := req.InstallationID
	if installationID == "" {
		installationID = rec.InstallationID
	}
	return auth.NewUserSession(rec.AppID, installationID, rec.Token, auth.User{
		ID:       rec.UserID,
		Username: rec.Username,
	}), nil
}

// Revoke deletes the session behind the request's token.
func (r *Resolver) Revoke(ctx context.Context, token string) error {
	if err := r.store.Delete(ctx, token); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return InvalidToken()
		}
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
