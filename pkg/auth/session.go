package auth

import "context"

// SessionRequest is the input of a session token exchange.
type SessionRequest struct {
	Config         Config
	InstallationID string
	SessionToken   string
}

// SessionResolver exchanges a session token for an Auth.
//
// Implementations return a classified *api.Error for expected failures
// (an unknown or expired token). Any other error is treated as an
// unexpected failure, logged, and rendered as a generic 500. A nil Auth
// with a nil error is rejected as unauthorized.
type SessionResolver interface {
	AuthForSessionToken(ctx context.Context, req SessionRequest) (*Auth, error)
}

// SessionResolverFunc adapts a plain function to SessionResolver.
type SessionResolverFunc func(ctx context.Context, req SessionRequest) (*Auth, error)

// AuthForSessionToken implements SessionResolver.
func (f SessionResolverFunc) AuthForSessionToken(ctx context.Context, req SessionRequest) (*Auth, error) {
	return f(ctx, req)
}
