// Package noop provides a session resolver for deployments without
// sessions. Every token is rejected as invalid.
package noop

import (
	"context"

	"github.com/rhuss/appgate/pkg/auth"
	"github.com/rhuss/appgate/pkg/session"
)

// Resolver rejects every session token.
type Resolver struct{}

// Ensure Resolver implements auth.SessionResolver at compile time.
var _ auth.SessionResolver = Resolver{}

func (Resolver) AuthForSessionToken(_ context.Context, _ auth.SessionRequest) (*auth.Auth, error) {
	return nil, session.InvalidToken()
}
