package auth

import (
	"context"

	"github.com/rhuss/appgate/pkg/registry"
)

// Config is the per-request application configuration.
type Config struct {
	AppID    string
	App      *registry.App
	MountURL string
}

// RequestInfo is everything the auth stage hands to downstream handlers.
type RequestInfo struct {
	Config Config
	Info   Credentials
	Auth   *Auth
}

// requestInfoKey is a private type for the request info context key.
type requestInfoKey struct{}

// WithRequestInfo stores info in the context.
func WithRequestInfo(ctx context.Context, info *RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFromContext retrieves the request info.
// Returns nil if the auth stage did not run or rejected the request.
func RequestInfoFromContext(ctx context.Context) *RequestInfo {
	if v, ok := ctx.Value(requestInfoKey{}).(*RequestInfo); ok {
		return v
	}
	return nil
}

// FromContext returns the Auth attached to the request, or nil.
func FromContext(ctx context.Context) *Auth {
	if info := RequestInfoFromContext(ctx); info != nil {
		return info.Auth
	}
	return nil
}
