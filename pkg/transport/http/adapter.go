package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/appgate/pkg/api"
	"github.com/rhuss/appgate/pkg/auth"
	"github.com/rhuss/appgate/pkg/observability"
	"github.com/rhuss/appgate/pkg/registry"
	"github.com/rhuss/appgate/pkg/transport"
)

// Revoker deletes sessions. Session backends that keep server-side state
// implement it; stateless ones (signed tokens) do not.
type Revoker interface {
	Revoke(ctx context.Context, token string) error
}

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	// MountPath is the prefix the API is served under (default "/parse").
	MountPath string

	// MaxBodySize limits request bodies (default 20 MiB).
	MaxBodySize int64

	// CORS enables cross-origin headers when non-nil.
	CORS *transport.CORSOptions

	// MetricsPath serves Prometheus metrics when non-empty.
	MetricsPath string

	// Version is reported by GET <mount>/serverInfo.
	Version string

	// Readiness probes run by GET /readyz.
	Readiness []Check

	Logger *slog.Logger
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MountPath:   "/parse",
		MaxBodySize: 20 << 20,
		CORS:        &transport.CORSOptions{},
		MetricsPath: "/metrics",
		Version:     "dev",
		Logger:      slog.Default(),
	}
}

// Adapter serves the authenticated API over HTTP. Requests under the mount
// path run through the body, method override and auth stages before they
// reach a route; health and metrics endpoints sit outside the mount.
type Adapter struct {
	registry registry.Registry
	sessions auth.SessionResolver
	revoker  Revoker // nil if sessions cannot be revoked
	config   Config
	api      *http.ServeMux
	root     *http.ServeMux
	handler  http.Handler
}

// NewAdapter builds the handler tree. sessions may be nil, in which case
// every session token is rejected.
func NewAdapter(reg registry.Registry, sessions auth.SessionResolver, cfg Config) *Adapter {
	cfg.MountPath = strings.TrimSuffix(cfg.MountPath, "/")
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	a := &Adapter{
		registry: reg,
		sessions: sessions,
		config:   cfg,
		api:      http.NewServeMux(),
		root:     http.NewServeMux(),
	}
	if rv, ok := sessions.(Revoker); ok {
		a.revoker = rv
	}

	a.api.HandleFunc("GET /healthz", a.handleHealth)
	a.api.Handle("GET /users/me", transport.HandlerFunc(a.handleUsersMe))
	a.api.Handle("GET /sessions/me", transport.HandlerFunc(a.handleSessionsMe))
	a.api.Handle("POST /login", transport.HandlerFunc(a.handleLogin))
	a.api.Handle("POST /logout", transport.HandlerFunc(a.handleLogout))
	a.api.Handle("GET /config", auth.EnforceMasterKey(http.HandlerFunc(a.handleConfig)))
	a.api.Handle("GET /serverInfo", transport.HandlerFunc(a.handleServerInfo))
	a.api.Handle("POST /files/{name}", transport.HandlerFunc(a.handleCreateFile))
	a.api.Handle("/", transport.HandlerFunc(a.handleNotFound))

	a.root.HandleFunc("GET /healthz", a.handleHealth)
	a.root.HandleFunc("GET /readyz", a.handleReady)
	if cfg.MetricsPath != "" {
		a.root.Handle("GET "+cfg.MetricsPath, promhttp.Handler())
	}
	a.root.Handle(cfg.MountPath+"/", a.apiPipeline())

	a.handler = transport.Chain(
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(cfg.Logger),
		observability.MetricsMiddleware,
	)(a.root)

	return a
}

// apiPipeline wraps the API routes with the request stages in the order
// the auth stage expects: body first, then method override, then auth.
func (a *Adapter) apiPipeline() http.Handler {
	stages := []transport.Middleware{}
	if a.config.CORS != nil {
		stages = append(stages, transport.AllowCrossDomain(*a.config.CORS))
	}
	stages = append(stages,
		transport.ParseBody(transport.BodyOptions{
			MaxBytes:    a.config.MaxBodySize,
			RawPrefixes: []string{a.config.MountPath + "/files/"},
		}),
		transport.MethodOverride(),
		auth.Middleware(auth.Options{
			Registry:  a.registry,
			Sessions:  a.sessions,
			MountPath: a.config.MountPath,
			Bypass:    auth.DefaultBypassEndpoints,
		}),
	)

	var routes http.Handler = a.api
	if a.config.MountPath != "" {
		routes = http.StripPrefix(a.config.MountPath, a.api)
	}
	return transport.Chain(stages...)(routes)
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest.
func (a *Adapter) Handler() http.Handler {
	return a.handler
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Adapter) handleReady(w http.ResponseWriter, r *http.Request) {
	failed := map[string]string{}
	for _, c := range a.config.Readiness {
		if err := c.Fn(r.Context()); err != nil {
			slog.Warn("readiness check failed", "check", c.Name, "error", err.Error())
			failed[c.Name] = "unavailable"
		}
	}
	if len(failed) > 0 {
		transport.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failed})
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Adapter) handleNotFound(w http.ResponseWriter, r *http.Request) error {
	return api.Status(http.StatusNotFound, "unknown route "+r.Method+" "+r.URL.Path)
}
