package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rhuss/appgate/pkg/api"
	"github.com/rhuss/appgate/pkg/debug"
	"github.com/rhuss/appgate/pkg/observability"
	"github.com/rhuss/appgate/pkg/registry"
	"github.com/rhuss/appgate/pkg/transport"
)

// DefaultBypassEndpoints lists endpoints that skip the auth stage.
var DefaultBypassEndpoints = []string{"/healthz"}

// Options configures Middleware.
type Options struct {
	// Registry resolves application ids. Required.
	Registry registry.Registry

	// Sessions exchanges session tokens. If nil, every session token is
	// rejected as invalid.
	Sessions SessionResolver

	// MountPath is the path prefix the API is served under, e.g. "/parse".
	MountPath string

	// Bypass lists paths (relative to the mount) that skip authentication.
	Bypass []string

	// Tracer traces session lookups. Defaults to the global provider.
	Tracer trace.Tracer
}

// Middleware returns the auth stage. It must run after transport.ParseBody.
// On success the request continues with a *RequestInfo in its context; on
// failure the response is written and the next handler is not called.
func Middleware(opts Options) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(opts.Bypass))
	for _, ep := range opts.Bypass {
		bypass[ep] = true
	}
	mountPath := strings.TrimSuffix(opts.MountPath, "/")
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/rhuss/appgate/pkg/auth")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := relativePath(r.URL.Path, mountPath)
			if bypass[path] {
				next.ServeHTTP(w, r)
				return
			}

			ex, err := Extract(r.Header, transport.BodyFromContext(r.Context()), opts.Registry, path)
			if err != nil {
				if api.IsUnauthorized(err) {
					reject(w, r, ReasonUnknownApp)
					return
				}
				transport.RenderError(w, r, err)
				return
			}

			r, err = applyExtraction(r, ex)
			if err != nil {
				transport.RenderError(w, r, err)
				return
			}

			info := &RequestInfo{
				Config: Config{
					AppID:    ex.App.ID,
					App:      ex.App,
					MountURL: mountURL(r, mountPath),
				},
				Info: ex.Credentials,
			}

			if debug.Enabled("auth") {
				debug.Log("auth", "credentials extracted",
					"app_id", ex.App.ID,
					"path", path,
					"master_key", ex.Credentials.MasterKey != "",
					"session_token", Mask(ex.Credentials.SessionToken),
					"installation_id", ex.Credentials.InstallationID,
					"client_version", ex.Credentials.ClientVersion,
				)
			}

			res := Resolve(ex.Credentials, ex.App)
			debug.Log("auth", "identity resolved", "app_id", ex.App.ID, "decision", res.Decision.String(), "reason", res.Reason)
			switch res.Decision {
			case No:
				reject(w, r, res.Reason)
				return
			case Yes:
				proceed(w, r, next, info, res.Auth)
				return
			}

			a, err := lookupSession(r.Context(), tracer, opts.Sessions, SessionRequest{
				Config:         info.Config,
				InstallationID: ex.Credentials.InstallationID,
				SessionToken:   ex.Credentials.SessionToken,
			})
			if err != nil {
				transport.RenderError(w, r, err)
				return
			}
			if a == nil {
				reject(w, r, ReasonEmptySession)
				return
			}
			proceed(w, r, next, info, a)
		})
	}
}

// lookupSession runs the session exchange, the only blocking step of the
// stage. Unclassified failures are logged here, once, and wrapped as
// api.Unknown so the renderer does not log them again.
func lookupSession(ctx context.Context, tracer trace.Tracer, sessions SessionResolver, req SessionRequest) (*Auth, error) {
	if sessions == nil {
		observability.SessionLookupsTotal.WithLabelValues("domain_error").Inc()
		return nil, api.Domain(api.CodeInvalidSessionToken, "invalid session token")
	}

	ctx, span := tracer.Start(ctx, "auth.session_lookup",
		trace.WithAttributes(attribute.String("appgate.app_id", req.Config.AppID)))
	defer span.End()

	start := time.Now()
	a, err := sessions.AuthForSessionToken(ctx, req)
	observability.SessionLookupDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			observability.SessionLookupsTotal.WithLabelValues("domain_error").Inc()
			return nil, err
		}
		observability.SessionLookupsTotal.WithLabelValues("error").Inc()
		slog.Error("error getting auth for sessionToken",
			"app_id", req.Config.AppID,
			"session_token", Mask(req.SessionToken),
			"error", err,
		)
		return nil, api.Unknown(err)
	}

	if a == nil {
		observability.SessionLookupsTotal.WithLabelValues("empty").Inc()
		span.SetStatus(codes.Error, "empty session")
		return nil, nil
	}
	if verr := a.Valid(); verr != nil {
		observability.SessionLookupsTotal.WithLabelValues("empty").Inc()
		slog.Warn("session resolver returned incomplete auth", "app_id", req.Config.AppID, "error", verr)
		span.SetStatus(codes.Error, verr.Error())
		return nil, nil
	}

	observability.SessionLookupsTotal.WithLabelValues("ok").Inc()
	span.SetStatus(codes.Ok, "")
	return a, nil
}

func proceed(w http.ResponseWriter, r *http.Request, next http.Handler, info *RequestInfo, a *Auth) {
	info.Auth = a
	observability.AuthDecisionsTotal.WithLabelValues(a.Kind.String()).Inc()

	slog.Debug("request authorized",
		"app_id", info.Config.AppID,
		"kind", a.Kind.String(),
		"path", r.URL.Path,
	)

	next.ServeHTTP(w, r.WithContext(WithRequestInfo(r.Context(), info)))
}

func reject(w http.ResponseWriter, r *http.Request, reason string) {
	observability.AuthRejectionsTotal.WithLabelValues(reason).Inc()
	slog.Warn("request rejected",
		"reason", reason,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)
	transport.WriteUnauthorized(w, r)
}

// applyExtraction returns a request carrying the sanitized body and the
// overridden content type. r itself is left untouched.
func applyExtraction(r *http.Request, ex Extraction) (*http.Request, error) {
	if ex.BodyChanged {
		r2, err := transport.ReplaceBody(r, ex.Body)
		if err != nil {
			return r, err
		}
		r = r2
	}
	if ex.ContentType != "" {
		if !ex.BodyChanged {
			r = r.WithContext(r.Context())
		}
		r.Header = r.Header.Clone()
		r.Header.Set("Content-Type", ex.ContentType)
	}
	return r, nil
}

func relativePath(path, mountPath string) string {
	rel := strings.TrimPrefix(path, mountPath)
	if rel == "" {
		return "/"
	}
	return rel
}

func mountURL(r *http.Request, mountPath string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + mountPath
}
