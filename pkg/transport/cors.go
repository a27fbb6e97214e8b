package transport

import (
	"net/http"
	"strings"
)

// CORSOptions configures AllowCrossDomain. Zero values use the defaults.
type CORSOptions struct {
	AllowOrigin  string
	AllowMethods []string
	AllowHeaders []string
}

// DefaultCORSAllowHeaders lists the request headers SDKs send.
var DefaultCORSAllowHeaders = []string{
	"X-Parse-Master-Key",
	"X-Parse-REST-API-Key",
	"X-Parse-Javascript-Key",
	"X-Parse-Application-Id",
	"X-Parse-Client-Version",
	"X-Parse-Session-Token",
	"X-Requested-With",
	"X-Parse-Revocable-Session",
	"Content-Type",
}

// AllowCrossDomain returns middleware that sets permissive CORS headers on
// every response and answers OPTIONS preflight requests with 200.
func AllowCrossDomain(opts CORSOptions) Middleware {
	if opts.AllowOrigin == "" {
		opts.AllowOrigin = "*"
	}
	if len(opts.AllowMethods) == 0 {
		opts.AllowMethods = []string{"GET", "PUT", "POST", "DELETE", "OPTIONS"}
	}
	if len(opts.AllowHeaders) == 0 {
		opts.AllowHeaders = DefaultCORSAllowHeaders
	}
	methods := strings.Join(opts.AllowMethods, ",")
	headers := strings.Join(opts.AllowHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", opts.AllowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", methods)
			w.Header().Set("Access-Control-Allow-Headers", headers)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
