package transport

import (
	"context"
	"net/http"
	"strings"
)

// MethodOverrideField is the body field that carries the overriding method.
const MethodOverrideField = "_method"

type originalMethodKey struct{}

// OriginalMethodFromContext returns the method the client actually sent
// when a method override was applied, or "".
func OriginalMethodFromContext(ctx context.Context) string {
	m, _ := ctx.Value(originalMethodKey{}).(string)
	return m
}

// MethodOverride returns middleware that lets clients which can only POST
// tunnel another method through the _method body field. The field is
// consumed: downstream stages see a body without it.
func MethodOverride() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			body := BodyFromContext(r.Context())
			method := strings.ToUpper(strings.TrimSpace(body.String(MethodOverrideField)))
			if method == "" {
				next.ServeHTTP(w, r)
				return
			}

			r2, err := ReplaceBody(r, body.Without(MethodOverrideField))
			if err != nil {
				RenderError(w, r, err)
				return
			}
			r2 = r2.WithContext(context.WithValue(r2.Context(), originalMethodKey{}, r.Method))
			r2.Method = method
			next.ServeHTTP(w, r2)
		})
	}
}
