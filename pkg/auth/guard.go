package auth

import (
	"context"
	"net/http"

	"github.com/rhuss/appgate/pkg/api"
	"github.com/rhuss/appgate/pkg/transport"
)

// EnforceMasterKey rejects requests without master privileges with 403
// {"error":"unauthorized: master key is required"}.
func EnforceMasterKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := RequireMaster(r.Context()); err != nil {
			transport.RenderError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireMaster returns api.MasterKeyRequired unless the request carries
// master privileges. Handlers that report failures by returning errors use
// it instead of EnforceMasterKey.
func RequireMaster(ctx context.Context) error {
	if !FromContext(ctx).IsMaster() {
		return api.MasterKeyRequired()
	}
	return nil
}
