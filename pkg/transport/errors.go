package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rhuss/appgate/pkg/api"
)

// HTTPStatusFromError maps an api.Error to the corresponding HTTP status code.
func HTTPStatusFromError(err *api.Error) int {
	switch err.Kind {
	case api.KindUnauthorized:
		return http.StatusForbidden
	case api.KindStatus:
		if err.Status > 0 {
			return err.Status
		}
		return http.StatusInternalServerError
	case api.KindDomain:
		switch err.Code {
		case api.CodeInternalServerError:
			return http.StatusInternalServerError
		case api.CodeObjectNotFound:
			return http.StatusNotFound
		default:
			return http.StatusBadRequest
		}
	default:
		return http.StatusInternalServerError
	}
}

// errorBody builds the JSON envelope for an api.Error. Unknown errors never
// expose their cause.
func errorBody(err *api.Error) api.ErrorResponse {
	switch err.Kind {
	case api.KindUnauthorized, api.KindStatus:
		return api.ErrorResponse{Error: err.Message}
	case api.KindDomain:
		return api.ErrorResponse{Code: err.Code, Error: err.Message}
	default:
		return api.ErrorResponse{Code: api.CodeInternalServerError, Message: api.MessageInternalServerError}
	}
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// RenderError writes err to the client. Classified errors (api.Error) map
// through HTTPStatusFromError. Anything else is logged and rendered as a
// generic 500. KindUnknown errors are not logged again: the stage that
// wrapped them already logged the cause.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr, ok := api.As(err)
	if !ok {
		slog.Error("uncaught internal server error",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
		)
		apiErr = &api.Error{Kind: api.KindUnknown, Code: api.CodeInternalServerError, Message: api.MessageInternalServerError, Cause: err}
	}

	WriteJSON(w, HTTPStatusFromError(apiErr), errorBody(apiErr))
}

// WriteUnauthorized rejects the request with 403 {"error":"unauthorized"}.
func WriteUnauthorized(w http.ResponseWriter, r *http.Request) {
	RenderError(w, r, api.Unauthorized())
}
