package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/rhuss/appgate/pkg/api"
	"github.com/rhuss/appgate/pkg/debug"
)

// Body is a parsed request body. Exactly one of Object and Raw is set for a
// non-empty body: Object for JSON and form bodies, Raw for file uploads and
// payloads that are not a JSON object.
type Body struct {
	Object map[string]any
	Raw    []byte
}

// Empty reports whether the request carried no body.
func (b Body) Empty() bool {
	return b.Object == nil && b.Raw == nil
}

// IsRaw reports whether the body is an unparsed byte payload.
func (b Body) IsRaw() bool {
	return b.Object == nil && b.Raw != nil
}

// String returns the string value stored under key, or "" when the key is
// missing or not a string.
func (b Body) String(key string) string {
	if b.Object == nil {
		return ""
	}
	s, _ := b.Object[key].(string)
	return s
}

// Has reports whether the object body contains key.
func (b Body) Has(key string) bool {
	if b.Object == nil {
		return false
	}
	_, ok := b.Object[key]
	return ok
}

// Without returns a copy of the body with the given keys removed. Raw
// bodies are returned unchanged.
func (b Body) Without(keys ...string) Body {
	if b.Object == nil {
		return b
	}
	obj := maps.Clone(b.Object)
	for _, k := range keys {
		delete(obj, k)
	}
	return Body{Object: obj}
}

// Bytes returns the wire form of the body: the raw payload, or the object
// re-encoded as JSON.
func (b Body) Bytes() ([]byte, error) {
	switch {
	case b.Object != nil:
		return json.Marshal(b.Object)
	case b.Raw != nil:
		return b.Raw, nil
	default:
		return nil, nil
	}
}

// bodyKey is a private type for the body context key.
type bodyKey struct{}

// WithBody stores the parsed body in the context.
func WithBody(ctx context.Context, b Body) context.Context {
	return context.WithValue(ctx, bodyKey{}, b)
}

// BodyFromContext returns the parsed body, or an empty Body when none was
// parsed.
func BodyFromContext(ctx context.Context) Body {
	b, _ := ctx.Value(bodyKey{}).(Body)
	return b
}

// ReplaceBody returns a shallow copy of r whose context and io body both
// carry b. An object body is re-encoded as JSON and the copy's
// Content-Type says so.
func ReplaceBody(r *http.Request, b Body) (*http.Request, error) {
	data, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding body: %w", err)
	}
	r2 := r.WithContext(WithBody(r.Context(), b))
	if b.Object != nil {
		r2.Header = r.Header.Clone()
		r2.Header.Set("Content-Type", "application/json")
	}
	r2.Body = io.NopCloser(bytes.NewReader(data))
	r2.ContentLength = int64(len(data))
	return r2, nil
}

// BodyOptions configures ParseBody.
type BodyOptions struct {
	// MaxBytes limits the request body size. Zero means 20 MB.
	MaxBytes int64

	// RawPrefixes lists path prefixes whose bodies are kept as raw bytes
	// (file uploads).
	RawPrefixes []string
}

// ParseBody returns middleware that reads the request body once and stores
// the parsed form in the context. JSON objects and URL-encoded forms become
// Body.Object; everything else, and any body under a raw prefix, becomes
// Body.Raw. The io body is restored so downstream handlers can still read it.
func ParseBody(opts BodyOptions) Middleware {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 20 << 20
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, opts.MaxBytes))
			if err != nil {
				var maxBytesErr *http.MaxBytesError
				if errors.As(err, &maxBytesErr) {
					RenderError(w, r, api.Status(http.StatusRequestEntityTooLarge,
						fmt.Sprintf("request body too large (max %d bytes)", opts.MaxBytes)))
					return
				}
				RenderError(w, r, api.Status(http.StatusBadRequest, "could not read request body"))
				return
			}
			if len(data) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			body := decodeBody(r, data, opts.RawPrefixes)
			if debug.TraceIsEnabled("transport") {
				traceBody(r, body)
			}
			r2 := r.WithContext(WithBody(r.Context(), body))
			r2.Body = io.NopCloser(bytes.NewReader(data))
			next.ServeHTTP(w, r2)
		})
	}
}

// traceBody logs the shape of a body. Field values may hold keys and are
// never logged.
func traceBody(r *http.Request, body Body) {
	if body.IsRaw() {
		debug.Trace("transport", "raw request body", "path", r.URL.Path, "size", len(body.Raw))
		return
	}
	fields := slices.Sorted(maps.Keys(body.Object))
	debug.Trace("transport", "request body", "path", r.URL.Path, "fields", fields)
}

func decodeBody(r *http.Request, data []byte, rawPrefixes []string) Body {
	for _, p := range rawPrefixes {
		if strings.HasPrefix(r.URL.Path, p) {
			return Body{Raw: data}
		}
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(data))
		if err == nil {
			obj := make(map[string]any, len(values))
			for k, v := range values {
				if len(v) > 0 {
					obj[k] = v[0]
				}
			}
			return Body{Object: obj}
		}
	}

	// SDKs that cannot set headers post JSON as text/plain, so JSON is
	// attempted regardless of the declared content type.
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err == nil && obj != nil {
		return Body{Object: obj}
	}
	return Body{Raw: data}
}
