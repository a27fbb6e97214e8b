package transport

import "net/http"

// HandlerFunc is an HTTP handler that reports failures by returning them.
// Returned errors are rendered by RenderError, so every handler shares one
// error rendering path with the middleware stages.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ServeHTTP implements http.Handler.
func (f HandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := f(w, r); err != nil {
		RenderError(w, r, err)
	}
}
