// Package transport provides the net/http middleware chain that surrounds
// the appgate auth pipeline.
//
// # Middleware
//
// Every stage is a [Middleware] (func(http.Handler) http.Handler) composed
// with [Chain]. Built-in stages cover panic recovery, request ID assignment
// (X-Request-ID), structured logging via log/slog, CORS headers, request body
// parsing, and POST method override through the _method body field.
//
// # Request bodies
//
// [ParseBody] decodes the request body once and stores it in the request
// context as a [Body]: either a JSON or form object, or raw bytes for file
// uploads. Later stages never mutate a Body in place; they derive a new one
// and store it in a new context.
//
// # Errors
//
// All errors that escape a stage or handler funnel through [RenderError],
// which maps the closed api.Error type to an HTTP status and JSON envelope.
// Handlers written as [HandlerFunc] return errors instead of writing them.
package transport
