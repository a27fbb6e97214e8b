// Package api defines the error model shared by every appgate pipeline stage.
//
// Errors that reach the HTTP boundary are expressed as a single closed type,
// [Error], tagged with a [Kind]:
//   - [KindUnauthorized]: no identifiable application or rejected credentials (403)
//   - [KindDomain]: a classified failure carrying a stable numeric [Code]
//   - [KindStatus]: an explicit HTTP status and message, passed through as-is
//   - [KindUnknown]: an unclassified failure wrapped with its original cause
//
// Rendering lives in pkg/transport; this package performs no I/O.
package api
