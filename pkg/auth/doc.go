// Package auth resolves, for every inbound request, which application the
// caller addresses and which privilege level it holds.
//
// The pipeline has three stages. Extract merges credentials from headers,
// Basic auth and body override fields in a fixed precedence order. Resolve
// compares them against the registered app and votes Yes (master or
// unauthenticated client), No (every configured client key mismatches) or
// Abstain (a session token must be exchanged). On Abstain the middleware
// hands the token to a SessionResolver and blocks until it answers.
//
// Exactly one Auth is attached to the request context when, and only when,
// the next handler runs.
package auth
