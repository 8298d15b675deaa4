// Package goSession manages one Redis-backed session per user: creation,
// token lookup, sliding activity refresh, teardown, and inspection of the
// underlying keyspace.
//
// The package is designed for concurrent server workloads: Manager methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Manager], [Builder],
// [Config] and value types ([SessionInfo], [MetricsSnapshot]). Key layout
// and the atomic create/touch/delete scripts live in the session package;
// type-directed decoding and export live in keyspace.
//
// # What this package must NOT do
//
//   - Identify users. Callers pass an already authenticated user id.
//   - Keep process-wide state. Loggers, message catalogues and clients are
//     injected through the Builder.
//   - Import any sub-package that re-imports goSession (no import cycles).
//
// # Performance contract
//
// GetUserIDByToken is the hot path: one Redis GET. CreateSession,
// UpdateLastActivity and DeleteSession are one script evaluation each, plus
// one GET when token write verification is enabled on create.
package goSession
