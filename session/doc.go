// Package session provides Redis-backed persistence for per-user sessions and
// the secondary token index that points back at them.
//
// # Key layout
//
// A live session is a hash under "<KeyPrefix>:<userID>" holding the fields
// session_token and login_time. The token index is a plain string key
// "<TokenPrefix>:<token>" whose value is the owning user id. Both keys carry
// the same TTL unless ShareTokenTTL is disabled.
//
// # Atomicity
//
// Create, Touch and Delete each run as a single Lua script, so the primary
// hash and the token key are written and removed together and concurrent
// Create calls for the same user produce exactly one token.
//
// # What this package must NOT do
//
//   - Import goSession, keyspace, or logging (no upward imports).
//   - Log. Callers decide what a missing session means.
package session
