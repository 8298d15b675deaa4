// Package middleware exposes net/http guards backed by the session store.
//
// # Guards
//
//   - [RequireSession]: bearer is the raw session token, resolved in Redis.
//   - [RequireActiveSession]: as above, then UpdateLastActivity.
//   - [RequireSignedToken]: signed bearer only, no Redis call.
//   - [RequireStrict]: signed bearer plus a Redis ownership check.
//
// Every guard attaches the client IP and User-Agent to the request context
// so the Manager's audit events carry them, and injects a [Principal].
// Missing or invalid credentials get 401; an unreachable Redis gets 503.
package middleware
