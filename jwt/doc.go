// Package jwt signs and verifies bearer tokens that carry a user id and its
// opaque session token. Verification never touches Redis; callers resolve
// the embedded session token against the store when they need liveness.
package jwt
