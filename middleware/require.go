package middleware

import "net/http"

// RequireSession resolves a raw session token in Redis on every request.
func RequireSession(store SessionStore) func(http.Handler) http.Handler {
	return Guard(store, ModeOpaque)
}

// RequireActiveSession is RequireSession plus a sliding refresh of the
// session window.
func RequireActiveSession(store SessionStore) func(http.Handler) http.Handler {
	return Guard(store, ModeOpaque, WithActivityRefresh())
}

// RequireSignedToken checks only the bearer signature and expiry, skipping
// Redis entirely. A deleted session stays usable until the bearer expires.
func RequireSignedToken(verifier TokenVerifier) func(http.Handler) http.Handler {
	return Guard(nil, ModeSignedOnly, WithVerifier(verifier))
}

// RequireStrict verifies the signed bearer and confirms the session it
// names is still live.
func RequireStrict(store SessionStore, verifier TokenVerifier) func(http.Handler) http.Handler {
	return Guard(store, ModeStrict, WithVerifier(verifier))
}
