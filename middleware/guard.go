package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/jwt"
)

// Mode selects how the bearer credential is checked.
type Mode int

const (
	// ModeOpaque treats the bearer as a raw session token and resolves it
	// in Redis.
	ModeOpaque Mode = iota
	// ModeSignedOnly verifies a signed bearer without touching Redis.
	ModeSignedOnly
	// ModeStrict verifies a signed bearer and then requires the embedded
	// session token to still belong to the same user in Redis.
	ModeStrict
)

// SessionStore is the subset of [goSession.Manager] the guards need.
type SessionStore interface {
	GetUserIDByToken(ctx context.Context, token string) (string, bool, error)
	UpdateLastActivity(ctx context.Context, userID string) (bool, error)
}

// TokenVerifier parses signed bearer tokens. [jwt.Manager] implements it.
type TokenVerifier interface {
	Parse(token string) (*jwt.SessionClaims, error)
}

// Principal is the authenticated caller placed in the request context.
type Principal struct {
	UserID       string
	SessionToken string
	Claims       *jwt.SessionClaims
}

type principalContextKey struct{}

// PrincipalFromContext returns the caller injected by a guard.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	return p, ok
}

// UserIDFromContext is a shortcut for PrincipalFromContext(ctx).UserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return "", false
	}
	return p.UserID, true
}

// Option customises a guard.
type Option func(*guard)

// WithVerifier sets the verifier used by ModeSignedOnly and ModeStrict.
func WithVerifier(v TokenVerifier) Option {
	return func(g *guard) { g.verifier = v }
}

// WithActivityRefresh makes the guard call UpdateLastActivity after a
// successful Redis lookup, sliding the session window on every request.
// It has no effect in ModeSignedOnly.
func WithActivityRefresh() Option {
	return func(g *guard) { g.refresh = true }
}

type guard struct {
	store    SessionStore
	mode     Mode
	verifier TokenVerifier
	refresh  bool
}

// Guard returns middleware that rejects requests without a valid bearer
// credential with 401 and answers 503 when Redis is unreachable.
func Guard(store SessionStore, mode Mode, opts ...Option) func(http.Handler) http.Handler {
	g := &guard{store: store, mode: mode}
	for _, opt := range opts {
		opt(g)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := goSession.WithClientIP(r.Context(), clientIP(r))
			ctx = goSession.WithUserAgent(ctx, r.UserAgent())

			principal, status := g.authenticate(ctx, token)
			if principal == nil {
				http.Error(w, http.StatusText(status), status)
				return
			}

			ctx = context.WithValue(ctx, principalContextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (g *guard) authenticate(ctx context.Context, token string) (*Principal, int) {
	switch g.mode {
	case ModeOpaque:
		return g.resolve(ctx, &Principal{SessionToken: token})

	case ModeSignedOnly, ModeStrict:
		if g.verifier == nil {
			return nil, http.StatusUnauthorized
		}
		claims, err := g.verifier.Parse(token)
		if err != nil {
			return nil, http.StatusUnauthorized
		}
		p := &Principal{UserID: claims.UID, SessionToken: claims.SID, Claims: claims}
		if g.mode == ModeSignedOnly {
			return p, http.StatusOK
		}
		return g.resolve(ctx, p)

	default:
		return nil, http.StatusUnauthorized
	}
}

func (g *guard) resolve(ctx context.Context, p *Principal) (*Principal, int) {
	if g.store == nil {
		return nil, http.StatusUnauthorized
	}

	owner, ok, err := g.store.GetUserIDByToken(ctx, p.SessionToken)
	if err != nil {
		return nil, statusFor(err)
	}
	if !ok {
		return nil, http.StatusUnauthorized
	}
	if p.UserID != "" && p.UserID != owner {
		return nil, http.StatusUnauthorized
	}
	p.UserID = owner

	if g.refresh {
		ok, err := g.store.UpdateLastActivity(ctx, owner)
		if err != nil {
			return nil, statusFor(err)
		}
		if !ok {
			return nil, http.StatusUnauthorized
		}
	}

	return p, http.StatusOK
}

func statusFor(err error) int {
	if errors.Is(err, goSession.ErrBackendUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusUnauthorized
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
