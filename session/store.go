package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every backend failure returned by [Store].
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrInvalidUserID is returned when an operation receives an empty user id.
var ErrInvalidUserID = errors.New("invalid user id")

// ErrInvalidToken is returned when a token lookup receives an empty token.
var ErrInvalidToken = errors.New("invalid session token")

const (
	DefaultKeyPrefix   = "session"
	DefaultTokenPrefix = "token"
	DefaultTTL         = 1800 * time.Second
)

const (
	scriptStatusAbsent  int64 = 0
	scriptStatusPresent int64 = 1
	scriptStatusCreated int64 = 2
)

// KEYS[1] session hash, KEYS[2] token key.
// ARGV: user id, ttl ms, share token ttl flag, then the encoded hash fields.
const createSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  local fields = redis.call("HMGET", KEYS[1], "session_token", "login_time")
  return {1, fields[1] or "", fields[2] or "", redis.call("PTTL", KEYS[1])}
end
redis.call("HSET", KEYS[1], unpack(ARGV, 4))
redis.call("PEXPIRE", KEYS[1], ARGV[2])
if ARGV[3] == "1" then
  redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[2])
else
  redis.call("SET", KEYS[2], ARGV[1])
end
local fields = redis.call("HMGET", KEYS[1], "session_token", "login_time")
return {2, fields[1] or "", fields[2] or "", tonumber(ARGV[2])}
`

var createSessionLua = redis.NewScript(createSessionScript)

// KEYS[1] session hash.
// ARGV: login_time, ttl ms, share token ttl flag, token key prefix.
const touchSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return {0}
end
redis.call("HSET", KEYS[1], "login_time", ARGV[1])
redis.call("PEXPIRE", KEYS[1], ARGV[2])
local token = redis.call("HGET", KEYS[1], "session_token")
if token and ARGV[3] == "1" then
  redis.call("PEXPIRE", ARGV[4] .. token, ARGV[2])
end
return {1, token or "", ARGV[1], tonumber(ARGV[2])}
`

var touchSessionLua = redis.NewScript(touchSessionScript)

// KEYS[1] session hash.
// ARGV: user id, token key prefix.
// The token key is only removed while it still points at the same user.
const deleteSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return {0}
end
local token = redis.call("HGET", KEYS[1], "session_token")
redis.call("DEL", KEYS[1])
if not token then
  return {1, ""}
end
local tokenKey = ARGV[2] .. token
if redis.call("GET", tokenKey) == ARGV[1] then
  redis.call("DEL", tokenKey)
end
return {1, token}
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Config controls key naming and expiry for a [Store].
type Config struct {
	KeyPrefix   string
	TokenPrefix string
	TTL         time.Duration

	// ShareTokenTTL applies the session TTL to the token key on create and
	// on every touch. When false the token key never expires on its own.
	ShareTokenTTL bool
}

// Store is a Redis-backed session store keyed by user id, with a secondary
// token -> user id index.
type Store struct {
	redis         redis.UniversalClient
	prefix        string
	tokenPrefix   string
	ttl           time.Duration
	shareTokenTTL bool
	now           func() time.Time
	newToken      func() (string, error)
}

// NewStore creates a session [Store] backed by the given Redis client.
// Empty prefixes and a non-positive TTL fall back to the package defaults.
func NewStore(client redis.UniversalClient, cfg Config) *Store {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.TokenPrefix == "" {
		cfg.TokenPrefix = DefaultTokenPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Store{
		redis:         client,
		prefix:        cfg.KeyPrefix,
		tokenPrefix:   cfg.TokenPrefix,
		ttl:           cfg.TTL,
		shareTokenTTL: cfg.ShareTokenTTL,
		now:           time.Now,
		newToken:      NewToken,
	}
}

// WithClock replaces the time source used for login_time. It is meant for
// tests and returns the store for chaining.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

// NewToken returns a random UUIDv4 rendered in its 36-character form.
func NewToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *Store) key(userID string) string {
	return s.prefix + ":" + userID
}

func (s *Store) tokenKey(token string) string {
	return s.tokenPrefix + ":" + token
}

// SessionKey returns the Redis key of the primary hash for userID.
func (s *Store) SessionKey(userID string) string {
	return s.key(userID)
}

// TokenKey returns the Redis key of the token index entry.
func (s *Store) TokenKey(token string) string {
	return s.tokenKey(token)
}

// Exists reports whether a live session hash exists for userID.
//
//	Performance: 1 Redis EXISTS.
func (s *Store) Exists(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, ErrInvalidUserID
	}
	n, err := s.redis.Exists(ctx, s.key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Create stores a new session for userID unless one is already live.
//
// The returned bool is true when this call created the session. When a
// session already exists it is returned unchanged and no keys are written.
//
//	Performance: 1 Lua EVALSHA (atomic set-if-absent of both keys).
func (s *Store) Create(ctx context.Context, userID string) (*Session, bool, error) {
	if userID == "" {
		return nil, false, ErrInvalidUserID
	}

	token, err := s.newToken()
	if err != nil {
		return nil, false, fmt.Errorf("generate session token: %w", err)
	}
	fields, err := Encode(&Session{UserID: userID, Token: token, LoginTime: s.now().Unix()})
	if err != nil {
		return nil, false, err
	}
	args := append([]interface{}{userID, s.ttl.Milliseconds(), boolFlag(s.shareTokenTTL)}, fields...)

	result, err := createSessionLua.Run(
		ctx,
		s.redis,
		[]string{s.key(userID), s.tokenKey(token)},
		args...,
	).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	status, sess, err := parseScriptSession(userID, result)
	if err != nil {
		return nil, false, err
	}

	switch status {
	case scriptStatusCreated:
		return sess, true, nil
	case scriptStatusPresent:
		return sess, false, nil
	default:
		return nil, false, fmt.Errorf("%w: unknown create script status", ErrRedisUnavailable)
	}
}

// Get reads the session for userID together with its remaining TTL.
// The bool is false when no session exists.
//
//	Performance: 1 pipelined HGETALL + PTTL.
func (s *Store) Get(ctx context.Context, userID string) (*Session, bool, error) {
	if userID == "" {
		return nil, false, ErrInvalidUserID
	}

	key := s.key(userID)
	pipe := s.redis.Pipeline()
	fieldsCmd := pipe.HGetAll(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	fields := fieldsCmd.Val()
	if len(fields) == 0 {
		return nil, false, nil
	}

	sess, err := Decode(userID, fields)
	if err != nil {
		return nil, false, err
	}
	sess.TTL = ttlCmd.Val()

	return sess, true, nil
}

// TokenOwner resolves a session token to the user id it was issued for.
//
//	Performance: 1 Redis GET.
func (s *Store) TokenOwner(ctx context.Context, token string) (string, bool, error) {
	if token == "" {
		return "", false, ErrInvalidToken
	}
	userID, err := s.redis.Get(ctx, s.tokenKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return userID, true, nil
}

// Touch overwrites login_time with the current time and resets the TTL of
// the session (and of its token key when the TTL is shared). Nothing is
// written when the session does not exist.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) Touch(ctx context.Context, userID string) (*Session, bool, error) {
	if userID == "" {
		return nil, false, ErrInvalidUserID
	}

	result, err := touchSessionLua.Run(
		ctx,
		s.redis,
		[]string{s.key(userID)},
		s.now().Unix(),
		s.ttl.Milliseconds(),
		boolFlag(s.shareTokenTTL),
		s.tokenPrefix+":",
	).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	status, sess, err := parseScriptSession(userID, result)
	if err != nil {
		return nil, false, err
	}
	if status == scriptStatusAbsent {
		return nil, false, nil
	}
	return sess, true, nil
}

// Delete removes the session hash and its token key in one script.
// It returns the token that was stored in the hash ("" when the hash had
// none) and whether a session existed. Nothing is written when it did not.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) Delete(ctx context.Context, userID string) (string, bool, error) {
	if userID == "" {
		return "", false, ErrInvalidUserID
	}

	result, err := deleteSessionLua.Run(
		ctx,
		s.redis,
		[]string{s.key(userID)},
		userID,
		s.tokenPrefix+":",
	).Result()
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return "", false, fmt.Errorf("%w: invalid delete script response", ErrRedisUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return "", false, fmt.Errorf("%w: invalid delete script status", ErrRedisUnavailable)
	}
	if code == scriptStatusAbsent {
		return "", false, nil
	}

	var token string
	if len(parts) > 1 {
		token = replyString(parts[1])
	}
	return token, true, nil
}

// TTL returns the remaining lifetime of the session hash. Redis reports -2
// for a missing key and -1 for a key without expiry; both are passed through
// as negative durations.
func (s *Store) TTL(ctx context.Context, userID string) (time.Duration, error) {
	return s.pttl(ctx, s.key(userID))
}

// TokenTTL returns the remaining lifetime of a token key.
func (s *Store) TokenTTL(ctx context.Context, token string) (time.Duration, error) {
	return s.pttl(ctx, s.tokenKey(token))
}

func (s *Store) pttl(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.redis.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ttl, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func parseScriptSession(userID string, result interface{}) (int64, *Session, error) {
	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return 0, nil, fmt.Errorf("%w: invalid session script response", ErrRedisUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return 0, nil, fmt.Errorf("%w: invalid session script status", ErrRedisUnavailable)
	}
	if code == scriptStatusAbsent {
		return code, nil, nil
	}
	if len(parts) < 4 {
		return 0, nil, fmt.Errorf("%w: short session script response", ErrRedisUnavailable)
	}

	fields := map[string]string{
		fieldToken: replyString(parts[1]),
	}
	if raw := replyString(parts[2]); raw != "" {
		fields[fieldLoginTime] = raw
	}
	sess, err := Decode(userID, fields)
	if err != nil {
		return 0, nil, err
	}
	if ttl, ok := parts[3].(int64); ok && ttl > 0 {
		sess.TTL = time.Duration(ttl) * time.Millisecond
	}
	return code, sess, nil
}

func replyString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
