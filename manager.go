package goSession

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/keyspace"
	"github.com/MrEthical07/goSession/logging"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
)

// Manager owns the session lifecycle for every user. It is safe for
// concurrent use. Create one with [Builder].
type Manager struct {
	config     Config
	redis      redis.UniversalClient
	ownsClient bool

	store    *session.Store
	decoder  *keyspace.Decoder
	exporter *keyspace.Exporter

	events  logging.Recorder
	audit   *audit.Dispatcher
	metrics *Metrics
	now     func() time.Time

	closed atomic.Bool
}

func generalEvent(name string) []string { return []string{"general", name} }
func redisEvent(name string) []string   { return []string{"redis", name} }

// SessionExists reports whether a live session exists for userID.
//
//	Performance: 1 Redis EXISTS. No writes.
func (m *Manager) SessionExists(ctx context.Context, userID string) (bool, error) {
	if err := m.ready(); err != nil {
		return false, err
	}
	if userID == "" {
		return false, ErrInvalidUserID
	}
	defer m.observe(time.Now())

	ok, err := m.store.Exists(ctx, userID)
	if err != nil {
		return false, m.backendError(ctx, "session_exists", err)
	}
	return ok, nil
}

// CreateSession starts a session for userID unless one is already live.
//
// The call is idempotent: when a session exists it is returned unchanged
// with Created=false and [general, session_exists] is logged. Concurrent
// calls for the same user store exactly one token.
//
//	Performance: 1 Lua EVALSHA, plus 1 GET when VerifyTokenWrite is on.
func (m *Manager) CreateSession(ctx context.Context, userID string) (*SessionInfo, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	defer m.observe(time.Now())

	sess, created, err := m.store.Create(ctx, userID)
	if err != nil {
		m.emitAudit(ctx, AuditSessionCreated, userID, "", false, err, nil)
		return nil, m.backendError(ctx, "create_session", err)
	}

	if !created {
		m.metrics.Inc(MetricSessionExisting)
		m.events.Event(ctx, slog.LevelInfo, generalEvent("session_exists"), "user_id", userID)
		m.emitAudit(ctx, AuditSessionExisting, userID, sess.Token, true, nil, nil)
		return toSessionInfo(sess, false), nil
	}

	m.metrics.Inc(MetricSessionCreated)
	if m.config.Session.VerifyTokenWrite {
		m.verifyTokenWrite(ctx, userID, sess.Token)
	}

	info := toSessionInfo(sess, true)
	m.events.Event(ctx, slog.LevelInfo, generalEvent("save_session"),
		"user_id", userID,
		"token_hint", tokenHint(info.Token),
		"login_time", info.LoginTimeString(),
	)
	m.emitAudit(ctx, AuditSessionCreated, userID, sess.Token, true, nil, nil)

	return info, nil
}

// verifyTokenWrite reads the token key back and logs the outcome. It never
// fails the create.
func (m *Manager) verifyTokenWrite(ctx context.Context, userID, token string) {
	owner, ok, err := m.store.TokenOwner(ctx, token)
	if err != nil {
		_ = m.backendError(ctx, "verify_token_write", err)
		return
	}
	if !ok || owner != userID {
		m.metrics.Inc(MetricTokenWriteUnverified)
		m.events.Event(ctx, slog.LevelError, generalEvent("session_token_not_saved"), "token_hint", tokenHint(token))
		return
	}
	m.events.Event(ctx, slog.LevelInfo, generalEvent("session_token_saved"), "token_hint", tokenHint(token), "user_id", owner)
}

// GetUserIDByToken resolves a session token to its user id. A token with no
// owner logs [general, user_id_not_found_by_token] and returns ok=false
// with a nil error.
//
//	Performance: 1 Redis GET.
func (m *Manager) GetUserIDByToken(ctx context.Context, token string) (string, bool, error) {
	if err := m.ready(); err != nil {
		return "", false, err
	}
	if token == "" {
		return "", false, ErrInvalidToken
	}
	defer m.observe(time.Now())

	userID, ok, err := m.store.TokenOwner(ctx, token)
	if err != nil {
		return "", false, m.backendError(ctx, "get_user_id_by_token", err)
	}
	if !ok {
		m.metrics.Inc(MetricTokenLookupMiss)
		m.events.Event(ctx, slog.LevelError, generalEvent("user_id_not_found_by_token"), "token_hint", tokenHint(token))
		m.emitAudit(ctx, AuditTokenResolved, "", token, false, nil, nil)
		return "", false, nil
	}

	m.metrics.Inc(MetricTokenLookupHit)
	return userID, true, nil
}

// UpdateLastActivity overwrites login_time with now and resets the session
// TTL to the full window. The token key is renewed too when ShareTokenTTL
// is on. An absent session logs [general, session_not_found], writes
// nothing and returns false.
//
//	Performance: 1 Lua EVALSHA, plus 1 GET when VerifyTokenWrite is on.
func (m *Manager) UpdateLastActivity(ctx context.Context, userID string) (bool, error) {
	if err := m.ready(); err != nil {
		return false, err
	}
	if userID == "" {
		return false, ErrInvalidUserID
	}
	defer m.observe(time.Now())

	sess, ok, err := m.store.Touch(ctx, userID)
	if err != nil {
		m.emitAudit(ctx, AuditSessionRefreshed, userID, "", false, err, nil)
		return false, m.backendError(ctx, "update_last_activity", err)
	}
	if !ok {
		m.metrics.Inc(MetricSessionTouchMiss)
		m.events.Event(ctx, slog.LevelError, generalEvent("session_not_found"), "user_id", userID)
		return false, nil
	}

	m.metrics.Inc(MetricSessionTouched)
	m.events.Event(ctx, slog.LevelInfo, generalEvent("update_last_activity"), "user_id", userID)
	m.logRefreshedSession(ctx, toSessionInfo(sess, false))
	m.emitAudit(ctx, AuditSessionRefreshed, userID, sess.Token, true, nil, nil)

	return true, nil
}

func (m *Manager) logRefreshedSession(ctx context.Context, info *SessionInfo) {
	if m.config.Session.VerifyTokenWrite && info.Token != "" {
		owner, ok, err := m.store.TokenOwner(ctx, info.Token)
		if err != nil {
			_ = m.backendError(ctx, "updated_session_info", err)
			return
		}
		if !ok || owner != info.UserID {
			m.events.Event(ctx, slog.LevelError, generalEvent("user_id_not_found"), "token_hint", tokenHint(info.Token))
			return
		}
	}
	m.events.Event(ctx, slog.LevelInfo, generalEvent("updated_session_info"),
		"user_id", info.UserID,
		"token_hint", tokenHint(info.Token),
		"login_time", info.LoginTimeString(),
	)
}

// DeleteSession removes the session hash and its token key in one atomic
// step. An absent session logs [general, session_not_found], writes
// nothing and returns false.
//
//	Performance: 1 Lua EVALSHA.
func (m *Manager) DeleteSession(ctx context.Context, userID string) (bool, error) {
	if err := m.ready(); err != nil {
		return false, err
	}
	if userID == "" {
		return false, ErrInvalidUserID
	}
	defer m.observe(time.Now())

	token, existed, err := m.store.Delete(ctx, userID)
	if err != nil {
		m.emitAudit(ctx, AuditSessionDeleted, userID, "", false, err, nil)
		return false, m.backendError(ctx, "delete_session", err)
	}
	if !existed {
		m.metrics.Inc(MetricSessionDeleteMiss)
		m.events.Event(ctx, slog.LevelError, generalEvent("session_not_found"), "user_id", userID)
		return false, nil
	}

	m.metrics.Inc(MetricSessionDeleted)
	m.events.Event(ctx, slog.LevelInfo, generalEvent("delete_session"), "user_id", userID)
	if token != "" {
		m.events.Event(ctx, slog.LevelInfo, generalEvent("delete_session_token"), "token_hint", tokenHint(token))
	} else {
		m.events.Event(ctx, slog.LevelError, generalEvent("token_not_found_in_session"), "user_id", userID)
	}
	m.emitAudit(ctx, AuditSessionDeleted, userID, token, true, nil, nil)

	return true, nil
}

// GetSession returns the stored session with its remaining TTL, or
// ok=false when none exists. It performs no writes and logs nothing on a
// miss.
//
//	Performance: 1 pipelined HGETALL + PTTL.
func (m *Manager) GetSession(ctx context.Context, userID string) (*SessionInfo, bool, error) {
	if err := m.ready(); err != nil {
		return nil, false, err
	}
	if userID == "" {
		return nil, false, ErrInvalidUserID
	}
	defer m.observe(time.Now())

	sess, ok, err := m.store.Get(ctx, userID)
	if err != nil {
		return nil, false, m.backendError(ctx, "get_session", err)
	}
	if !ok {
		return nil, false, nil
	}
	return toSessionInfo(sess, false), true, nil
}

// Decode reads any key according to its Redis type. Unknown or missing
// keys decode to [keyspace.Unsupported].
//
//	Performance: 2 Redis round-trips.
func (m *Manager) Decode(ctx context.Context, key string) (keyspace.Value, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	v, err := m.decoder.Decode(ctx, key)
	if err != nil {
		return nil, m.backendError(ctx, "decode", err)
	}
	return v, nil
}

// Export writes every key matching ExportConfig.Pattern to w as one JSON
// object and logs [general, export_data].
//
//	Performance: O(keys) round-trips. Admin use only.
func (m *Manager) Export(ctx context.Context, w io.Writer) error {
	if err := m.ready(); err != nil {
		return err
	}
	n, err := m.exporter.Export(ctx, w)
	return m.finishExport(ctx, n, "", err)
}

// ExportFile is Export into a file at path, replacing it.
func (m *Manager) ExportFile(ctx context.Context, path string) error {
	if err := m.ready(); err != nil {
		return err
	}
	n, err := m.exporter.ExportFile(ctx, path)
	return m.finishExport(ctx, n, path, err)
}

func (m *Manager) finishExport(ctx context.Context, n int, path string, err error) error {
	var metadata map[string]string
	if path != "" {
		metadata = map[string]string{"path": path}
	}
	if err != nil {
		m.emitAudit(ctx, AuditKeyspaceExported, "", "", false, err, metadata)
		if errors.Is(err, keyspace.ErrBackend) {
			return m.backendError(ctx, "export_data", err)
		}
		return err
	}

	m.metrics.Add(MetricKeysExported, uint64(n))
	m.events.Event(ctx, slog.LevelInfo, generalEvent("export_data"), "keys", n)
	m.emitAudit(ctx, AuditKeyspaceExported, "", "", true, nil, metadata)
	return nil
}

// FlushAll deletes every key in every database of the Redis server and logs
// [redis, delete_all_data]. It is meant for tests and admin tooling.
func (m *Manager) FlushAll(ctx context.Context) error {
	if err := m.ready(); err != nil {
		return err
	}
	if err := m.redis.FlushAll(ctx).Err(); err != nil {
		m.emitAudit(ctx, AuditKeyspaceFlushed, "", "", false, err, nil)
		return m.backendError(ctx, "flush_all", err)
	}

	m.metrics.Inc(MetricFlushAll)
	m.events.Event(ctx, slog.LevelInfo, redisEvent("delete_all_data"))
	m.emitAudit(ctx, AuditKeyspaceFlushed, "", "", true, nil, nil)
	return nil
}

// Ping checks Redis availability and returns the round-trip latency.
func (m *Manager) Ping(ctx context.Context) (time.Duration, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	d, err := m.store.Ping(ctx)
	if err != nil {
		return d, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	return d, nil
}

// TTL reports the remaining lifetime of the session hash for userID.
// Redis' -2 (missing) and -1 (no expiry) pass through as negative values.
func (m *Manager) TTL(ctx context.Context, userID string) (time.Duration, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	if userID == "" {
		return 0, ErrInvalidUserID
	}
	d, err := m.store.TTL(ctx, userID)
	if err != nil {
		return 0, m.backendError(ctx, "ttl", err)
	}
	return d, nil
}

// TokenTTL reports the remaining lifetime of a token key. With a shared
// TTL it tracks the session hash; otherwise Redis reports -1.
func (m *Manager) TokenTTL(ctx context.Context, token string) (time.Duration, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	if token == "" {
		return 0, ErrInvalidToken
	}
	d, err := m.store.TokenTTL(ctx, token)
	if err != nil {
		return 0, m.backendError(ctx, "token_ttl", err)
	}
	return d, nil
}

// SessionKey returns the Redis key of userID's session hash.
func (m *Manager) SessionKey(userID string) string {
	return m.store.SessionKey(userID)
}

// TokenKey returns the Redis key of a token index entry.
func (m *Manager) TokenKey(token string) string {
	return m.store.TokenKey(token)
}

// Config returns a copy of the active configuration.
func (m *Manager) Config() Config {
	return cloneConfig(m.config)
}

// MetricsSnapshot returns a point-in-time copy of the Manager's metrics.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return m.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped for backpressure.
func (m *Manager) AuditDropped() uint64 {
	if m == nil {
		return 0
	}
	return m.audit.Dropped()
}

// Close drains the audit dispatcher and, when the Manager opened its own
// client, closes it and logs [redis, disconnected]. Later calls return nil.
func (m *Manager) Close() error {
	if m == nil || !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	m.audit.Close()

	if !m.ownsClient {
		return nil
	}
	if err := m.redis.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	m.events.Event(context.Background(), slog.LevelInfo, redisEvent("disconnected"))
	return nil
}

func (m *Manager) ready() error {
	if m == nil || m.closed.Load() {
		return ErrManagerClosed
	}
	return nil
}

func (m *Manager) observe(start time.Time) {
	m.metrics.Observe(MetricOperationLatency, time.Since(start))
}

// backendError counts and logs a failed Redis operation and maps it onto the
// package's error taxonomy.
func (m *Manager) backendError(ctx context.Context, operation string, err error) error {
	if errors.Is(err, session.ErrSessionCorrupt) {
		m.events.Event(ctx, slog.LevelError, generalEvent("backend_error"), "operation", operation, "error", err)
		return fmt.Errorf("%w: %w", ErrSessionCorrupt, err)
	}

	m.metrics.Inc(MetricBackendError)
	m.events.Event(ctx, slog.LevelError, generalEvent("backend_error"), "operation", operation, "error", err)
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}
