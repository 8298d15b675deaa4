package goSession

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/keyspace"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type recordedEvent struct {
	level slog.Level
	key   string
	args  []any
}

type recordingEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingEvents) Event(_ context.Context, level slog.Level, keys []string, args ...any) {
	key := ""
	for i, k := range keys {
		if i > 0 {
			key += "."
		}
		key += k
	}
	r.mu.Lock()
	r.events = append(r.events, recordedEvent{level: level, key: key, args: args})
	r.mu.Unlock()
}

func (r *recordingEvents) has(level slog.Level, key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.level == level && e.key == key {
			return true
		}
	}
	return false
}

func (r *recordingEvents) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type managerFixture struct {
	m      *Manager
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	events *recordingEvents
	clock  *testClock
}

// advance moves both the login_time clock and Redis expiry forward.
func (f *managerFixture) advance(d time.Duration) {
	f.clock.Advance(d)
	f.mr.FastForward(d)
}

func newManagerFixture(t *testing.T, mutate func(*Config)) *managerFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	if mutate != nil {
		mutate(&cfg)
	}

	events := &recordingEvents{}
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}

	m, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithEventRecorder(events).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	return &managerFixture{m: m, mr: mr, rdb: rdb, events: events, clock: clock}
}

func TestBuildLogsConnected(t *testing.T) {
	f := newManagerFixture(t, nil)

	if !f.events.has(slog.LevelInfo, "redis.connected") {
		t.Fatal("expected redis.connected event")
	}
}

func TestBuildFailsWhenRedisUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	cfg := DefaultConfig()
	cfg.Backend.PingTimeout = time.Second
	events := &recordingEvents{}

	_, err = New().WithConfig(cfg).WithRedis(rdb).WithEventRecorder(events).Build()
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if !events.has(slog.LevelError, "redis.connection_error") {
		t.Fatal("expected redis.connection_error event")
	}
}

func TestBuildRequiresRedis(t *testing.T) {
	if _, err := New().Build(); !errors.Is(err, ErrRedisRequired) {
		t.Fatalf("expected ErrRedisRequired, got %v", err)
	}
}

func TestBuilderSingleUse(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	b := New().WithRedis(rdb)
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer m.Close()

	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Fatalf("expected ErrBuilderUsed, got %v", err)
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := DefaultConfig()
	cfg.Session.TTL = 0
	if _, err := New().WithConfig(cfg).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestBuildRejectsClusterClient(t *testing.T) {
	mr := miniredis.RunT(t)
	cluster := redis.NewClusterClient(&redis.ClusterOptions{Addrs: []string{mr.Addr()}})
	defer cluster.Close()

	if _, err := New().WithRedis(cluster).Build(); !errors.Is(err, ErrClusterUnsupported) {
		t.Fatalf("expected ErrClusterUnsupported, got %v", err)
	}

	opts := &redis.UniversalOptions{Addrs: []string{mr.Addr(), mr.Addr()}}
	if _, err := New().WithRedisOptions(opts).Build(); !errors.Is(err, ErrClusterUnsupported) {
		t.Fatalf("expected ErrClusterUnsupported for multi-address options, got %v", err)
	}
}

func TestEventsCarryTokenHintNotToken(t *testing.T) {
	f := newManagerFixture(t, nil)
	ctx := context.Background()

	info, err := f.m.CreateSession(ctx, "u1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, _, err := f.m.GetUserIDByToken(ctx, "no-such-token"); err != nil {
		t.Fatalf("GetUserIDByToken failed: %v", err)
	}
	if _, err := f.m.UpdateLastActivity(ctx, "u1"); err != nil {
		t.Fatalf("UpdateLastActivity failed: %v", err)
	}
	if _, err := f.m.DeleteSession(ctx, "u1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	var hinted int
	for _, e := range f.events.events {
		for i := 0; i+1 < len(e.args); i += 2 {
			if e.args[i+1] == info.Token {
				t.Fatalf("event %s logged the raw token under %v", e.key, e.args[i])
			}
			if e.args[i] == "token_hint" && e.key == "general.save_session" {
				if e.args[i+1] != tokenHint(info.Token) {
					t.Fatalf("expected hint %q, got %v", tokenHint(info.Token), e.args[i+1])
				}
				hinted++
			}
		}
	}
	if hinted != 1 {
		t.Fatalf("expected one save_session event with a token hint, got %d", hinted)
	}
}

func TestCreateSessionIsIdempotent(t *testing.T) {
	f := newManagerFixture(t, nil)
	ctx := context.Background()

	first, err := f.m.CreateSession(ctx, "u1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if !first.Created {
		t.Fatal("expected first call to create the session")
	}
	if len(first.Token) != 36 {
		t.Fatalf("expected 36-character token, got %q", first.Token)
	}

	exists, err := f.m.SessionExists(ctx, "u1")
	if err != nil || !exists {
		t.Fatalf("expected session to exist, got %v, %v", exists, err)
	}
	if ttl := f.mr.TTL(f.m.SessionKey("u1")); ttl != 1800*time.Second {
		t.Fatalf("expected TTL 1800s, got %v", ttl)
	}

	second, err := f.m.CreateSession(ctx, "u1")
	if err != nil {
		t.Fatalf("second CreateSession failed: %v", err)
	}
	if second.Created {
		t.Fatal("second call must not create")
	}
	if second.Token != first.Token {
		t.Fatalf("expected token %q to be retained, got %q", first.Token, second.Token)
	}
	if !f.events.has(slog.LevelInfo, "general.session_exists") {
		t.Fatal("expected general.session_exists event")
	}

	tokenKeys, _ := f.rdb.Keys(ctx, "token:*").Result()
	if len(tokenKeys) != 1 {
		t.Fatalf("expected exactly one token key, got %v", tokenKeys)
	}
}

func TestCreateSessionLogsTokenVerification(t *testing.T) {
	f := newManagerFixture(t, nil)

	if _, err := f.m.CreateSession(context.Background(), "u1"); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if !f.events.has(slog.LevelInfo, "general.session_token_saved") {
		t.Fatal("expected general.session_token_saved event")
	}
	if !f.events.has(slog.LevelInfo, "general.save_session") {
		t.Fatal("expected general.save_session event")
	}
}

func TestCreateSessionRecordsLoginTime(t *testing.T) {
	f := newManagerFixture(t, nil)

	info, err := f.m.CreateSession(context.Background(), "u1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if !info.LoginTime.Equal(f.clock.Now()) {
		t.Fatalf("expected login time %v, got %v", f.clock.Now(), info.LoginTime)
	}
	if got := f.mr.HGet(f.m.SessionKey("u1"), "login_time"); got != strconv.FormatInt(f.clock.Now().Unix(), 10) {
		t.Fatalf("unexpected stored login_time %q", got)
	}
	if info.LoginTimeString() != f.clock.Now().Local().Format(time.DateTime) {
		t.Fatalf("unexpected login time string %q", info.LoginTimeString())
	}
}

func TestTokenRoundTrip(t *testing.T) {
	f := newManagerFixture(t, nil)
	ctx := context.Background()

	info, err := f.m.CreateSession(ctx, "u1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	userID, ok, err := f.m.GetUserIDByToken(ctx, info.Token)
	if err != nil || !ok {
		t.Fatalf("expected token to resolve, got ok=%v err=%v", ok, err)
	}
	if userID != "u1" {
		t.Fatalf("expected u1, got %q", userID)
	}
}

func TestGetUserIDByUnknownTokenLogsError(t *testing.T) {
	f := newManagerFixture(t, nil)

	userID, ok, err := f.m.GetUserIDByToken(context.Background(), "no-such-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || userID != "" {
		t.Fatalf("expected miss, got %q %v", userID, ok)
	}
	if !f.events.has(slog.LevelError, "general.user_id_not_found_by_token") {
		t.Fatal("expected general.user_id_not_found_by_token event")
	}
	if f.m.MetricsSnapshot().Counters[MetricTokenLookupMiss] != 1 {
		t.Fatal("expected token miss to be counted")
	}
}

func TestUpdateLastActivityResetsTTL(t *testing.T) {
	f := newManagerFixture(t, nil)
	ctx := context.Background()

	created, err := f.m.CreateSession(ctx, "u1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	f.advance(10 * time.Second)
	if ttl := f.mr.TTL(f.m.SessionKey("u1")); ttl != 1790*time.Second {
		t.Fatalf("expected TTL 1790s before touch, got %v", ttl)
	}

	ok, err := f.m.UpdateLastActivity(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("UpdateLastActivity failed: ok=%v err=%v", ok, err)
	}

	if ttl := f.mr.TTL(f.m.SessionKey("u1")); ttl != 1800*time.Second {
		t.Fatalf("expected TTL reset to 1800s, got %v", ttl)
	}
	if ttl := f.mr.TTL(f.m.TokenKey(created.Token)); ttl != 1800*time.Second {
		t.Fatalf("expected token TTL reset to 1800s, got %v", ttl)
	}

	info, ok, err := f.m.GetSession(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("GetSession failed: ok=%v err=%v", ok, err)
	}
	if !info.LoginTime.After(created.LoginTime) {
		t.Fatalf("expected login time to increase: %v -> %v", created.LoginTime, info.LoginTime)
	}
	if info.Token != created.Token {
		t.Fatal("touch must not rotate the token")
	}
	if !f.events.has(slog.LevelInfo, "general.update_last_activity") ||
		!f.events.has(slog.LevelInfo, "general.updated_session_info") {
		t.Fatal("expected update events")
	}
}

func TestUpdateLastActivityOnMissingSessionWritesNothing(t *testing.T) {
	f := newManagerFixture(t, nil)

	ok, err := f.m.UpdateLastActivity(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected false for missing session")
	}
	if keys := f.mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected no keys written, got %v", keys)
	}
	if !f.events.has(slog.LevelError, "general.session_not_found") {
		t.Fatal("expected general.session_not_found event")
	}
}

func TestDeleteSessionTearsDownBothKeys(t *testing.T) {
	f := newManagerFixture(t, nil)
	ctx := context.Background()

	info, err := f.m.CreateSession(ctx, "u1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	ok, err := f.m.DeleteSession(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("DeleteSession failed: ok=%v err=%v", ok, err)
	}

	exists, err := f.m.SessionExists(ctx, "u1")
	if err != nil || exists {
		t.Fatalf("expected session gone, got %v %v", exists, err)
	}
	if _, ok, _ := f.m.GetUserIDByToken(ctx, info.Token); ok {
		t.Fatal("expected token lookup to miss after delete")
	}
	if !f.events.has(slog.LevelInfo, "general.delete_session") ||
		!f.events.has(slog.LevelInfo, "general.delete_session_token") {
		t.Fatal("expected delete events")
	}
}

func TestDeleteMissingSessionWritesNothing(t *testing.T) {
	f := newManagerFixture(t, nil)
	ctx := context.Background()
	if err := f.mr.Set("unrelated", "kept"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	before := f.mr.Dump()

	ok, err := f.m.DeleteSession(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected false for missing session")
	}
	if after := f.mr.Dump(); after != before {
		t.Fatalf("keyspace changed:\nbefore %s\nafter %s", before, after)
	}
	if !f.events.has(slog.LevelError, "general.session_not_found") {
		t.Fatal("expected general.session_not_found event")
	}
	if exists, _ := f.m.SessionExists(ctx, "u1"); exists {
		t.Fatal("session must stay absent")
	}
}

func TestDeleteSessionWithoutTokenLogsError(t *testing.T) {
	f := newManagerFixture(t, nil)
	f.mr.HSet(f.m.SessionKey("u1"), "login_time", "1700000000")

	ok, err := f.m.DeleteSession(context.Background(), "u1")
	if err != nil || !ok {
		t.Fatalf("DeleteSession failed: ok=%v err=%v", ok, err)
	}
	if !f.events.has(slog.LevelError, "general.token_not_found_in_session") {
		t.Fatal("expected general.token_not_found_in_session event")
	}
}

func TestConcurrentCreateSessionYieldsOneToken(t *testing.T) {
	f := newManagerFixture(t, nil)

	const workers = 16
	tokens := make([]string, workers)
	created := make([]bool, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			info, err := f.m.CreateSession(context.Background(), "u1")
			if err != nil {
				t.Errorf("CreateSession failed: %v", err)
				return
			}
			tokens[i] = info.Token
			created[i] = info.Created
		}(i)
	}
	wg.Wait()

	createdCount := 0
	for i := range tokens {
		if tokens[i] != tokens[0] {
			t.Fatalf("token mismatch: %q vs %q", tokens[i], tokens[0])
		}
		if created[i] {
			createdCount++
		}
	}
	if createdCount != 1 {
		t.Fatalf("expected exactly one creator, got %d", createdCount)
	}
	if got := f.m.MetricsSnapshot().Counters[MetricSessionCreated]; got != 1 {
		t.Fatalf("expected MetricSessionCreated=1, got %d", got)
	}
}

func TestPassiveExpiryRemovesTokenKey(t *testing.T) {
	f := newManagerFixture(t, nil)
	ctx := context.Background()

	info, err := f.m.CreateSession(ctx, "u1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	f.advance(1801 * time.Second)

	if exists, _ := f.m.SessionExists(ctx, "u1"); exists {
		t.Fatal("expected session to expire")
	}
	if _, ok, _ := f.m.GetUserIDByToken(ctx, info.Token); ok {
		t.Fatal("expected token key to expire with the session")
	}
}

func TestUnsharedTokenTTLKeepsTokenKey(t *testing.T) {
	f := newManagerFixture(t, func(c *Config) { c.Session.ShareTokenTTL = false })
	ctx := context.Background()

	info, err := f.m.CreateSession(ctx, "u1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if ttl := f.mr.TTL(f.m.TokenKey(info.Token)); ttl != 0 {
		t.Fatalf("expected no TTL on token key, got %v", ttl)
	}
}

func TestTokenTTLFollowsSession(t *testing.T) {
	f := newManagerFixture(t, nil)
	ctx := context.Background()

	info, err := f.m.CreateSession(ctx, "u1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	f.advance(600 * time.Second)

	sessTTL, err := f.m.TTL(ctx, "u1")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	tokenTTL, err := f.m.TokenTTL(ctx, info.Token)
	if err != nil {
		t.Fatalf("TokenTTL failed: %v", err)
	}
	if tokenTTL != sessTTL || tokenTTL != 1200*time.Second {
		t.Fatalf("expected token ttl %v to equal session ttl %v", tokenTTL, sessTTL)
	}

	if _, err := f.m.UpdateLastActivity(ctx, "u1"); err != nil {
		t.Fatalf("UpdateLastActivity failed: %v", err)
	}
	if tokenTTL, _ = f.m.TokenTTL(ctx, info.Token); tokenTTL != 1800*time.Second {
		t.Fatalf("expected token ttl reset to 1800s, got %v", tokenTTL)
	}

	f.advance(1801 * time.Second)
	if tokenTTL, _ = f.m.TokenTTL(ctx, info.Token); tokenTTL >= 0 {
		t.Fatalf("expected missing token key after expiry, got %v", tokenTTL)
	}
}

func TestTokenTTLUnsharedAndInvalid(t *testing.T) {
	f := newManagerFixture(t, func(c *Config) { c.Session.ShareTokenTTL = false })
	ctx := context.Background()

	info, err := f.m.CreateSession(ctx, "u1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	ttl, err := f.m.TokenTTL(ctx, info.Token)
	if err != nil {
		t.Fatalf("TokenTTL failed: %v", err)
	}
	if ttl != -1 {
		t.Fatalf("expected -1 for a token key without expiry, got %v", ttl)
	}
	if _, err := f.m.TokenTTL(ctx, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestDecodeThroughManager(t *testing.T) {
	f := newManagerFixture(t, nil)
	ctx := context.Background()
	f.mr.HSet("h", "a", "1", "b", "2")

	v, err := f.m.Decode(ctx, "h")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	h, ok := v.(keyspace.Hash)
	if !ok {
		t.Fatalf("expected keyspace.Hash, got %T", v)
	}
	if len(h) != 2 || h["a"] != "1" || h["b"] != "2" {
		t.Fatalf("unexpected hash %v", h)
	}

	if err := f.mr.Set("s", "v"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if v, _ := f.m.Decode(ctx, "s"); v != keyspace.String("v") {
		t.Fatalf("unexpected string value %v", v)
	}
}

func TestExportFileWritesSessionsAndTokens(t *testing.T) {
	f := newManagerFixture(t, nil)
	ctx := context.Background()

	info, err := f.m.CreateSession(ctx, "u1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := f.mr.Push("queue", "a", "b"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "redis_data.json")
	if err := f.m.ExportFile(ctx, path); err != nil {
		t.Fatalf("ExportFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}

	sess, ok := doc["session:u1"].(map[string]any)
	if !ok || sess["session_token"] != info.Token {
		t.Fatalf("unexpected session entry %v", doc["session:u1"])
	}
	if doc["token:"+info.Token] != "u1" {
		t.Fatalf("unexpected token entry %v", doc["token:"+info.Token])
	}
	if q, ok := doc["queue"].([]any); !ok || len(q) != 2 {
		t.Fatalf("unexpected queue entry %v", doc["queue"])
	}
	if !f.events.has(slog.LevelInfo, "general.export_data") {
		t.Fatal("expected general.export_data event")
	}
	if got := f.m.MetricsSnapshot().Counters[MetricKeysExported]; got != 3 {
		t.Fatalf("expected 3 exported keys, got %d", got)
	}
}

func TestExportHonoursPattern(t *testing.T) {
	f := newManagerFixture(t, func(c *Config) { c.Export.Pattern = "session:*" })
	ctx := context.Background()

	if _, err := f.m.CreateSession(ctx, "u1"); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	var buf bytes.Buffer
	if err := f.m.Export(ctx, &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc) != 1 {
		t.Fatalf("expected only the session key, got %v", doc)
	}
}

func TestFlushAllDeletesEverything(t *testing.T) {
	f := newManagerFixture(t, nil)
	ctx := context.Background()

	if _, err := f.m.CreateSession(ctx, "u1"); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := f.m.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll failed: %v", err)
	}
	if keys := f.mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected empty keyspace, got %v", keys)
	}
	if !f.events.has(slog.LevelInfo, "redis.delete_all_data") {
		t.Fatal("expected redis.delete_all_data event")
	}
}

func TestEmptyIdentifiersRejected(t *testing.T) {
	f := newManagerFixture(t, nil)
	ctx := context.Background()

	if _, err := f.m.CreateSession(ctx, ""); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("expected ErrInvalidUserID, got %v", err)
	}
	if _, _, err := f.m.GetUserIDByToken(ctx, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestBackendFailureMidOperation(t *testing.T) {
	f := newManagerFixture(t, nil)
	f.mr.Close()

	_, err := f.m.SessionExists(context.Background(), "u1")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if !f.events.has(slog.LevelError, "general.backend_error") {
		t.Fatal("expected general.backend_error event")
	}
	if f.m.MetricsSnapshot().Counters[MetricBackendError] == 0 {
		t.Fatal("expected backend error to be counted")
	}
}

func TestCorruptSessionSurfacesError(t *testing.T) {
	f := newManagerFixture(t, nil)
	f.mr.HSet(f.m.SessionKey("u1"), "session_token", "t", "login_time", "yesterday")

	_, _, err := f.m.GetSession(context.Background(), "u1")
	if !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("expected ErrSessionCorrupt, got %v", err)
	}
}

func TestOwnedClientClosesAndLogsDisconnect(t *testing.T) {
	mr := miniredis.RunT(t)
	events := &recordingEvents{}

	m, err := New().
		WithRedisOptions(&redis.UniversalOptions{Addrs: []string{mr.Addr()}}).
		WithEventRecorder(events).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !events.has(slog.LevelInfo, "redis.disconnected") {
		t.Fatal("expected redis.disconnected event")
	}
	if _, err := m.SessionExists(context.Background(), "u1"); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("expected ErrManagerClosed, got %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestAuditEventsDelivered(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 16
	cfg.Audit.DropIfFull = false
	sink := NewChannelSink(16)

	m, err := New().WithConfig(cfg).WithRedis(rdb).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ctx := WithClientIP(WithUserAgent(context.Background(), "test-agent"), "10.0.0.1")
	info, err := m.CreateSession(ctx, "u1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := m.DeleteSession(ctx, "u1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	created := <-sink.Events()
	deleted := <-sink.Events()

	if created.EventType != AuditSessionCreated || !created.Success || created.UserID != "u1" {
		t.Fatalf("unexpected created event %+v", created)
	}
	if created.IP != "10.0.0.1" || created.Metadata["user_agent"] != "test-agent" {
		t.Fatalf("expected request metadata, got %+v", created)
	}
	if created.TokenHint == "" || created.TokenHint == info.Token {
		t.Fatalf("token hint must be a fingerprint, got %q", created.TokenHint)
	}
	if deleted.EventType != AuditSessionDeleted {
		t.Fatalf("unexpected deleted event %+v", deleted)
	}
	if m.AuditDropped() != 0 {
		t.Fatalf("expected no drops, got %d", m.AuditDropped())
	}
}

func TestLatencyHistogramObserved(t *testing.T) {
	f := newManagerFixture(t, nil)

	if _, err := f.m.SessionExists(context.Background(), "u1"); err != nil {
		t.Fatalf("SessionExists failed: %v", err)
	}

	var total uint64
	for _, v := range f.m.MetricsSnapshot().Histograms[MetricOperationLatency] {
		total += v
	}
	if total != 1 {
		t.Fatalf("expected one latency sample, got %d", total)
	}
}
