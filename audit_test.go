package goSession

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTokenHint(t *testing.T) {
	if tokenHint("") != "" {
		t.Fatal("empty token must have no hint")
	}
	a, b := tokenHint("tok-a"), tokenHint("tok-a")
	if a != b || len(a) != 8 {
		t.Fatalf("hint must be a stable 8-char fingerprint, got %q and %q", a, b)
	}
	if tokenHint("tok-b") == a {
		t.Fatal("different tokens should not share a hint")
	}
}

func TestAuditJSONWriterSinkRecordsAdminOperations(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	out := &lockedBuffer{}

	m, err := New().WithConfig(cfg).WithRedis(rdb).WithEventRecorder(&recordingEvents{}).
		WithAuditSink(NewJSONWriterSink(out)).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ctx := context.Background()
	if _, err := m.CreateSession(ctx, "u1"); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := m.Export(ctx, &bytes.Buffer{}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if err := m.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var types []string
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var ev AuditEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("bad audit line %q: %v", line, err)
		}
		if ev.Timestamp.IsZero() {
			t.Fatalf("audit event without timestamp: %q", line)
		}
		types = append(types, ev.EventType)
	}

	want := []string{AuditSessionCreated, AuditKeyspaceExported, AuditKeyspaceFlushed}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, types)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	f := newManagerFixture(t, nil)
	sink := NewChannelSink(4)
	f.m.audit = newAuditDispatcher(AuditConfig{Enabled: false}, sink)

	if _, err := f.m.CreateSession(context.Background(), "u1"); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	select {
	case ev := <-sink.Events():
		t.Fatalf("unexpected audit event %+v", ev)
	default:
	}
}
