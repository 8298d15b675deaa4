//go:build integration
// +build integration

package test

import (
	"context"
	"net"
	"sync/atomic"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// cmdCounter is a go-redis Hook that counts Redis round-trips (individual
// commands and pipeline calls).
type cmdCounter struct {
	commands  atomic.Int64
	pipelines atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.pipelines.Add(1)
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) reset() {
	h.commands.Store(0)
	h.pipelines.Store(0)
}

func (h *cmdCounter) roundTrips() int64 {
	return h.commands.Load() + h.pipelines.Load()
}

func TestRedisRoundTripBudget(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	counter := &cmdCounter{}
	rdb.AddHook(counter)

	m := newManager(t, rdb, func(cfg *goSession.Config) {
		cfg.Session.VerifyTokenWrite = false
	})
	ctx := context.Background()

	// Load every script once so the measured calls hit EVALSHA directly.
	if _, err := m.CreateSession(ctx, "warm"); err != nil {
		t.Fatalf("warm create: %v", err)
	}
	if _, err := m.UpdateLastActivity(ctx, "warm"); err != nil {
		t.Fatalf("warm touch: %v", err)
	}
	if _, err := m.DeleteSession(ctx, "warm"); err != nil {
		t.Fatalf("warm delete: %v", err)
	}

	var token string
	steps := []struct {
		name   string
		budget int64
		run    func() error
	}{
		{"exists", 1, func() error { _, err := m.SessionExists(ctx, "u1"); return err }},
		{"create", 1, func() error {
			info, err := m.CreateSession(ctx, "u1")
			if err == nil {
				token = info.Token
			}
			return err
		}},
		{"lookup", 1, func() error { _, _, err := m.GetUserIDByToken(ctx, token); return err }},
		{"touch", 1, func() error { _, err := m.UpdateLastActivity(ctx, "u1"); return err }},
		{"get", 1, func() error { _, _, err := m.GetSession(ctx, "u1"); return err }},
		{"delete", 1, func() error { _, err := m.DeleteSession(ctx, "u1"); return err }},
	}

	for _, step := range steps {
		counter.reset()
		if err := step.run(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if got := counter.roundTrips(); got > step.budget {
			t.Fatalf("%s used %d round-trips, budget %d", step.name, got, step.budget)
		}
	}
}
