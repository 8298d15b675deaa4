package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/logging"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var errTokenLost = errors.New("token lost")

func main() {
	var (
		users       = flag.Int("users", 10000, "number of distinct users")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (create, lookup, touch)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt-session", "session key prefix")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := goSession.DefaultConfig()
	cfg.Session.KeyPrefix = *prefix
	cfg.Session.TokenPrefix = *prefix + "-token"
	cfg.Session.VerifyTokenWrite = false
	cfg.Metrics.Enabled = true

	manager, err := goSession.New().
		WithConfig(cfg).
		WithRedis(client).
		WithEventRecorder(logging.Nop{}).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build manager: %v\n", err)
		os.Exit(1)
	}
	defer manager.Close()

	userID := func(i int) string { return "user-" + strconv.Itoa(i) }

	// Workers pick users at random so concurrent creates for the same
	// user race against each other.
	createStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		_, err := manager.CreateSession(ctx, userID(r.Intn(*users)))
		return err
	})

	tokens, violations := verifyOneTokenPerUser(ctx, manager, *users, userID)

	lookupStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		tok := tokens[r.Intn(len(tokens))]
		if tok == "" {
			return nil
		}
		_, ok, err := manager.GetUserIDByToken(ctx, tok)
		if err == nil && !ok {
			return errTokenLost
		}
		return err
	})

	touchStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		_, err := manager.UpdateLastActivity(ctx, userID(r.Intn(*users)))
		return err
	})

	deleteStats := runPhase(*users, *concurrency, func(_ *rand.Rand, i int) error {
		_, err := manager.DeleteSession(ctx, userID(i))
		return err
	})

	fmt.Println("---- results ----")
	printStats("create", createStats)
	printStats("lookup", lookupStats)
	printStats("touch", touchStats)
	printStats("delete", deleteStats)

	snap := manager.MetricsSnapshot()
	fmt.Printf("created=%d existing=%d backend_errors=%d\n",
		snap.Counters[goSession.MetricSessionCreated],
		snap.Counters[goSession.MetricSessionExisting],
		snap.Counters[goSession.MetricBackendError],
	)
	if violations > 0 {
		fmt.Fprintf(os.Stderr, "%d users violated the one-token-per-user invariant\n", violations)
		os.Exit(1)
	}
}

// verifyOneTokenPerUser checks that every live session's token resolves back
// to its owner and returns the tokens indexed by user number.
func verifyOneTokenPerUser(ctx context.Context, m *goSession.Manager, users int, userID func(int) string) ([]string, int) {
	tokens := make([]string, users)
	violations := 0
	for i := 0; i < users; i++ {
		info, ok, err := m.GetSession(ctx, userID(i))
		if err != nil {
			fmt.Fprintf(os.Stderr, "get session: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			continue
		}
		owner, found, err := m.GetUserIDByToken(ctx, info.Token)
		if err != nil || !found || owner != info.UserID {
			violations++
			continue
		}
		tokens[i] = info.Token
	}
	return tokens, violations
}

func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
