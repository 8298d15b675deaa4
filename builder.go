package goSession

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/MrEthical07/goSession/keyspace"
	"github.com/MrEthical07/goSession/logging"
	"github.com/MrEthical07/goSession/messages"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a [Manager]. Configure it during initialization, call
// Build once, then discard it.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	redisOpts *redis.UniversalOptions

	logger    *slog.Logger
	catalogue *messages.Catalogue
	events    logging.Recorder
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis uses an existing client. The Manager does not close it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRedisOptions makes Build open its own client. The Manager closes it
// on Close.
func (b *Builder) WithRedisOptions(opts *redis.UniversalOptions) *Builder {
	b.redisOpts = opts
	return b
}

// WithLogger sets the slog logger used for session events.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMessages sets the catalogue used to render event messages.
func (b *Builder) WithMessages(catalogue *messages.Catalogue) *Builder {
	b.catalogue = catalogue
	return b
}

// WithEventRecorder replaces the event logger entirely. WithLogger and
// WithMessages are ignored when a recorder is set.
func (b *Builder) WithEventRecorder(recorder logging.Recorder) *Builder {
	b.events = recorder
	return b
}

// WithAuditSink sets the audit sink. Audit must also be enabled in Config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the operation latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock replaces the time source used for login_time and audit
// timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and pings Redis.
func (b *Builder) Build() (*Manager, error) {
	return b.BuildContext(context.Background())
}

// BuildContext is Build with a caller-supplied context for the initial
// ping. Backend.PingTimeout still bounds the ping.
//
// On a failed ping it logs [redis, connection_error] and returns an error
// wrapping ErrBackendUnavailable.
func (b *Builder) BuildContext(ctx context.Context) (*Manager, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := b.redis
	ownsClient := false
	if client == nil {
		if b.redisOpts == nil {
			return nil, ErrRedisRequired
		}
		client = redis.NewUniversalClient(b.redisOpts)
		ownsClient = true
	}
	if _, ok := client.(*redis.ClusterClient); ok {
		if ownsClient {
			_ = client.Close()
		}
		return nil, ErrClusterUnsupported
	}

	events := b.events
	if events == nil {
		events = logging.NewEventLogger(b.logger, b.catalogue)
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	store := session.NewStore(client, session.Config{
		KeyPrefix:     cfg.Session.KeyPrefix,
		TokenPrefix:   cfg.Session.TokenPrefix,
		TTL:           cfg.Session.TTL,
		ShareTokenTTL: cfg.Session.ShareTokenTTL,
	}).WithClock(now)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Backend.PingTimeout)
	defer cancel()
	if _, err := store.Ping(pingCtx); err != nil {
		events.Event(ctx, slog.LevelError, redisEvent("connection_error"), "error", err)
		if ownsClient {
			_ = client.Close()
		}
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	events.Event(ctx, slog.LevelInfo, redisEvent("connected"), "db_name", databaseName(client))

	m := &Manager{
		config:     cfg,
		redis:      client,
		ownsClient: ownsClient,
		store:      store,
		decoder:    keyspace.NewDecoder(client),
		exporter: keyspace.NewExporter(client, keyspace.ExportOptions{
			Pattern:   cfg.Export.Pattern,
			ScanCount: cfg.Export.ScanCount,
		}),
		events:  events,
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		now:     now,
	}

	b.built = true

	return m, nil
}

func databaseName(client redis.UniversalClient) string {
	switch c := client.(type) {
	case *redis.Client:
		return strconv.Itoa(c.Options().DB)
	default:
		return "0"
	}
}
