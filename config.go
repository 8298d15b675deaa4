package goSession

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/keyspace"
	"github.com/MrEthical07/goSession/session"
)

// Config is the complete Manager configuration. Start from [DefaultConfig]
// and override fields; the Builder validates and clones it.
type Config struct {
	Session SessionConfig
	Backend BackendConfig
	Export  ExportConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls key naming and expiry.
type SessionConfig struct {
	KeyPrefix   string
	TokenPrefix string
	TTL         time.Duration

	// ShareTokenTTL gives the token key the same TTL as the session hash and
	// renews both together. When false the token key has no expiry.
	ShareTokenTTL bool

	// VerifyTokenWrite reads the token key back after a create and logs
	// whether it was stored.
	VerifyTokenWrite bool
}

// BackendConfig controls the connection check performed by Build.
type BackendConfig struct {
	PingTimeout time.Duration
}

// ExportConfig selects the keys visited by Export.
type ExportConfig struct {
	Pattern   string
	ScanCount int64
}

// AuditConfig controls asynchronous audit event delivery.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			KeyPrefix:        session.DefaultKeyPrefix,
			TokenPrefix:      session.DefaultTokenPrefix,
			TTL:              session.DefaultTTL,
			ShareTokenTTL:    true,
			VerifyTokenWrite: true,
		},
		Backend: BackendConfig{
			PingTimeout: 5 * time.Second,
		},
		Export: ExportConfig{
			Pattern:   keyspace.DefaultPattern,
			ScanCount: keyspace.DefaultScanCount,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	// Session
	if strings.TrimSpace(c.Session.KeyPrefix) == "" {
		return errors.New("Session KeyPrefix must not be empty")
	}
	if strings.TrimSpace(c.Session.TokenPrefix) == "" {
		return errors.New("Session TokenPrefix must not be empty")
	}
	if c.Session.KeyPrefix == c.Session.TokenPrefix {
		return errors.New("Session KeyPrefix and TokenPrefix must differ")
	}
	if nestedPrefix(c.Session.KeyPrefix, c.Session.TokenPrefix) {
		return errors.New("Session KeyPrefix and TokenPrefix must not nest")
	}
	if strings.ContainsAny(c.Session.KeyPrefix+c.Session.TokenPrefix, "*?[] ") {
		return errors.New("Session prefixes must not contain glob characters or spaces")
	}
	if c.Session.TTL < time.Second {
		return errors.New("Session TTL must be >= 1s")
	}
	if c.Session.TTL%time.Millisecond != 0 {
		return errors.New("Session TTL must be a whole number of milliseconds")
	}

	// Backend
	if c.Backend.PingTimeout <= 0 {
		return errors.New("Backend PingTimeout must be > 0")
	}

	// Export
	if c.Export.Pattern == "" {
		return errors.New("Export Pattern must not be empty")
	}
	if c.Export.ScanCount <= 0 {
		return errors.New("Export ScanCount must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

// nestedPrefix reports whether keys under one prefix can also fall under
// the other, e.g. "a" and "a:b".
func nestedPrefix(a, b string) bool {
	return strings.HasPrefix(a+":", b+":") || strings.HasPrefix(b+":", a+":")
}
