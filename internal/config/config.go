package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/logging"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// GOSESSION_REDIS_HOST.
const EnvPrefix = "GOSESSION"

type Config struct {
	Redis    RedisConfig     `mapstructure:"redis"`
	Session  SessionConfig   `mapstructure:"session"`
	Export   ExportConfig    `mapstructure:"export"`
	Logger   logging.Config  `mapstructure:"logger"`
	Messages MessagesConfig  `mapstructure:"messages"`
	Audit    AuditConfig     `mapstructure:"audit"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
	Bearer   BearerConfig    `mapstructure:"bearer"`
	Backend  BackendSettings `mapstructure:"backend"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Addrs lists Sentinel addresses when MasterName is set. Host and Port
	// are ignored when it is set. Redis Cluster is not supported, so more
	// than one entry without MasterName fails at startup.
	Addrs      []string `mapstructure:"addrs"`
	MasterName string   `mapstructure:"master_name"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Addresses returns Addrs, or the single Host:Port address.
func (r *RedisConfig) Addresses() []string {
	if len(r.Addrs) > 0 {
		return r.Addrs
	}
	return []string{r.GetAddr()}
}

type SessionConfig struct {
	KeyPrefix        string        `mapstructure:"key_prefix"`
	TokenPrefix      string        `mapstructure:"token_prefix"`
	TTL              time.Duration `mapstructure:"ttl"`
	ShareTokenTTL    bool          `mapstructure:"share_token_ttl"`
	VerifyTokenWrite bool          `mapstructure:"verify_token_write"`
}

type ExportConfig struct {
	Pattern   string `mapstructure:"pattern"`
	ScanCount int64  `mapstructure:"scan_count"`
	Path      string `mapstructure:"path"`
}

// MessagesConfig points at an optional catalogue file. Empty uses the
// embedded catalogue.
type MessagesConfig struct {
	Path string `mapstructure:"path"`
}

type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
	DropIfFull bool `mapstructure:"drop_if_full"`
}

type MetricsConfig struct {
	Enabled                 bool   `mapstructure:"enabled"`
	EnableLatencyHistograms bool   `mapstructure:"enable_latency_histograms"`
	Listen                  string `mapstructure:"listen"`
}

// BearerConfig configures signed bearer tokens wrapping session tokens.
type BearerConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type BackendSettings struct {
	PingTimeout time.Duration `mapstructure:"ping_timeout"`
}

// Load reads configuration from path, or from config.yaml in ./configs and
// the working directory when path is empty, then applies GOSESSION_*
// environment overrides. A missing file is not an error when searching.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := goSession.DefaultConfig()

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.master_name", "")

	v.SetDefault("session.key_prefix", defaults.Session.KeyPrefix)
	v.SetDefault("session.token_prefix", defaults.Session.TokenPrefix)
	v.SetDefault("session.ttl", defaults.Session.TTL)
	v.SetDefault("session.share_token_ttl", defaults.Session.ShareTokenTTL)
	v.SetDefault("session.verify_token_write", defaults.Session.VerifyTokenWrite)

	v.SetDefault("backend.ping_timeout", defaults.Backend.PingTimeout)

	v.SetDefault("export.pattern", defaults.Export.Pattern)
	v.SetDefault("export.scan_count", defaults.Export.ScanCount)
	v.SetDefault("export.path", "redis_data.json")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.source_for_all", false)

	v.SetDefault("messages.path", "")

	v.SetDefault("audit.enabled", defaults.Audit.Enabled)
	v.SetDefault("audit.buffer_size", defaults.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", defaults.Audit.DropIfFull)

	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.enable_latency_histograms", defaults.Metrics.EnableLatencyHistograms)
	v.SetDefault("metrics.listen", "")

	v.SetDefault("bearer.secret", "")
	v.SetDefault("bearer.issuer", "gosession")
	v.SetDefault("bearer.audience", "")
	v.SetDefault("bearer.ttl", defaults.Session.TTL)
}

// ManagerConfig converts the file layout into a Manager configuration.
func (c *Config) ManagerConfig() goSession.Config {
	cfg := goSession.DefaultConfig()
	cfg.Session = goSession.SessionConfig{
		KeyPrefix:        c.Session.KeyPrefix,
		TokenPrefix:      c.Session.TokenPrefix,
		TTL:              c.Session.TTL,
		ShareTokenTTL:    c.Session.ShareTokenTTL,
		VerifyTokenWrite: c.Session.VerifyTokenWrite,
	}
	cfg.Backend.PingTimeout = c.Backend.PingTimeout
	cfg.Export.Pattern = c.Export.Pattern
	cfg.Export.ScanCount = c.Export.ScanCount
	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize
	cfg.Audit.DropIfFull = c.Audit.DropIfFull
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.EnableLatencyHistograms
	return cfg
}
