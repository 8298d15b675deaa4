package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/logging"
	"github.com/MrEthical07/goSession/messages"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath string
	embedded   bool
}

// NewCommand returns the gosession root command.
func NewCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "gosession",
		Short: "Redis-backed user session store",
		Long: `gosession manages one session per user in Redis: create, look up by
token, refresh, delete, and inspect or export the keyspace.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")
	cmd.PersistentFlags().BoolVar(&opts.embedded, "embedded", false, "Run against an in-process Redis instead of the configured server")

	cmd.AddCommand(
		newSessionCommand(opts),
		newTokenCommand(opts),
		newDecodeCommand(opts),
		newExportCommand(opts),
		newFlushCommand(opts),
		newDemoCommand(opts),
		newServeCommand(opts),
	)

	return cmd
}

// env is everything a subcommand needs for one invocation.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	manager *goSession.Manager
	embed   *miniredis.Miniredis
}

func (o *globalOptions) open(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Logger)
	if err != nil {
		return nil, err
	}

	catalogue := messages.Default()
	if cfg.Messages.Path != "" {
		if catalogue, err = messages.Load(cfg.Messages.Path); err != nil {
			return nil, err
		}
	}

	e := &env{cfg: cfg, logger: logger}

	redisOpts := &redis.UniversalOptions{
		Addrs:      cfg.Redis.Addresses(),
		MasterName: cfg.Redis.MasterName,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
	}
	if o.embedded {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start embedded redis: %w", err)
		}
		e.embed = mr
		redisOpts = &redis.UniversalOptions{Addrs: []string{mr.Addr()}}
	}

	builder := goSession.New().
		WithConfig(cfg.ManagerConfig()).
		WithRedisOptions(redisOpts).
		WithLogger(logger).
		WithMessages(catalogue)
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(goSession.NewLogSink(logger))
	}

	manager, err := builder.BuildContext(ctx)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.manager = manager

	return e, nil
}

func (e *env) Close() {
	if e.manager != nil {
		_ = e.manager.Close()
	}
	if e.embed != nil {
		e.embed.Close()
	}
}

// newLogger sends console output to w so stdout carries only command
// results. A file path is honoured as configured.
func newLogger(w io.Writer, cfg logging.Config) (*slog.Logger, error) {
	switch strings.ToLower(cfg.OutputPath) {
	case "", "stdout", "stderr":
		return logging.NewWithWriter(w, cfg), nil
	default:
		logger, _, err := logging.New(cfg)
		return logger, err
	}
}

// withEnv opens an env, runs fn and closes the env.
func withEnv(opts *globalOptions, fn func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		e, err := opts.open(ctx, cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		return fn(ctx, cmd, e, args)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
