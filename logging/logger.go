package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// Config selects the handler built by [New].
type Config struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
	// SourceForAll attaches source locations at every level instead of
	// only warn and error.
	SourceForAll bool `mapstructure:"source_for_all"`
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger from cfg. The returned LevelVar can be used to change
// the level at runtime. New never touches slog's default logger.
func New(cfg Config) (*slog.Logger, *slog.LevelVar, error) {
	writer, err := openOutput(cfg.OutputPath)
	if err != nil {
		return nil, nil, err
	}
	level := levelVarOf(cfg)
	return slog.New(newHandler(writer, cfg, level)), level, nil
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, cfg Config) *slog.Logger {
	return slog.New(newHandler(w, cfg, levelVarOf(cfg)))
}

func levelVarOf(cfg Config) *slog.LevelVar {
	lv := new(slog.LevelVar)
	lv.Set(ParseLevel(cfg.Level))
	return lv
}

func newHandler(w io.Writer, cfg Config, level *slog.LevelVar) slog.Handler {
	showSourceLevels := []slog.Level{slog.LevelWarn, slog.LevelError}
	if cfg.SourceForAll {
		showSourceLevels = []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}
	}

	if strings.EqualFold(cfg.Format, "json") {
		base := slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: false,
		})
		return NewConditionalSourceHandler(base, showSourceLevels...)
	}

	base := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		AddSource:  false,
		NoColor:    !isTerminal(w),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" && a.Value.Kind() == slog.KindAny {
				if err, ok := a.Value.Any().(error); ok {
					return tint.Err(err)
				}
			}
			return a
		},
	})
	return NewConditionalSourceHandler(base, showSourceLevels...)
}

func openOutput(path string) (io.Writer, error) {
	switch strings.ToLower(path) {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log output: %w", err)
		}
		return file, nil
	}
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
