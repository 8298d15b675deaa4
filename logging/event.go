package logging

import (
	"context"
	"log/slog"
	"strings"

	"github.com/MrEthical07/goSession/messages"
)

// Recorder receives session lifecycle events identified by a
// [category, event] key path. args are slog-style key/value pairs and double
// as the fields of the message template.
type Recorder interface {
	Event(ctx context.Context, level slog.Level, keys []string, args ...any)
}

// EventLogger resolves event text from a message catalogue and writes it to a
// slog logger with an "event" attribute of the form "category.event".
type EventLogger struct {
	logger    *slog.Logger
	catalogue *messages.Catalogue
}

// NewEventLogger returns an EventLogger. Nil arguments fall back to a
// discarding logger and the built-in catalogue.
func NewEventLogger(logger *slog.Logger, catalogue *messages.Catalogue) *EventLogger {
	if logger == nil {
		logger = Discard()
	}
	if catalogue == nil {
		catalogue = messages.Default()
	}
	return &EventLogger{logger: logger, catalogue: catalogue}
}

// Event implements [Recorder].
func (l *EventLogger) Event(ctx context.Context, level slog.Level, keys []string, args ...any) {
	if !l.logger.Enabled(ctx, level) {
		return
	}

	msg := l.catalogue.Message(keys, fieldsOf(args))
	attrs := make([]any, 0, len(args)+2)
	attrs = append(attrs, "event", strings.Join(keys, "."))
	attrs = append(attrs, args...)
	l.logger.Log(ctx, level, msg, attrs...)
}

// Logger returns the underlying slog logger.
func (l *EventLogger) Logger() *slog.Logger {
	return l.logger
}

func fieldsOf(args []any) map[string]any {
	fields := make(map[string]any, len(args)/2)
	for i := 0; i < len(args); i++ {
		switch a := args[i].(type) {
		case slog.Attr:
			fields[a.Key] = a.Value.Any()
		case string:
			if i+1 < len(args) {
				fields[a] = args[i+1]
				i++
			}
		}
	}
	return fields
}

// Nop is a Recorder that drops every event.
type Nop struct{}

func (Nop) Event(context.Context, slog.Level, []string, ...any) {}
