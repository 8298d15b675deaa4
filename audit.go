package goSession

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"

	"github.com/MrEthical07/goSession/internal/audit"
)

// Audit event types emitted by the Manager.
const (
	AuditSessionCreated   = "session_created"
	AuditSessionExisting  = "session_existing"
	AuditSessionRefreshed = "session_refreshed"
	AuditSessionDeleted   = "session_deleted"
	AuditTokenResolved    = "token_resolved"
	AuditKeyspaceExported = "keyspace_exported"
	AuditKeyspaceFlushed  = "keyspace_flushed"
)

type (
	// AuditEvent is one session lifecycle record.
	AuditEvent = audit.Event
	// AuditSink receives audit events from the dispatcher goroutine.
	AuditSink = audit.Sink
	// NoOpSink drops audit events.
	NoOpSink = audit.NoOpSink
	// ChannelSink buffers audit events in a channel.
	ChannelSink = audit.ChannelSink
	// JSONWriterSink writes one JSON audit event per line.
	JSONWriterSink = audit.JSONWriterSink
	// LogSink writes audit events to a slog logger.
	LogSink = audit.LogSink
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return audit.NewLogSink(logger)
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *audit.Dispatcher {
	return audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink)
}

func (m *Manager) emitAudit(ctx context.Context, eventType, userID, token string, success bool, err error, metadata map[string]string) {
	if m.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: m.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		TokenHint: tokenHint(token),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if event.Metadata == nil {
			event.Metadata = make(map[string]string, 1)
		}
		event.Metadata["user_agent"] = ua
	}

	m.audit.Emit(ctx, event)
}

// tokenHint returns the first 8 hex characters of the token's SHA-256.
func tokenHint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}
