package observability

import (
	"log/slog"
	"os"
)

const (
	// LogFieldConnectionID is the field name for relay connection ID.
	LogFieldConnectionID = "connection_id"
	// LogFieldSessionID is the field name for the (truncated) session ID.
	LogFieldSessionID = "session_id"
	// LogFieldClientAddr is the field name for the client address.
	LogFieldClientAddr = "client_addr"
	// LogFieldDuration is the field name for duration in milliseconds.
	LogFieldDuration = "duration_ms"
	// LogFieldCharacters is the field name for relayed character counts.
	LogFieldCharacters = "characters_used"
)

// NewLogger builds the process-wide slog logger. Dev mode lowers the level
// to debug and keeps the text handler readable.
func NewLogger(dev bool) *slog.Logger {
	level := slog.LevelInfo
	if dev {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ConnectionLogger returns a logger scoped to one relay connection. Session
// IDs are truncated so logs correlate without leaking the full token.
func ConnectionLogger(logger *slog.Logger, connectionID, sessionID, clientAddr string) *slog.Logger {
	attrs := []any{
		slog.String(LogFieldConnectionID, connectionID),
		slog.String(LogFieldClientAddr, clientAddr),
	}
	if sessionID != "" {
		attrs = append(attrs, slog.String(LogFieldSessionID, SessionIDPrefix(sessionID)))
	}
	return logger.With(attrs...)
}

// SessionIDPrefix shortens a session ID for log correlation.
func SessionIDPrefix(sessionID string) string {
	if len(sessionID) <= 8 {
		return sessionID
	}
	return sessionID[:8] + "..."
}
