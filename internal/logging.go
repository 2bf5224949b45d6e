// Package internal hosts process-level helpers shared by the binaries:
// logger construction and the in-memory store inspector.
package internal

import (
	"log/slog"
	"os"
	"strings"
)

// GetLoggerFromString builds the process logger for a LOG_LEVEL string.
// Unknown levels fall back to Info.
func GetLoggerFromString(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		l = slog.LevelDebug
	case "WARN", "WARNING":
		l = slog.LevelWarn
	case "ERROR":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
