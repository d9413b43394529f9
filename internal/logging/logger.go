// internal/logging/logger.go
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phsym/console-slog"

	"github.com/tamzrod/modbus-labctl/internal/config"
)

// New builds the process logger from cfg, writing to stderr.
func New(cfg config.LoggingConfig, version string) *slog.Logger {
	return NewWithWriter(cfg, version, os.Stderr)
}

// NewWithWriter is New with an explicit destination.
// Format is json (default), text or console.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "console":
		handler = console.NewHandler(w, &console.HandlerOptions{
			Level: level,
		})
	case "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	default:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler).With(
		slog.String("service", "labctl"),
		slog.String("version", version),
	)
}

// parseLevel defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

