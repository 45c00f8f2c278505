package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lanpulse/lanpulse/internal/infrastructure/config"
)

// Logger is the structured logger used throughout lanpulse.
//
// It embeds *slog.Logger, so the usual Info/Warn/Error/Debug calls work
// directly; every record carries the service name and version, and child
// loggers created with With add their own default attributes on top.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging section of the config file.
//
// Output selects the destination: "stderr", "discard" (swallow everything,
// useful in tests), or stdout for anything else. Format selects "text" for
// human-readable development output, JSON otherwise. Level is parsed with
// parseLevel.
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Application version stamped onto every record
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	case "discard":
		output = io.Discard
	default:
		output = os.Stdout
	}

	return &Logger{
		Logger: slog.New(newHandler(output, cfg, version)),
	}
}

// newHandler assembles the slog handler: format, level filter, and the
// service/version attributes present on every record.
func newHandler(output io.Writer, cfg config.LoggingConfig, version string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	return handler.WithAttrs([]slog.Attr{
		slog.String("service", "lanpulse"),
		slog.String("version", version),
	})
}

// parseLevel converts a config log level to slog.Level.
//
// Accepted values: debug, info, warn/warning, error. Anything else falls
// back to info rather than failing startup over a typo.
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

// With returns a child Logger carrying additional default attributes.
//
// Example:
//
//	devLog := logger.With("mac", dev.MAC)
//	devLog.Info("device seen") // includes mac=aa:bb:cc:dd:ee:ff
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Default creates the bootstrap logger used before the config file has been
// read: JSON to stdout at info level, version "dev". Once config loads, the
// process switches to a logger from New.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}

// Discard returns a logger that drops every record. Intended for tests
// that exercise noisy paths.
func Discard() *Logger {
	return New(config.LoggingConfig{
		Level:  "error",
		Format: "text",
		Output: "discard",
	}, "test")
}
