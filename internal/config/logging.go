package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// SetupLogging installs a text slog handler on stderr at the given
// level. Data output goes to stdout; diagnostics stay on stderr so
// piped output remains clean.
func SetupLogging(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// ParseLogLevel converts a case-insensitive string to an slog.Level.
// The empty string maps to info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: debug, info, warn, error)", s)
	}
}
