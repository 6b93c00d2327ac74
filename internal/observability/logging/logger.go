package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewJSONLogger builds the process-wide structured logger. Every line carries
// a service attribute so api and worker output can be told apart once the
// logs land in the same aggregator.
func NewJSONLogger(service, level string) *slog.Logger {
	return newLogger(os.Stdout, service, level)
}

func newLogger(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler).With(slog.String("service", service))
}

// parseLevel accepts the slog level names plus the "warning" alias. Anything
// unrecognized falls back to info instead of failing startup.
func parseLevel(level string) slog.Level {
	text := strings.TrimSpace(level)
	if strings.EqualFold(text, "warning") {
		return slog.LevelWarn
	}

	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(text)); err != nil {
		return slog.LevelInfo
	}
	return parsed
}
