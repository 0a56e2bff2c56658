package server

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func NewLogger(levelStr string) *slog.Logger {
	return newLoggerTo(os.Stdout, levelStr)
}

func newLoggerTo(w io.Writer, levelStr string) *slog.Logger {
	level := ParseLevel(levelStr)
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	})
	return slog.New(handler).With("app", "aimlib")
}
