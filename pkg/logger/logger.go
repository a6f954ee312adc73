// Package logger wraps log/slog with the process-wide handler setup.
//
// Production builds log JSON for aggregators; everything else logs text.
package logger

import (
	"io"
	"log/slog"
	"os"
)

var L = slog.Default()

// Setup installs the process logger for the given environment.
func Setup(appEnv string) *slog.Logger {
	L = New(os.Stdout, appEnv)
	slog.SetDefault(L)
	return L
}

func New(w io.Writer, appEnv string) *slog.Logger {
	switch appEnv {
	case "production", "prod":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
