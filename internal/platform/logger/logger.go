package logger

import (
	"log/slog"
	"os"
)

// New returns the structured JSON logger used across the service. Handlers
// and middleware log through this; there is no second logging path.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
