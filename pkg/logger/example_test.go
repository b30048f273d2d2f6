package logger_test

import (
	"log/slog"

	"github.com/soundprediction/ontoscore/pkg/logger"
)

func ExampleNewDefaultLogger() {
	// Create a logger with default settings
	log := logger.NewDefaultLogger(slog.LevelDebug)

	// Log different levels
	log.Debug("This is a debug message")
	log.Info("This is an info message")
	log.Info("Persisting score snapshot") // Will be green in terminal
	log.Warn("This is a warning message") // Will be yellow in terminal
	log.Error("This is an error message") // Will be red in terminal
}

func ExampleNewColorHandler() {
	log := logger.NewDefaultLogger(slog.LevelInfo)

	// Log with attributes
	log.Info("scoring company", "company_id", "obj-42", "as_of", "2026-01-01")
	log.Info("Persisting risk signal", "company_id", "obj-42", "to_level", "HIGH") // Green
	log.Warn("pattern detection truncated", "visited", 500, "budget", 500)        // Yellow
	log.Error("driver unavailable", "error", "timeout", "retry_count", 3)         // Red
}
