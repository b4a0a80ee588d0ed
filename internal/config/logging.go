package config

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// appName tags every log record so chat entries stay attributable when
// several CLI sessions append to the same file.
const appName = "oficinas-chat"

// SetupLogger creates a dual-output logger: text to stderr for the person
// running the CLI, JSON appended to logFile for inspecting a chat session
// after the fact. Returns the logger and a cleanup function to close the
// file.
func SetupLogger(logFile string, level slog.Level) (*slog.Logger, func() error) {
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		// Fall back to stderr-only if the file can't be opened
		slog.Error("failed to open log file, using stderr only", "error", err, "file", logFile)
		return newAppLogger(stderrHandler), func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: level,
	})

	return newAppLogger(slogmulti.Fanout(stderrHandler, fileHandler)), file.Close
}

// SetupLoggerWithWriters creates a logger with custom writers (for testing).
func SetupLoggerWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return newAppLogger(slogmulti.Fanout(stderrHandler, fileHandler))
}

// newAppLogger attaches the session-identifying attributes every record
// carries. The pid distinguishes concurrent sessions sharing a log file.
func newAppLogger(h slog.Handler) *slog.Logger {
	return slog.New(h).With("app", appName, "pid", os.Getpid())
}
