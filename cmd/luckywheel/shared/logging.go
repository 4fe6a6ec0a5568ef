package shared

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// SetupLogger configures console logging at the given level. Unknown
// levels fall back to info.
func SetupLogger(level string) *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           parseLevel(level),
		ReportTimestamp: true,
	})
}

// SetupFileLogger logs to both stderr and the given file.
func SetupFileLogger(level, path string) (*log.Logger, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger := log.NewWithOptions(io.MultiWriter(os.Stderr, f), log.Options{
		Level:           parseLevel(level),
		ReportTimestamp: true,
	})
	return logger, f, nil
}

func parseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
