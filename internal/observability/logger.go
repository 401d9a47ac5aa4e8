package observability

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes the global logger with the specified level.
// Console output goes to stderr in human-readable form; if logFile is not
// empty the same stream is also appended to that file. File output keeps the
// full debug level regardless of the console level.
func InitLogger(level string, logFile string) {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "2006-01-02 15:04:05",
	}
	writers := []io.Writer{consoleWriter}

	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, using console only\n", logFile, err)
		} else {
			writers = append(writers, file)
		}
	}

	log.Logger = log.Output(io.MultiWriter(writers...))
	zerolog.SetGlobalLevel(parseLogLevel(level))

	log.Info().
		Str("level", level).
		Str("file", logFile).
		Msg("Logger initialized")
}

// parseLogLevel parses a string log level to zerolog.Level
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}
