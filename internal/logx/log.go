package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the shared logger used throughout the project. It writes to
// stderr and, when configured, a log file. Stdout carries the framed
// protocol stream and is never used as a sink.
var Log = log.Logger

// DefaultLogFile is where relay logs land when no override is given.
const DefaultLogFile = "/tmp/lsrelay.log"

// Configure sets the global log level and routes output to stderr plus
// the given log file. An empty file disables the file sink; a file
// that cannot be opened is skipped rather than fatal, since logging
// must never take the relay down.
func Configure(level, file string) {
	zerolog.SetGlobalLevel(parseLevel(level))

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	if file != "" {
		if f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			writers = append(writers, f)
		}
	}
	Log = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
}

// parseLevel converts a string to a zerolog level.
// Accepts: all, debug, info, warn, warning, error, fatal, none.
// Unknown values default to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "all", "trace":
		return zerolog.TraceLevel
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
	case "none", "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func init() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" && strings.EqualFold(os.Getenv("DEBUG"), "true") {
		level = "debug"
	}
	Configure(level, "")
}
