package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const EnvLogLevel = "STREAMCTL_LOG_LEVEL"

type Options struct {
	Level   string
	JSON    bool
	NoColor bool
	Out     io.Writer
}

// New builds the process logger and installs it as the zerolog global.
// STREAMCTL_LOG_LEVEL wins over opts.Level.
func New(app string, opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	level := zerolog.InfoLevel
	if lvl, ok := ParseLevel(opts.Level); ok {
		level = lvl
	}
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		level = lvl
	}

	var w io.Writer = out
	if !opts.JSON {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    opts.NoColor,
		}
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "off", "disabled", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

// OpenFile opens path for appending, creating parent directories. The TUI
// logs here so output does not land on the alternate screen.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}
