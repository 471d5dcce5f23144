// Package logging configures the zerolog logger shared by all vcfbatch
// commands. Output goes to stderr — as a human-readable console stream when
// stderr is a terminal, or as JSON lines otherwise — and optionally to an
// append-mode log file so batch jobs on a cluster keep a durable record.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Config controls logger construction.
type Config struct {
	// Level is a zerolog level name ("debug", "info", ...). Invalid or empty
	// values fall back to info.
	Level string

	// File, when non-empty, is opened in append mode and receives a JSON copy
	// of every log line in addition to stderr.
	File string
}

// Setup builds the root logger. The returned close function releases the log
// file handle, if any, and is safe to call when no file was configured.
func Setup(cfg Config) (zerolog.Logger, func() error, error) {
	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		lvl = zerolog.InfoLevel
	}

	writers := []io.Writer{consoleWriter(os.Stderr)}

	closeFn := func() error { return nil }
	if cfg.File != "" {
		f, openErr := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if openErr != nil {
			return zerolog.Nop(), closeFn, openErr
		}
		writers = append(writers, f)
		closeFn = f.Close
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return logger, closeFn, nil
}

// consoleWriter returns a human-readable writer when w is a terminal and the
// raw (JSON) writer otherwise, so redirected output stays machine-parseable.
func consoleWriter(w *os.File) io.Writer {
	if term.IsTerminal(int(w.Fd())) {
		return zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return w
}

// ComponentLogger returns a child logger tagged with a component name.
func ComponentLogger(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// NewRunID generates a unique identifier for one command invocation. It is
// attached to every log line so interleaved cluster logs can be separated.
func NewRunID() string {
	return ulid.Make().String()
}

// FromContext returns the logger stored in ctx, or a disabled logger when none
// has been attached.
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}
