// Package logging builds the structured logger shared by the CLI and the catalog service.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vaultbook/vaultbook/internal/config"
)

// Options selects where and how log lines are written
type Options struct {
	Level      string
	File       string
	JSON       bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Verbose forces debug level
	Verbose bool
	// Console receives terminal output; nil means stderr
	Console io.Writer
}

// FromConfig maps the log section of the configuration
func FromConfig(c config.LogConfig, verbose bool) Options {
	return Options{
		Level:      c.Level,
		File:       c.File,
		JSON:       c.JSON,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Verbose:    verbose,
	}
}

// New returns a logger writing to the console and, when a file is set, to a
// rotating log file. The returned closer flushes the file writer.
func New(opts Options) (zerolog.Logger, io.Closer) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.WarnLevel
	}
	if opts.Verbose {
		level = zerolog.DebugLevel
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	if !opts.JSON {
		console = zerolog.ConsoleWriter{
			Out:        console,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(console),
		}
	}

	writers := []io.Writer{console}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		// the file always gets JSON lines
		writers = append(writers, rotating)
		closer = rotating
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Str("app", "vaultbook").
		Logger()
	return logger, closer
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
