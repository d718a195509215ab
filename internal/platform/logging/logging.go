// Package logging builds the process-wide zerolog logger.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options control logger output and rotation.
type Options struct {
	Dev     bool   // console writer, debug level
	File    string // when set, also write JSON logs to this rotated file
	MaxSize int    // megabytes before rotation
	Backups int    // rotated files to keep
}

// New returns the service logger. In dev mode output is human-readable on
// stderr at debug level; otherwise JSON at info level. When a file is
// configured, logs are additionally written there with rotation.
func New(opts Options) zerolog.Logger {
	var writers []io.Writer

	if opts.Dev {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		writers = append(writers, os.Stderr)
	}

	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.Backups,
			Compress:   true,
		})
	}

	level := zerolog.InfoLevel
	if opts.Dev {
		level = zerolog.DebugLevel
	}

	return zerolog.New(io.MultiWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
}
