// Package logging builds the process-wide JSON logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/natefinch/lumberjack"
)

const (
	fileMaxSizeMB  = 50
	fileMaxBackups = 5
	fileMaxAgeDays = 30
)

type Options struct {
	Level string
	// File enables a rotated JSON copy of the log, empty disables it.
	File string
}

// New returns a JSON logger writing to stdout and, when configured, to a
// rotated file. The returned closer flushes the file sink.
func New(stdout io.Writer, opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	out := stdout
	var closer io.Closer = nopCloser{}

	if file := strings.TrimSpace(opts.File); file != "" {
		rotated := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    fileMaxSizeMB,
			MaxBackups: fileMaxBackups,
			MaxAge:     fileMaxAgeDays,
			Compress:   true,
		}

		out = io.MultiWriter(stdout, rotated)
		closer = rotated
	}

	log := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))

	return log, closer, nil
}

func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
