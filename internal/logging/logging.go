// Package logging wires up the mixer's structured logger: logrus for
// leveled, field-based logging, with optional rotation to a file via
// lumberjack when a log_file is configured (spec §6, §7).
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger built by New.
type Options struct {
	LogFile  string
	LogLevel string
	Debug    bool
}

// New builds a logrus.Logger writing to stderr, or additionally to a
// rotated file when opts.LogFile is set. Debug forces debug-level output
// regardless of LogLevel, matching the mixer's debug config flag (spec §7:
// "per-datagram debug-gated tracing").
func New(opts Options) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var out io.Writer = os.Stderr
	if opts.LogFile != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}
	log.SetOutput(out)

	level := logrus.InfoLevel
	if opts.LogLevel != "" {
		parsed, err := logrus.ParseLevel(opts.LogLevel)
		if err != nil {
			return nil, err
		}
		level = parsed
	}
	if opts.Debug && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)
	return log, nil
}
