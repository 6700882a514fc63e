// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package erllog is the structured-logging factory shared by the
// connection actor, the RPC layer, and cmd/erldist-probe. It wraps
// zerolog the way the pack's log adapters do, with a level that can be
// hot-swapped at runtime by the config watcher.
package erllog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console-formatted logger writing to out (os.Stderr
// when out is nil), seeded with the given level.
func New(out io.Writer, level zerolog.Level) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// ParseLevel maps a config string ("debug", "info", "warn", "error")
// to a zerolog.Level, defaulting to Info on an unrecognised value.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// SetLevel atomically changes l's minimum level. Used by the config
// hot-reload watcher (component I) to adjust verbosity without a
// restart.
func SetLevel(l *zerolog.Logger, level zerolog.Level) {
	*l = l.Level(level)
}
