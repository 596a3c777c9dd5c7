package logger

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// NewSlogLogger returns a standalone Logger that writes JSON records to w.
// A nil writer falls back to stdout and a nil timezone to time.Local.
func NewSlogLogger(w io.Writer, level LogLevel, tz *time.Location) Logger {
	if w == nil {
		w = os.Stdout
	}
	if tz == nil {
		tz = time.Local
	}
	lvl := parseLogLevel(string(level))
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				return slog.Time(a.Key, a.Value.Time().In(tz))
			}
			return a
		},
	})
	return &moduleLogger{logger: slog.New(handler), level: lvl}
}

// NewConsoleLogger returns a text logger on stdout scoped to module.
// Used by CLI commands and tests that want readable output.
func NewConsoleLogger(module string, level LogLevel) Logger {
	lvl := parseLogLevel(string(level))
	return &moduleLogger{
		module: module,
		logger: slog.New(newTextHandler(os.Stdout, lvl, time.Local)),
		level:  lvl,
	}
}
